package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateInbox(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic %q must be an http(s) URL", topic)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateTools() error {
	for name, tool := range map[string]Tool{
		"separator":   c.Tools.Separator,
		"transcriber": c.Tools.Transcriber,
		"renderer":    c.Tools.Renderer,
	} {
		if tool.Command == "" {
			return fmt.Errorf("tools.%s.command must be set", name)
		}
		if tool.TimeoutSeconds < 0 {
			return fmt.Errorf("tools.%s.timeout_seconds must be >= 0", name)
		}
	}
	return nil
}

func (c *Config) validateExport() error {
	if !c.Export.Enabled {
		return nil
	}
	if c.Export.Endpoint == "" {
		return errors.New("export.endpoint is required when export is enabled")
	}
	if c.Export.Bucket == "" {
		return errors.New("export.bucket is required when export is enabled")
	}
	if c.Export.AccessKey == "" || c.Export.SecretKey == "" {
		return errors.New("export credentials are required when export is enabled. Set LALA_EXPORT_ACCESS_KEY and LALA_EXPORT_SECRET_KEY or edit config.toml")
	}
	return nil
}

func (c *Config) validateInbox() error {
	switch c.Inbox.AutoStage {
	case "", "stems", "midi", "pdf":
		return nil
	default:
		return fmt.Errorf("inbox.auto_stage %q must be one of stems, midi, pdf", c.Inbox.AutoStage)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	return nil
}
