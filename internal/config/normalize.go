package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeUpload()
	c.normalizeWorkflow()
	if err := c.normalizeTools(); err != nil {
		return err
	}
	c.normalizeExport()
	c.normalizeInbox()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("LALA_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = value
	}
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.InboxDir) == "" {
		c.Paths.InboxDir = defaultInboxDir
	}
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeUpload() {
	exts := make([]string, 0, len(c.Upload.PermittedExtensions))
	seen := map[string]struct{}{}
	for _, ext := range c.Upload.PermittedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultPermittedExtensions...)
	}
	c.Upload.PermittedExtensions = exts
	if c.Upload.MaxFileSizeMB <= 0 {
		c.Upload.MaxFileSizeMB = defaultMaxFileSizeMB
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.PollIntervalMs <= 0 {
		c.Workflow.PollIntervalMs = defaultPollIntervalMs
	}
	if c.Workflow.ErrorRetryIntervalMs <= 0 {
		c.Workflow.ErrorRetryIntervalMs = defaultErrorRetryIntervalMs
	}
}

func (c *Config) normalizeTools() error {
	tools := []struct {
		name     string
		tool     *Tool
		fallback string
	}{
		{"separator", &c.Tools.Separator, defaultSeparatorCommand},
		{"transcriber", &c.Tools.Transcriber, defaultTranscriberCommand},
		{"renderer", &c.Tools.Renderer, defaultRendererCommand},
	}
	for _, entry := range tools {
		entry.tool.Command = strings.TrimSpace(entry.tool.Command)
		if entry.tool.Command == "" {
			entry.tool.Command = entry.fallback
		}
		if strings.TrimSpace(entry.tool.ModelPath) == "" {
			entry.tool.ModelPath = ""
			continue
		}
		expanded, err := expandPath(entry.tool.ModelPath)
		if err != nil {
			return fmt.Errorf("tools.%s.model_path: %w", entry.name, err)
		}
		entry.tool.ModelPath = expanded
	}
	return nil
}

func (c *Config) normalizeExport() {
	if c.Export.AccessKey == "" {
		if value, ok := os.LookupEnv("LALA_EXPORT_ACCESS_KEY"); ok {
			c.Export.AccessKey = value
		}
	}
	if c.Export.SecretKey == "" {
		if value, ok := os.LookupEnv("LALA_EXPORT_SECRET_KEY"); ok {
			c.Export.SecretKey = value
		}
	}
	c.Export.Endpoint = strings.TrimSpace(c.Export.Endpoint)
	c.Export.Bucket = strings.TrimSpace(c.Export.Bucket)
	c.Export.Prefix = strings.Trim(strings.TrimSpace(c.Export.Prefix), "/")
	if strings.TrimSpace(c.Export.Region) == "" {
		c.Export.Region = defaultExportRegion
	}
}

func (c *Config) normalizeInbox() {
	c.Inbox.AutoStage = strings.ToLower(strings.TrimSpace(c.Inbox.AutoStage))
	if c.Inbox.SettleMs <= 0 {
		c.Inbox.SettleMs = defaultInboxSettleMs
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}
