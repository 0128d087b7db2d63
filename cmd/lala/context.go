package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"lala/internal/apiclient"
	"lala/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) apiAddress() (string, error) {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return strings.TrimSpace(*c.apiFlag), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.Paths.APIBind, nil
}

func (c *commandContext) client() (*apiclient.Client, error) {
	addr, err := c.apiAddress()
	if err != nil {
		return nil, err
	}
	return apiclient.New(addr)
}

// withClient runs fn against the daemon and rewrites connection failures
// into an actionable message.
func (c *commandContext) withClient(fn func(*apiclient.Client) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	return wrapClientError(fn(client), c)
}

func wrapClientError(err error, c *commandContext) error {
	if err == nil {
		return nil
	}
	if apiclient.IsUnavailable(err) {
		addr, _ := c.apiAddress()
		return fmt.Errorf("connect to daemon at %s: not running; start it with `lalad`", addr)
	}
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Hint != "" {
		return fmt.Errorf("%s (hint: %s)", apiErr.Message, apiErr.Hint)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
