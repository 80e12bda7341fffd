package main

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"sipnread/api/internal/config"
	"sipnread/api/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logOnce sync.Once
	log     *zap.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := os.Getenv("SIPNREAD_CONFIG")
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// logger falls back to a production logger when the configured level is bad.
func (c *commandContext) logger() *zap.Logger {
	c.logOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err == nil {
			c.log, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		}
		if err != nil || c.log == nil {
			c.log, _ = zap.NewProduction()
		}
	})
	return c.log
}
