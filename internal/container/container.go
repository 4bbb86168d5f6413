package container

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"go-ocr-eval/internal/config"
	"go-ocr-eval/internal/logger"
	"go-ocr-eval/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config  *config.Config
	log     *logrus.Logger
	handler http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer() (*Container, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.LogLevel)
	handler := transport.NewHandler(cfg, log)

	return &Container{
		config:  cfg,
		log:     log,
		handler: handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the application logger
func (c *Container) Logger() *logrus.Logger {
	return c.log
}
