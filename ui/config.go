package ui

import "github.com/youssefsiam38/tagstream/render"

// Default configuration values.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Config holds UI package configuration.
type Config struct {
	// BasePath is the URL prefix where the UI is mounted.
	// For example, if mounted at "/ui/", set BasePath to "/ui".
	// Links on the session page are prefixed with it.
	BasePath string

	// Title is shown in the page header. Defaults to "tagstream".
	Title string

	// MaxParamLen truncates long tool parameters in the HTML view.
	// Defaults to render.DefaultMaxParamLen.
	MaxParamLen int

	// PageSize is the default number of messages per API page.
	// Defaults to 50.
	PageSize int

	// Logger for structured logging.
	// If nil, logging is disabled.
	Logger Logger
}

// Logger interface for structured logging.
// Compatible with tagstream.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Title:       "tagstream",
		MaxParamLen: render.DefaultMaxParamLen,
		PageSize:    DefaultPageSize,
	}
}

// applyDefaults fills in default values for zero-valued fields.
func (c *Config) applyDefaults() {
	if c.Title == "" {
		c.Title = "tagstream"
	}
	if c.MaxParamLen == 0 {
		c.MaxParamLen = render.DefaultMaxParamLen
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

// validate checks the configuration for errors.
func (c *Config) validate() error {
	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return ErrInvalidConfig
	}
	if c.MaxParamLen < 0 {
		return ErrInvalidConfig
	}
	return nil
}
