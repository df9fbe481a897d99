// Package graphql exposes the query engine over HTTP: one-shot operations
// as POST requests, subscriptions over the graphql-transport-ws WebSocket
// protocol, plus playground, health, and Prometheus metrics endpoints.
package graphql

import (
	"fmt"
	"time"

	"github.com/songlinshu/vector/errors"
	"github.com/songlinshu/vector/subscription"
)

// Config holds configuration for the API gateway.
type Config struct {
	// BindAddress is the HTTP bind address (default: ":8080")
	BindAddress string `json:"bindAddress" yaml:"bindAddress"`

	// Path is the operation endpoint path, serving both one-shot POST
	// requests and WebSocket subscriptions (default: "/graphql")
	Path string `json:"path" yaml:"path"`

	// EnablePlayground serves the interactive playground UI at / (default: true
	// via DefaultConfig)
	EnablePlayground bool `json:"enablePlayground" yaml:"enablePlayground"`

	// EnableCORS enables CORS headers (default: true via DefaultConfig)
	EnableCORS bool `json:"enableCORS" yaml:"enableCORS"`

	// CORSOrigins lists allowed CORS origins (default: ["*"])
	CORSOrigins []string `json:"corsOrigins,omitempty" yaml:"corsOrigins"`

	// TimeoutStr bounds one-shot operation execution (default: "30s")
	TimeoutStr string `json:"timeout,omitempty" yaml:"timeout"`

	// MaxDepth limits operation nesting depth (default: 10)
	MaxDepth int `json:"maxDepth,omitempty" yaml:"maxDepth"`

	// ConnectionInitTimeoutStr bounds how long a WebSocket client may take
	// to send connection_init (default: "10s")
	ConnectionInitTimeoutStr string `json:"connectionInitTimeout,omitempty" yaml:"connectionInitTimeout"`

	// RateLimit caps inbound WebSocket messages per second per connection,
	// with a burst of the same size (default: 100; negative disables)
	RateLimit float64 `json:"rateLimit,omitempty" yaml:"rateLimit"`

	// Subscriptions configures per-subscription queueing.
	Subscriptions subscription.Config `json:"subscriptions" yaml:"subscriptions"`

	// parsed durations
	timeout     time.Duration
	initTimeout time.Duration
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() Config {
	return Config{
		BindAddress:      ":8080",
		Path:             "/graphql",
		EnablePlayground: true,
		EnableCORS:       true,
	}
}

// Validate ensures the configuration is valid and fills defaults.
func (c *Config) Validate() error {
	if c.BindAddress == "" {
		c.BindAddress = ":8080"
	}

	if c.Path == "" {
		c.Path = "/graphql"
	}
	if c.Path[0] != '/' {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"path must start with /")
	}

	if c.TimeoutStr == "" {
		c.timeout = 30 * time.Second
	} else {
		timeout, err := time.ParseDuration(c.TimeoutStr)
		if err != nil {
			return errors.WrapInvalid(err, "Config", "Validate",
				fmt.Sprintf("invalid timeout format: %s", c.TimeoutStr))
		}
		if timeout < 100*time.Millisecond || timeout > 5*time.Minute {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				"timeout must be between 100ms and 5m")
		}
		c.timeout = timeout
	}

	if c.ConnectionInitTimeoutStr == "" {
		c.initTimeout = 10 * time.Second
	} else {
		initTimeout, err := time.ParseDuration(c.ConnectionInitTimeoutStr)
		if err != nil {
			return errors.WrapInvalid(err, "Config", "Validate",
				fmt.Sprintf("invalid connection init timeout format: %s", c.ConnectionInitTimeoutStr))
		}
		c.initTimeout = initTimeout
	}

	if c.MaxDepth == 0 {
		c.MaxDepth = 10
	}
	if c.MaxDepth < 1 || c.MaxDepth > 50 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"maxDepth must be between 1 and 50")
	}

	if c.RateLimit == 0 {
		c.RateLimit = 100
	}

	if c.EnableCORS && len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}

	if err := c.Subscriptions.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "subscriptions validation")
	}

	return nil
}

// Timeout returns the parsed one-shot operation timeout.
func (c *Config) Timeout() time.Duration {
	return c.timeout
}

// ConnectionInitTimeout returns the parsed connection_init deadline.
func (c *Config) ConnectionInitTimeout() time.Duration {
	return c.initTimeout
}
