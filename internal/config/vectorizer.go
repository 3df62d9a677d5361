package config

import (
	"fmt"
	"net/url"
	"time"
)

// VectorizerConfig points at the external image embedding service.
type VectorizerConfig struct {
	BaseURL    string        `mapstructure:"base_url"`   // e.g. http://127.0.0.1:8000
	Timeout    time.Duration `mapstructure:"timeout"`    // per-request timeout
	Dimensions int           `mapstructure:"dimensions"` // expected vector length; 0 disables the check
	RetryCount int           `mapstructure:"retry_count"`

	// Circuit breaker: open after BreakerFailures consecutive failures and
	// retry again after BreakerTimeout. Zero failures disables the breaker.
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// Validate checks that the vectorizer configuration is usable.
// Returns an error describing the first validation failure, or nil if valid.
func (c *VectorizerConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("vectorizer: base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("vectorizer: invalid base_url %q", c.BaseURL)
	}
	if c.Dimensions < 0 {
		return fmt.Errorf("vectorizer: dimensions must not be negative")
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("vectorizer: retry_count must not be negative")
	}
	if c.BreakerFailures > 0 && c.BreakerTimeout <= 0 {
		return fmt.Errorf("vectorizer: breaker_timeout must be positive when the breaker is enabled")
	}
	return nil
}
