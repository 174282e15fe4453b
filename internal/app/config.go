package app

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"

	"github.com/hyperifyio/coursescope/internal/extract"
	"github.com/hyperifyio/coursescope/internal/fetch"
	"github.com/hyperifyio/coursescope/internal/telemetry"
)

// Config holds runtime configuration for the service.
type Config struct {
	// Listener
	Host            string
	Port            int
	ShutdownTimeout time.Duration

	// Course site policy
	AllowedDomain     string
	AllowedDomainName string
	RuleSet           string

	// Upstream retrieval
	Fetch FetchConfig

	// HTTP surface
	CORSOrigins         []string
	FrameAncestors      string
	HideErrorDetails    bool
	ProxyAllowAnyDomain bool

	Telemetry telemetry.Config

	// Logging
	Verbose bool
	LogJSON bool
}

// FetchConfig tunes the upstream client.
type FetchConfig struct {
	UserAgent        string
	Timeout          time.Duration
	MaxAttempts      int
	MaxBodyBytes     int64
	MaxConcurrent    int
	CloudflareBypass bool
}

// DefaultConfig returns the built-in settings. Boolean options all default to
// false so that any layer can switch them on.
func DefaultConfig() Config {
	return Config{
		Port:              5000,
		ShutdownTimeout:   10 * time.Second,
		AllowedDomain:     "coursera.org",
		AllowedDomainName: "Coursera",
		RuleSet:           extract.CourseraRules.Name,
		Fetch: FetchConfig{
			UserAgent:    fetch.DefaultUserAgent,
			Timeout:      fetch.DefaultTimeout,
			MaxAttempts:  1,
			MaxBodyBytes: fetch.DefaultMaxBodyBytes,
		},
		CORSOrigins:    []string{"*"},
		FrameAncestors: "'self'",
		Telemetry:      telemetry.Config{Protocol: telemetry.ProtocolHTTP},
	}
}

// Resolve merges configuration layers in increasing precedence, fills
// whatever is still unset from DefaultConfig and validates the result.
func Resolve(layers ...Config) (Config, error) {
	var cfg Config
	for _, layer := range layers {
		if err := mergo.Merge(&cfg, layer, mergo.WithOverride); err != nil {
			return Config{}, fmt.Errorf("merge config: %w", err)
		}
	}
	if err := mergo.Merge(&cfg, DefaultConfig()); err != nil {
		return Config{}, fmt.Errorf("apply defaults: %w", err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig rejects settings the service cannot start with.
func ValidateConfig(cfg Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("config: port %d out of range 1-65535", cfg.Port)
	}
	if cfg.Fetch.Timeout <= 0 {
		return errors.New("config: fetch timeout must be positive")
	}
	if cfg.Fetch.MaxAttempts < 1 {
		return errors.New("config: fetch max attempts must be at least 1")
	}
	if cfg.Fetch.MaxBodyBytes < 0 || cfg.Fetch.MaxConcurrent < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if _, err := extract.Lookup(cfg.RuleSet); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SiteName labels the allowed course site for users.
func (c Config) SiteName() string {
	if name := strings.TrimSpace(c.AllowedDomainName); name != "" {
		return name
	}
	return c.AllowedDomain
}
