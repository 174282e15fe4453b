package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/rs/zerolog/log"
	"github.com/titanous/json5"
	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/coursescope/internal/telemetry"
)

// FileConfig represents the single-file configuration schema.
// Durations are strings such as "10s".
type FileConfig struct {
	Server struct {
		Host             string   `yaml:"host" json:"host"`
		Port             int      `yaml:"port" json:"port"`
		ShutdownTimeout  string   `yaml:"shutdownTimeout" json:"shutdownTimeout"`
		CORSOrigins      []string `yaml:"corsOrigins" json:"corsOrigins"`
		FrameAncestors   string   `yaml:"frameAncestors" json:"frameAncestors"`
		HideErrorDetails bool     `yaml:"hideErrorDetails" json:"hideErrorDetails"`
	} `yaml:"server" json:"server"`

	Site struct {
		Domain  string `yaml:"domain" json:"domain"`
		Name    string `yaml:"name" json:"name"`
		RuleSet string `yaml:"ruleSet" json:"ruleSet"`
	} `yaml:"site" json:"site"`

	Proxy struct {
		AllowAnyDomain bool `yaml:"allowAnyDomain" json:"allowAnyDomain"`
	} `yaml:"proxy" json:"proxy"`

	Fetch struct {
		UserAgent        string `yaml:"userAgent" json:"userAgent"`
		Timeout          string `yaml:"timeout" json:"timeout"`
		MaxAttempts      int    `yaml:"maxAttempts" json:"maxAttempts"`
		MaxBodyBytes     int64  `yaml:"maxBodyBytes" json:"maxBodyBytes"`
		MaxConcurrent    int    `yaml:"maxConcurrent" json:"maxConcurrent"`
		CloudflareBypass bool   `yaml:"cloudflareBypass" json:"cloudflareBypass"`
	} `yaml:"fetch" json:"fetch"`

	Telemetry telemetry.Config `yaml:"telemetry" json:"telemetry"`

	Verbose bool `yaml:"verbose" json:"verbose"`
	LogJSON bool `yaml:"logJSON" json:"logJSON"`
}

// LoadConfigFile reads YAML, JSON or JSON5 into FileConfig. A sibling
// "<name>.local.<ext>" file, when present, is merged over it.
func LoadConfigFile(path string) (FileConfig, error) {
	fc, err := decodeConfigFile(path)
	if err != nil {
		return fc, err
	}
	ext := filepath.Ext(path)
	local := strings.TrimSuffix(path, ext) + ".local" + ext
	override, err := decodeConfigFile(local)
	if errors.Is(err, os.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, err
	}
	if err := mergo.Merge(&fc, override, mergo.WithOverride); err != nil {
		return fc, fmt.Errorf("merge %s: %w", local, err)
	}
	log.Debug().Str("local", local).Msg("merged local config overrides")
	return fc, nil
}

func decodeConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	case ".json5":
		if err := json5.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json5: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// Config converts the file schema into a configuration layer.
func (fc FileConfig) Config() (Config, error) {
	cfg := Config{
		Host:                fc.Server.Host,
		Port:                fc.Server.Port,
		CORSOrigins:         fc.Server.CORSOrigins,
		FrameAncestors:      fc.Server.FrameAncestors,
		HideErrorDetails:    fc.Server.HideErrorDetails,
		AllowedDomain:       fc.Site.Domain,
		AllowedDomainName:   fc.Site.Name,
		RuleSet:             fc.Site.RuleSet,
		ProxyAllowAnyDomain: fc.Proxy.AllowAnyDomain,
		Fetch: FetchConfig{
			UserAgent:        fc.Fetch.UserAgent,
			MaxAttempts:      fc.Fetch.MaxAttempts,
			MaxBodyBytes:     fc.Fetch.MaxBodyBytes,
			MaxConcurrent:    fc.Fetch.MaxConcurrent,
			CloudflareBypass: fc.Fetch.CloudflareBypass,
		},
		Telemetry: fc.Telemetry,
		Verbose:   fc.Verbose,
		LogJSON:   fc.LogJSON,
	}
	var err error
	if s := strings.TrimSpace(fc.Server.ShutdownTimeout); s != "" {
		if cfg.ShutdownTimeout, err = parseDuration(s); err != nil {
			return Config{}, fmt.Errorf("config: server.shutdownTimeout: %w", err)
		}
	}
	if s := strings.TrimSpace(fc.Fetch.Timeout); s != "" {
		if cfg.Fetch.Timeout, err = parseDuration(s); err != nil {
			return Config{}, fmt.Errorf("config: fetch.timeout: %w", err)
		}
	}
	return cfg, nil
}
