package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigFromEnv reads the environment layer. Unset variables leave the
// corresponding field zero so lower layers show through.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	var errs []string

	str := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(dst *int, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	dur := func(dst *time.Duration, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not a duration", key, v))
				return
			}
			*dst = d
		}
	}
	// Booleans only switch on; every boolean option defaults to false.
	flag := func(dst *bool, key string) {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
		case "1", "true", "yes", "on":
			*dst = true
		}
	}

	str(&cfg.Host, "HOST")
	num(&cfg.Port, "PORT")
	dur(&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT")

	str(&cfg.AllowedDomain, "ALLOWED_DOMAIN")
	str(&cfg.AllowedDomainName, "ALLOWED_DOMAIN_NAME")
	str(&cfg.RuleSet, "RULE_SET")

	str(&cfg.Fetch.UserAgent, "FETCH_USER_AGENT")
	dur(&cfg.Fetch.Timeout, "FETCH_TIMEOUT")
	num(&cfg.Fetch.MaxAttempts, "FETCH_MAX_ATTEMPTS")
	num(&cfg.Fetch.MaxConcurrent, "FETCH_MAX_CONCURRENT")
	if v := strings.TrimSpace(os.Getenv("FETCH_MAX_BODY_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("FETCH_MAX_BODY_BYTES=%q is not an integer", v))
		} else {
			cfg.Fetch.MaxBodyBytes = n
		}
	}
	flag(&cfg.Fetch.CloudflareBypass, "FETCH_CLOUDFLARE_BYPASS")

	if v := os.Getenv("CORS_ORIGINS"); strings.TrimSpace(v) != "" {
		cfg.CORSOrigins = splitList(v)
	}
	str(&cfg.FrameAncestors, "FRAME_ANCESTORS")
	flag(&cfg.HideErrorDetails, "HIDE_ERROR_DETAILS")
	flag(&cfg.ProxyAllowAnyDomain, "PROXY_ALLOW_ANY_DOMAIN")

	str(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	str(&cfg.Telemetry.Protocol, "OTEL_EXPORTER_OTLP_PROTOCOL")
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); strings.TrimSpace(v) != "" {
		cfg.Telemetry.Headers = parseHeaders(v)
	}

	flag(&cfg.Verbose, "VERBOSE")
	flag(&cfg.LogJSON, "LOG_JSON")

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// parseDuration accepts Go durations ("1m30s") and bare seconds ("15").
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseHeaders reads the OTLP "k1=v1,k2=v2" header list.
func parseHeaders(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range splitList(s) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if k = strings.TrimSpace(k); k != "" {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}
