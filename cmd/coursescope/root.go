package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hyperifyio/coursescope/internal/app"
)

type rootOptions struct {
	configPath string
	envFiles   []string
	verbose    bool
	logJSON    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "coursescope",
		Short:         "coursescope extracts course details from course pages and relays them for framing.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", os.Getenv("COURSESCOPE_CONFIG"), "Path to a YAML, JSON or JSON5 config file")
	pf.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "Dotenv files to load before reading the environment")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")
	pf.BoolVar(&opts.logJSON, "log.json", false, "Log JSON lines instead of console output")

	root.AddCommand(newServeCmd(opts), newScrapeCmd(opts), newVersionCmd())
	return root
}

// loadConfig resolves defaults < config file < environment < flags.
func (o *rootOptions) loadConfig(flags *pflag.FlagSet) (app.Config, error) {
	if err := app.LoadEnvFiles(o.envFiles...); err != nil {
		return app.Config{}, err
	}

	var layers []app.Config
	if path := strings.TrimSpace(o.configPath); path != "" {
		fc, err := app.LoadConfigFile(path)
		if err != nil {
			return app.Config{}, err
		}
		fileCfg, err := fc.Config()
		if err != nil {
			return app.Config{}, err
		}
		layers = append(layers, fileCfg)
	}

	envCfg, err := app.ConfigFromEnv()
	if err != nil {
		return app.Config{}, err
	}
	layers = append(layers, envCfg)

	flagCfg, err := configFromFlags(flags)
	if err != nil {
		return app.Config{}, err
	}
	flagCfg.Verbose = o.verbose
	flagCfg.LogJSON = o.logJSON
	layers = append(layers, flagCfg)

	cfg, err := app.Resolve(layers...)
	if err != nil {
		return app.Config{}, err
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg app.Config) {
	if cfg.LogJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// addSiteFlags registers the flags shared by serve and scrape.
func addSiteFlags(fs *pflag.FlagSet) {
	fs.String("site.domain", "", "Allowed course host substring (default coursera.org)")
	fs.String("site.name", "", "Display name of the allowed site (default Coursera)")
	fs.String("site.ruleSet", "", "Extraction rule set: coursera or readability")
	fs.String("fetch.userAgent", "", "User-Agent for upstream requests")
	fs.Duration("fetch.timeout", 0, "Per-attempt upstream timeout (default 10s)")
	fs.Int("fetch.maxAttempts", 0, "Upstream attempts including the first (default 1, no retry)")
	fs.Int64("fetch.maxBodyBytes", 0, "Maximum upstream body size in bytes")
	fs.Int("fetch.maxConcurrent", 0, "Maximum in-flight upstream requests (0 = unlimited)")
	fs.Bool("fetch.cloudflareBypass", false, "Wrap the upstream transport with Cloudflare bypass headers")
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.String("host", "", "Listen host (default all interfaces)")
	fs.Int("port", 0, "Listen port (default 5000)")
	fs.Duration("shutdownTimeout", 0, "Graceful shutdown timeout (default 10s)")
	fs.StringSlice("cors.origins", nil, "Allowed CORS origins (default *)")
	fs.String("frameAncestors", "", "CSP frame-ancestors sources for proxied pages (default 'self')")
	fs.Bool("hideErrorDetails", false, "Omit upstream error text from 500 responses")
	fs.Bool("proxy.allowAnyDomain", false, "Let the proxy fetch any http(s) URL, not only the allowed site")
	fs.String("otel.endpoint", "", "OTLP collector endpoint URL")
	fs.String("otel.protocol", "", "OTLP protocol: http/protobuf or grpc")
}

// configFromFlags builds the flag layer from explicitly set flags only.
func configFromFlags(fs *pflag.FlagSet) (app.Config, error) {
	var cfg app.Config
	var err error
	set := func(name string, apply func() error) {
		if err != nil {
			return
		}
		if f := fs.Lookup(name); f != nil && f.Changed {
			err = apply()
		}
	}
	str := func(name string, dst *string) {
		set(name, func() (e error) { *dst, e = fs.GetString(name); return })
	}
	num := func(name string, dst *int) {
		set(name, func() (e error) { *dst, e = fs.GetInt(name); return })
	}
	dur := func(name string, dst *time.Duration) {
		set(name, func() (e error) { *dst, e = fs.GetDuration(name); return })
	}
	boolean := func(name string, dst *bool) {
		set(name, func() (e error) { *dst, e = fs.GetBool(name); return })
	}

	str("site.domain", &cfg.AllowedDomain)
	str("site.name", &cfg.AllowedDomainName)
	str("site.ruleSet", &cfg.RuleSet)
	str("fetch.userAgent", &cfg.Fetch.UserAgent)
	dur("fetch.timeout", &cfg.Fetch.Timeout)
	num("fetch.maxAttempts", &cfg.Fetch.MaxAttempts)
	set("fetch.maxBodyBytes", func() (e error) { cfg.Fetch.MaxBodyBytes, e = fs.GetInt64("fetch.maxBodyBytes"); return })
	num("fetch.maxConcurrent", &cfg.Fetch.MaxConcurrent)
	boolean("fetch.cloudflareBypass", &cfg.Fetch.CloudflareBypass)

	str("host", &cfg.Host)
	num("port", &cfg.Port)
	dur("shutdownTimeout", &cfg.ShutdownTimeout)
	set("cors.origins", func() (e error) { cfg.CORSOrigins, e = fs.GetStringSlice("cors.origins"); return })
	str("frameAncestors", &cfg.FrameAncestors)
	boolean("hideErrorDetails", &cfg.HideErrorDetails)
	boolean("proxy.allowAnyDomain", &cfg.ProxyAllowAnyDomain)
	str("otel.endpoint", &cfg.Telemetry.Endpoint)
	str("otel.protocol", &cfg.Telemetry.Protocol)

	return cfg, err
}
