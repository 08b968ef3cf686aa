// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/motiveme/motiveme/internal/xdg"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MOTIVEME_"

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// File is an explicit config path. When empty the XDG default is used if
	// it exists.
	File string
	// Flags are command flags registered with BindFlags.
	Flags *pflag.FlagSet
	// Environ replaces the process environment when non-nil.
	Environ map[string]string
}

// flagKeys maps command flag names to config keys.
var flagKeys = map[string]string{
	"environment":     "environment",
	"addr":            "http.addr",
	"database-url":    "database.url",
	"session-backend": "session.backend",
	"log-format":      "log.format",
	"log-level":       "log.level",
	"metrics-addr":    "metrics.addr",
}

// BindFlags registers the flags Load understands on fs.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("environment", d.Environment, "runtime environment (development, production, test)")
	fs.String("addr", d.HTTP.Addr, "API listen address")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("session-backend", d.Session.Backend, "session store (memory, redis, postgres)")
	fs.String("log-format", d.Log.Format, "log format (json, text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics and health listen address, empty to disable")
}

// Load builds the configuration from defaults, the config file, changed
// flags and the environment, in that order, and validates it.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	path, err := configPath(opts.File)
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateDocument(data); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	err = k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.TextUnmarshallerHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode").Wrap(err)
	}

	if err := applyEnv(&cfg, opts.Environ); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// configPath returns the explicit path, or the XDG default when it exists.
func configPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	def, err := xdg.ConfigFile()
	if err != nil {
		return "", nil //nolint:nilerr // no home directory means no default file
	}
	if _, err := os.Stat(def); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", oops.Code("CONFIG_READ_FAILED").With("path", def).Wrap(err)
	}
	return def, nil
}

// applyEnv overlays DATABASE_URL and then the MOTIVEME_* variables.
func applyEnv(cfg *Config, environ map[string]string) error {
	var conventional struct {
		DatabaseURL string `env:"DATABASE_URL"`
	}
	if err := env.ParseWithOptions(&conventional, env.Options{Environment: environ}); err != nil {
		return oops.Code("CONFIG_ENV_INVALID").Wrap(err)
	}
	if conventional.DatabaseURL != "" {
		cfg.Database.URL = conventional.DatabaseURL
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return oops.Code("CONFIG_ENV_INVALID").Wrap(err)
	}
	return nil
}
