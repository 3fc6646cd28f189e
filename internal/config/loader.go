package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// legacyEnv maps the variable names used by earlier deployments to config keys.
var legacyEnv = map[string]string{
	"PGHOST":       "store.postgres.host",
	"PGPORT":       "store.postgres.port",
	"PGUSER":       "store.postgres.user",
	"PGPASSWORD":   "store.postgres.password",
	"PGDATABASE":   "store.postgres.database",
	"DATABASE_URL": "store.postgres.url",
	"PORT":         "port",
	"VITE_API_URL": "api.url",
}

// flagKeys maps flag names whose config key differs from the snake_case name.
var flagKeys = map[string]string{
	"store":        "store.driver",
	"sqlite-path":  "store.sqlite_path",
	"database-url": "store.postgres.url",
	"api-url":      "api.url",
	"heat-weight":  "map.heat_weight",
	"geocode":      "geocode.enabled",
}

// findConfigFile resolves the file to load: an explicit path wins, then
// geodash.yaml, then geodash.yml in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{FileName, FileNameAlt} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load builds the configuration. path may be empty; flags may be nil. Only
// flags the user actually set override lower layers.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(path)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Legacy environment (PGHOST, PORT, VITE_API_URL, ...)
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		mapped, ok := legacyEnv[key]
		if !ok {
			return "", nil
		}
		if key == "VITE_API_URL" {
			value = strings.TrimRight(value, "/")
		}
		return mapped, value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. GEODASH_ environment; a double underscore separates levels:
	// GEODASH_STORE__POSTGRES__HOST -> store.postgres.host
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		name = strings.ReplaceAll(name, "__", ".")
		if name == "tables" {
			return name, splitList(value)
		}
		return name, value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			if f.Name == "config" {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.FileUsed = used
	cfg.Tables = splitList(strings.Join(cfg.Tables, ","))
	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
