// Package config loads geodash settings from defaults, an optional YAML file,
// the environment and command-line flags, in increasing priority.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"geodash/internal/mapview"
	"geodash/internal/tables"
)

const (
	FileName    = "geodash.yaml"
	FileNameAlt = "geodash.yml"
	EnvPrefix   = "GEODASH_"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port     int      `koanf:"port"`
	LogLevel string   `koanf:"log_level"`
	Tables   []string `koanf:"tables"`

	Store   StoreConfig   `koanf:"store"`
	API     APIConfig     `koanf:"api"`
	Map     MapConfig     `koanf:"map"`
	Geocode GeocodeConfig `koanf:"geocode"`
	Stats   StatsConfig   `koanf:"stats"`

	// FileUsed is the config file that was loaded, if any.
	FileUsed string `koanf:"-"`
}

type StoreConfig struct {
	Driver     string         `koanf:"driver"`
	SQLitePath string         `koanf:"sqlite_path"`
	Postgres   PostgresConfig `koanf:"postgres"`
}

type PostgresConfig struct {
	URL      string `koanf:"url"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
}

// APIConfig points the loader at a remote geodash-compatible API. When URL is
// empty the loader reads the configured store directly.
type APIConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

type MapConfig struct {
	HeatWeight string `koanf:"heat_weight"`
	Width      int    `koanf:"width"`
	Height     int    `koanf:"height"`
}

type GeocodeConfig struct {
	Enabled      bool          `koanf:"enabled"`
	URL          string        `koanf:"url"`
	UserAgent    string        `koanf:"user_agent"`
	MinInterval  time.Duration `koanf:"min_interval"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
	PollInterval time.Duration `koanf:"poll_interval"`
	BatchSize    int           `koanf:"batch_size"`
}

type StatsConfig struct {
	TimelineFrom int `koanf:"timeline_from"`
	TimelineTo   int `koanf:"timeline_to"`
}

// Defaults mirror the settings the dashboard has always shipped with.
func Defaults() map[string]any {
	return map[string]any{
		"port":                    4000,
		"log_level":               "info",
		"tables":                  tables.Defaults(),
		"store.driver":            DriverPostgres,
		"store.sqlite_path":       "geodash.db",
		"store.postgres.host":     "10.0.0.78",
		"store.postgres.port":     5432,
		"store.postgres.user":     "postgres",
		"store.postgres.password": "",
		"store.postgres.database": "postgres",
		"api.timeout":             30 * time.Second,
		"map.heat_weight":         string(mapview.WeightCount),
		"map.width":               1024,
		"map.height":              768,
		"geocode.enabled":         false,
		"geocode.url":             "https://nominatim.openstreetmap.org",
		"geocode.user_agent":      "geodash/1.0",
		"geocode.min_interval":    time.Second,
		"geocode.cache_ttl":       24 * time.Hour,
		"geocode.poll_interval":   time.Minute,
		"geocode.batch_size":      50,
		"stats.timeline_from":     2020,
		"stats.timeline_to":       2024,
	}
}

func (c *Config) Addr() string {
	return net.JoinHostPort("", strconv.Itoa(c.Port))
}

// ConnString returns the Postgres connection string, preferring an explicit URL.
func (p PostgresConfig) ConnString() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Database,
	}
	if p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	} else if p.User != "" {
		u.User = url.User(p.User)
	}
	return u.String()
}

func (c *Config) AllowList() tables.AllowList {
	return tables.New(c.Tables)
}

func (c *Config) HeatWeight() mapview.WeightPolicy {
	p, err := mapview.ParseWeightPolicy(c.Map.HeatWeight)
	if err != nil {
		return mapview.WeightCount
	}
	return p
}

func (c *Config) MapOptions() mapview.Options {
	return mapview.Options{
		Weight: c.HeatWeight(),
		Size:   mapview.Size{Width: c.Map.Width, Height: c.Map.Height},
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown store driver %q (want %s or %s)", c.Store.Driver, DriverPostgres, DriverSQLite)
	}
	if c.Store.Driver == DriverSQLite && strings.TrimSpace(c.Store.SQLitePath) == "" {
		return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
	}
	if _, err := mapview.ParseWeightPolicy(c.Map.HeatWeight); err != nil {
		return err
	}
	if c.Stats.TimelineFrom > c.Stats.TimelineTo {
		return fmt.Errorf("stats.timeline_from %d is after timeline_to %d", c.Stats.TimelineFrom, c.Stats.TimelineTo)
	}
	if c.AllowList().Len() == 0 {
		return fmt.Errorf("no tables configured")
	}
	return nil
}
