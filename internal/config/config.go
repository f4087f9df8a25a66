package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration, loaded from YAML with ${ENV_VAR}
// placeholder support.
type Config struct {
	Server struct {
		Port        int      `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
		RateLimit   float64  `yaml:"rate_limit"`
		RateBurst   int      `yaml:"rate_burst"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Booking struct {
		DefaultDurationMinutes int  `yaml:"default_duration_minutes"`
		StrictTimeConflicts    bool `yaml:"strict_time_conflicts"`
	} `yaml:"booking"`

	Restaurant struct {
		Prefix      string `yaml:"prefix"`
		Name        string `yaml:"name"`
		OpeningTime string `yaml:"opening_time"`
		ClosingTime string `yaml:"closing_time"`
	} `yaml:"restaurant"`
}

// Load reads the config file, expanding ${ENV_VAR} placeholders and
// applying defaults for unset fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit <= 0 {
		c.Server.RateLimit = 20
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = 30
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/tablemgr.db"
	}
	if c.Booking.DefaultDurationMinutes <= 0 {
		c.Booking.DefaultDurationMinutes = 90
	}
	if c.Restaurant.Prefix == "" {
		c.Restaurant.Prefix = "tableMgr_"
	}
	if c.Restaurant.Name == "" {
		c.Restaurant.Name = "Restaurant Name"
	}
	if c.Restaurant.OpeningTime == "" {
		c.Restaurant.OpeningTime = "10:00"
	}
	if c.Restaurant.ClosingTime == "" {
		c.Restaurant.ClosingTime = "22:00"
	}
}

// BackupInterval returns the interval between backups, 24h when unset.
func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}
