package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML file schema. Defaults are applied by
// ApplyDefaults after parsing; the relaymsg block is validated when it
// is turned into a relay policy, not here.
type Config struct {
	Server struct {
		Name         string `yaml:"name"`
		Listen       string `yaml:"listen"`
		AdminListen  string `yaml:"admin_listen"`
		HealthListen string `yaml:"health_listen"`
		HealthEngine string `yaml:"health_engine"` // nethttp|fasthttp
	} `yaml:"server"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Relaymsg struct {
		Mode      string  `yaml:"mode"` // capability|permission
		Separator string  `yaml:"separator"`
		Pattern   string  `yaml:"pattern"`
		Ident     string  `yaml:"ident"`
		Host      string  `yaml:"host"`
		RateRPS   float64 `yaml:"rate_rps"`
		RateBurst int     `yaml:"rate_burst"`
	} `yaml:"relaymsg"`
	Opers []OperConfig `yaml:"opers"`
	Federation struct {
		Token string       `yaml:"token"`
		Peers []PeerConfig `yaml:"peers"`
	} `yaml:"federation"`
	Registry struct {
		Sweep    string `yaml:"sweep"`     // cron expression
		EmptyTTL string `yaml:"empty_ttl"` // go duration
	} `yaml:"registry"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// OperConfig is one operator account. Password is a bcrypt hash.
type OperConfig struct {
	Name     string   `yaml:"name"`
	Password string   `yaml:"password"`
	Grants   []string `yaml:"grants"`
}

// PeerConfig is one outbound federation link.
type PeerConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields. The relaymsg host default (the
// server's own name) is applied here because it depends on another
// field.
func (c *Config) ApplyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "relayd.local"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":6667"
	}
	if c.Server.AdminListen == "" {
		c.Server.AdminListen = ":8070"
	}
	if c.Server.HealthEngine == "" {
		c.Server.HealthEngine = "nethttp"
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "./.relayd-db"
	}
	if c.Relaymsg.Mode == "" {
		c.Relaymsg.Mode = "capability"
	}
	if c.Relaymsg.Separator == "" {
		c.Relaymsg.Separator = "/"
	}
	if c.Relaymsg.Pattern == "" {
		c.Relaymsg.Pattern = "*/*"
	}
	if c.Relaymsg.Ident == "" {
		c.Relaymsg.Ident = "relay"
	}
	if c.Relaymsg.Host == "" {
		c.Relaymsg.Host = c.Server.Name
	}
	if c.Registry.Sweep == "" {
		c.Registry.Sweep = "0 2 * * *"
	}
	if c.Registry.EmptyTTL == "" {
		c.Registry.EmptyTTL = "168h"
	}
}

// RegistryEmptyTTL parses the empty-channel TTL, falling back to a
// week on a bad value.
func (c *Config) RegistryEmptyTTL() time.Duration {
	d, err := time.ParseDuration(c.Registry.EmptyTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}
