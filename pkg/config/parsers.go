package config

import (
	"flag"
	"os"
	"strconv"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Listen string
	DB     string
	Config string
	Set    map[string]bool
}

// EffectiveConfigResult is the merged config plus where its values
// came from.
type EffectiveConfigResult struct {
	Config *Config
	Path   string
	Source string // "flags", "config", "env", or "defaults"
}

// ParseCommandFlags parses the daemon's flags.
func ParseCommandFlags() Flags {
	listenPtr := flag.String("listen", ":6667", "client listen address")
	dbPtr := flag.String("db", "", "channel registry path")
	cfgPtr := flag.String("config", "./relayd.yaml", "path to config file")
	flag.Parse()
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Listen: *listenPtr, DB: *dbPtr, Config: *cfgPtr, Set: set}
}

// ResolveConfigPath prefers an explicit flag over RELAYD_CONFIG over
// the default.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if p := os.Getenv("RELAYD_CONFIG"); p != "" {
		return p
	}
	return flagVal
}

// applyEnv folds RELAYD_* environment overrides into cfg and reports
// whether any were present.
func applyEnv(cfg *Config) bool {
	used := false
	setStr := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
			used = true
		}
	}
	setStr("RELAYD_SERVER_NAME", &cfg.Server.Name)
	setStr("RELAYD_LISTEN", &cfg.Server.Listen)
	setStr("RELAYD_ADMIN_LISTEN", &cfg.Server.AdminListen)
	setStr("RELAYD_HEALTH_LISTEN", &cfg.Server.HealthListen)
	setStr("RELAYD_HEALTH_ENGINE", &cfg.Server.HealthEngine)
	setStr("RELAYD_DB_PATH", &cfg.Storage.DBPath)
	setStr("RELAYD_RELAYMSG_MODE", &cfg.Relaymsg.Mode)
	setStr("RELAYD_RELAYMSG_SEPARATOR", &cfg.Relaymsg.Separator)
	setStr("RELAYD_RELAYMSG_PATTERN", &cfg.Relaymsg.Pattern)
	setStr("RELAYD_RELAYMSG_IDENT", &cfg.Relaymsg.Ident)
	setStr("RELAYD_RELAYMSG_HOST", &cfg.Relaymsg.Host)
	setStr("RELAYD_FEDERATION_TOKEN", &cfg.Federation.Token)
	setStr("RELAYD_LOG_LEVEL", &cfg.Logging.Level)
	if v := os.Getenv("RELAYD_RELAYMSG_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Relaymsg.RateRPS = f
			used = true
		}
	}
	if v := os.Getenv("RELAYD_RELAYMSG_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Relaymsg.RateBurst = n
			used = true
		}
	}
	return used
}

// LoadEffective loads the file at path (a missing file is fine),
// applies env overrides and defaults, and records the dominant source.
func LoadEffective(path string) (EffectiveConfigResult, error) {
	cfg := &Config{}
	source := "defaults"
	if path != "" {
		loaded, err := Load(path)
		if err == nil {
			cfg = loaded
			source = "config"
		} else if !os.IsNotExist(err) {
			return EffectiveConfigResult{}, err
		}
	}
	if applyEnv(cfg) && source == "defaults" {
		source = "env"
	}
	cfg.ApplyDefaults()
	return EffectiveConfigResult{Config: cfg, Path: path, Source: source}, nil
}
