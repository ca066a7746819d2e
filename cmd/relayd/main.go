package main

import (
	"context"

	"github.com/joho/godotenv"

	"relayd/internal/app"
	"relayd/pkg/config"
	"relayd/pkg/logger"
	"relayd/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	flags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(flags.Config, flags.Set["config"])
	eff, err := config.LoadEffective(cfgPath)
	if err != nil {
		logger.Init()
		shutdown.Abort("failed to load config", err, "", 0)
	}

	// explicit flags win over config/env
	if flags.Set["listen"] {
		eff.Config.Server.Listen = flags.Listen
	}
	if flags.Set["db"] {
		eff.Config.Storage.DBPath = flags.DB
	}

	logger.InitWithLevel(eff.Config.Logging.Level)

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("failed to start", err, eff.Config.Storage.DBPath, 0)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	// SIGHUP reloads the relaymsg policy and oper accounts in place
	reload := shutdown.ReloadSignals()
	go func() {
		for range reload {
			if err := a.Reload(cfgPath); err != nil {
				logger.Error("config_reload_failed", "path", cfgPath, "error", err)
			}
		}
	}()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server error", err, eff.Config.Storage.DBPath, 0)
	}
}
