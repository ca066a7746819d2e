package banner

import (
	"fmt"

	"relayd/pkg/config"
)

const banner = `
██████╗ ███████╗██╗      █████╗ ██╗   ██╗██████╗
██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝██╔══██╗
██████╔╝█████╗  ██║     ███████║ ╚████╔╝ ██║  ██║
██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝  ██║  ██║
██║  ██║███████╗███████╗██║  ██║   ██║   ██████╔╝
╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝   ╚═════╝
`

// PrintWithEff prints the startup banner with the effective config so
// operators can tell at a glance how the daemon resolved its settings.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	cfg := eff.Config
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Server:    %s\n", cfg.Server.Name)
	fmt.Printf("Listen:    %s\n", cfg.Server.Listen)
	fmt.Printf("Admin:     %s\n", cfg.Server.AdminListen)
	if cfg.Server.HealthListen != "" {
		fmt.Printf("Health:    %s (%s)\n", cfg.Server.HealthListen, cfg.Server.HealthEngine)
	}
	fmt.Printf("Registry:  %s\n", cfg.Storage.DBPath)
	if version != "" {
		fmt.Printf("Version:   %s\n", version)
	}
	fmt.Printf("Config:    %s\n", src)

	fmt.Println("\n== Relaymsg ===================================================")
	fmt.Printf("Mode:      %s\n", cfg.Relaymsg.Mode)
	if cfg.Relaymsg.Mode == "permission" {
		fmt.Printf("Pattern:   %s\n", cfg.Relaymsg.Pattern)
	} else {
		fmt.Printf("Separator: %s\n", cfg.Relaymsg.Separator)
	}
	fmt.Printf("Identity:  <nick>!%s@%s\n", cfg.Relaymsg.Ident, cfg.Relaymsg.Host)

	fmt.Println("\n== Production? ================================================")
	if len(cfg.Opers) > 0 {
		fmt.Printf("- Operator accounts: OK (%d)\n", len(cfg.Opers))
	} else {
		fmt.Println("- Operator accounts: none configured")
	}
	if len(cfg.Federation.Peers) > 0 {
		if cfg.Federation.Token != "" {
			fmt.Printf("- Federation: %d peer(s), token set\n", len(cfg.Federation.Peers))
		} else {
			fmt.Printf("- Federation: %d peer(s), TOKEN MISSING (links will be rejected)\n", len(cfg.Federation.Peers))
		}
	} else {
		fmt.Println("- Federation: standalone")
	}
	fmt.Printf("- Registry sweep: %s (empty TTL %s)\n", cfg.Registry.Sweep, cfg.Registry.EmptyTTL)

	fmt.Println("\n== Logs: ======================================================")
}
