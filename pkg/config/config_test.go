package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  name: irc.example.com
  listen: ":6700"
relaymsg:
  mode: permission
  pattern: "*/*/*"
  ident: bridge
  host: bridge.example.com
  rate_rps: 2
  rate_burst: 4
opers:
  - name: bridgebot
    password: "$2a$10$abcdefghijklmnopqrstuv"
    grants: [relaymsg]
federation:
  token: s3cret
  peers:
    - name: hub
      url: ws://hub.example.com:8070/federation
registry:
  empty_ttl: 48h
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relayd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEffectiveFromFile(t *testing.T) {
	eff, err := LoadEffective(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	cfg := eff.Config
	if eff.Source != "config" {
		t.Fatalf("source: %q", eff.Source)
	}
	if cfg.Server.Name != "irc.example.com" || cfg.Server.Listen != ":6700" {
		t.Fatalf("server block: %#v", cfg.Server)
	}
	if cfg.Relaymsg.Mode != "permission" || cfg.Relaymsg.Pattern != "*/*/*" {
		t.Fatalf("relaymsg block: %#v", cfg.Relaymsg)
	}
	if len(cfg.Opers) != 1 || cfg.Opers[0].Grants[0] != "relaymsg" {
		t.Fatalf("opers: %#v", cfg.Opers)
	}
	if len(cfg.Federation.Peers) != 1 || cfg.Federation.Peers[0].Name != "hub" {
		t.Fatalf("peers: %#v", cfg.Federation.Peers)
	}
	if cfg.RegistryEmptyTTL() != 48*time.Hour {
		t.Fatalf("empty_ttl: %v", cfg.RegistryEmptyTTL())
	}
	// defaults still fill the gaps
	if cfg.Server.AdminListen != ":8070" || cfg.Registry.Sweep == "" {
		t.Fatalf("defaults not applied: %#v", cfg.Server)
	}
}

func TestDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Relaymsg.Mode != "capability" || cfg.Relaymsg.Separator != "/" {
		t.Fatalf("relaymsg defaults: %#v", cfg.Relaymsg)
	}
	if cfg.Relaymsg.Ident != "relay" {
		t.Fatalf("ident default: %q", cfg.Relaymsg.Ident)
	}
	// host defaults to the server's own canonical name
	if cfg.Relaymsg.Host != cfg.Server.Name {
		t.Fatalf("host default: %q vs name %q", cfg.Relaymsg.Host, cfg.Server.Name)
	}
	if cfg.RegistryEmptyTTL() != 168*time.Hour {
		t.Fatalf("ttl default: %v", cfg.RegistryEmptyTTL())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RELAYD_SERVER_NAME", "env.example.com")
	t.Setenv("RELAYD_RELAYMSG_SEPARATOR", "|")
	t.Setenv("RELAYD_RELAYMSG_RATE_RPS", "7.5")

	eff, err := LoadEffective(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	cfg := eff.Config
	if eff.Source != "env" {
		t.Fatalf("source: %q", eff.Source)
	}
	if cfg.Server.Name != "env.example.com" {
		t.Fatalf("name: %q", cfg.Server.Name)
	}
	if cfg.Relaymsg.Separator != "|" {
		t.Fatalf("separator: %q", cfg.Relaymsg.Separator)
	}
	if cfg.Relaymsg.RateRPS != 7.5 {
		t.Fatalf("rate: %v", cfg.Relaymsg.RateRPS)
	}
	if cfg.Relaymsg.Host != "env.example.com" {
		t.Fatalf("host should follow the env name: %q", cfg.Relaymsg.Host)
	}
}

func TestLoadEffectiveBadYAML(t *testing.T) {
	if _, err := LoadEffective(writeConfig(t, "server: [broken")); err == nil {
		t.Fatal("expected parse error")
	}
}
