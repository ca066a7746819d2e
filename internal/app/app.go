package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"relayd/internal/sweep"
	"relayd/pkg/auth"
	"relayd/pkg/banner"
	"relayd/pkg/chat"
	"relayd/pkg/config"
	"relayd/pkg/federation"
	"relayd/pkg/httpx"
	"relayd/pkg/logger"
	"relayd/pkg/relay"
	"relayd/pkg/store"
)

// App encapsulates the daemon components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	policies *relay.Store
	opers    *auth.Opers
	registry *store.Registry
	srv      *chat.Server
	hub      *federation.Hub
	pipeline *relay.Pipeline

	adminSrv  *http.Server
	healthSrv *httpx.Server
	listener  net.Listener
}

// New builds and wires all components from the effective config. It
// fails fast on an invalid relaymsg block or an unopenable registry;
// call Run to start listeners and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	cfg := eff.Config

	policies, err := relay.NewStore(policyFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("relaymsg config: %w", err)
	}

	registry, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry at %s: %w", cfg.Storage.DBPath, err)
	}

	opers := auth.NewOpers(operAccounts(cfg.Opers))
	srv := chat.NewServer(cfg.Server.Name, opers)

	// restore persisted channels before hooks are attached so the
	// restore does not re-save every record
	restored, err := registry.List()
	if err != nil {
		_ = registry.Close()
		return nil, fmt.Errorf("failed to list registry: %w", err)
	}
	for _, rc := range restored {
		srv.AddChannel(rc.Name, rc.Founder)
	}
	if len(restored) > 0 {
		logger.Info("channels_restored", "count", len(restored))
	}
	srv.SetChannelHooks(
		func(name, founder string) {
			if err := registry.Save(store.RegisteredChannel{Name: name, Founder: founder, CreatedAt: time.Now().UTC()}); err != nil {
				logger.Error("registry_save_failed", "channel", name, "error", err)
			}
		},
		func(name string) {
			if err := registry.Delete(name); err != nil {
				logger.Error("registry_delete_failed", "channel", name, "error", err)
			}
		},
	)

	limiter := auth.NewLimiterPool(auth.LimiterConfig{
		RPS:   cfg.Relaymsg.RateRPS,
		Burst: cfg.Relaymsg.RateBurst,
	})

	hub := federation.NewHub(cfg.Server.Name, cfg.Federation.Token)
	pipeline := relay.NewPipeline(policies, srv, srv, hub, limiter)
	srv.SetPipeline(pipeline)
	hub.SetHandler(func(env federation.Envelope) {
		err := pipeline.Relay(relay.Actor{Nick: env.Origin, Local: false}, env.Channel, env.Nick, env.Text)
		if err != nil {
			logger.Warn("federation_relay_rejected", "origin", env.Origin, "channel", env.Channel, "error", err)
		}
	})

	return &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		policies:  policies,
		opers:     opers,
		registry:  registry,
		srv:       srv,
		hub:       hub,
		pipeline:  pipeline,
	}, nil
}

// Run starts the federation links, the sweep scheduler and all
// listeners, and blocks until ctx is canceled or a listener fails.
func (a *App) Run(ctx context.Context) error {
	cfg := a.eff.Config

	a.printBanner()

	for _, p := range cfg.Federation.Peers {
		a.hub.AddPeer(ctx, p.Name, p.URL)
	}

	sweepCancel, err := sweep.Start(ctx, cfg.Registry.Sweep, cfg.RegistryEmptyTTL(), a.srv)
	if err != nil {
		return err
	}
	defer sweepCancel()

	errCh := make(chan error, 3)
	if err := a.startClientListener(ctx, errCh); err != nil {
		return err
	}
	a.startAdminHTTP(errCh)
	a.startHealthHTTP(errCh)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// Reload applies a changed config file: the relaymsg policy and the
// oper accounts swap atomically, everything else stays as started. An
// invalid file leaves the active settings untouched.
func (a *App) Reload(path string) error {
	eff, err := config.LoadEffective(path)
	if err != nil {
		return err
	}
	next := policyFromConfig(eff.Config)
	if err := a.policies.Swap(next); err != nil {
		return err
	}
	a.opers.Replace(operAccounts(eff.Config.Opers))
	logger.Info("config_reloaded",
		"path", path,
		"mode", string(next.Mode),
		"opers", len(eff.Config.Opers))
	return nil
}

// startClientListener accepts IRC client connections on the main
// listen address.
func (a *App) startClientListener(ctx context.Context, errCh chan<- error) error {
	ln, err := net.Listen("tcp", a.eff.Config.Server.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.eff.Config.Server.Listen, err)
	}
	a.listener = ln
	logger.Info("client_listener_started", "addr", ln.Addr().String())
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					// listener closed during shutdown
				default:
					errCh <- fmt.Errorf("accept: %w", err)
				}
				return
			}
			go a.srv.RunClient(chat.NewNetConn(c))
		}
	}()
	return nil
}

// shutdown closes listeners and the registry. Client connections are
// torn down by their closed sockets.
func (a *App) shutdown() {
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.adminSrv != nil {
		if err := a.adminSrv.Shutdown(sctx); err != nil {
			logger.Warn("admin_shutdown_error", "error", err)
		}
	}
	if a.healthSrv != nil {
		if err := a.healthSrv.Shutdown(sctx); err != nil {
			logger.Warn("health_shutdown_error", "error", err)
		}
	}
	if a.listener != nil {
		_ = a.listener.Close()
	}
	if err := a.registry.Close(); err != nil {
		logger.Warn("registry_close_error", "error", err)
	}
	logger.Info("shutdown_complete")
}

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}

// policyFromConfig maps the relaymsg config block onto a policy. The
// result is validated by the policy store, not here.
func policyFromConfig(cfg *config.Config) relay.Policy {
	return relay.Policy{
		Mode:      relay.Mode(cfg.Relaymsg.Mode),
		Separator: cfg.Relaymsg.Separator,
		Pattern:   cfg.Relaymsg.Pattern,
		Ident:     cfg.Relaymsg.Ident,
		Host:      cfg.Relaymsg.Host,
	}
}

// operAccounts maps oper config entries onto accounts.
func operAccounts(entries []config.OperConfig) []auth.Oper {
	out := make([]auth.Oper, 0, len(entries))
	for _, e := range entries {
		out = append(out, auth.Oper{
			Name:         e.Name,
			PasswordHash: e.Password,
			Grants:       append([]string(nil), e.Grants...),
		})
	}
	return out
}
