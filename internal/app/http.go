package app

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relayd/internal/sweep"
	"relayd/pkg/chat"
	"relayd/pkg/federation"
	"relayd/pkg/httpx"
	"relayd/pkg/logger"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// browser clients connect from any origin; the IRC registration
	// handshake is the access control
	CheckOrigin: func(r *http.Request) bool { return true },
}

// adminRouter builds the admin/status surface plus the websocket
// client and federation endpoints. The websocket upgrades need
// net/http, so this surface always runs on it.
func (a *App) adminRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.readyzHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/status", a.statusHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/channels", a.channelsHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/sweep", a.sweepHandler).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", a.wsHandler)
	r.HandleFunc("/federation", a.hub.HandleInbound)
	return r
}

func (a *App) startAdminHTTP(errCh chan<- error) {
	a.adminSrv = &http.Server{Addr: a.eff.Config.Server.AdminListen, Handler: a.adminRouter()}
	logger.Info("admin_listener_started", "addr", a.eff.Config.Server.AdminListen)
	go func() {
		if err := a.adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
}

// startHealthHTTP serves a bare health endpoint on a separate address
// when configured, on the engine the config selects.
func (a *App) startHealthHTTP(errCh chan<- error) {
	addr := a.eff.Config.Server.HealthListen
	if addr == "" {
		return
	}
	a.healthSrv = httpx.NewServer(a.eff.Config.Server.HealthEngine, addr, func(w httpx.ResponseWriter, r *httpx.Request) {
		if r.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	logger.Info("health_listener_started", "addr", addr, "engine", a.eff.Config.Server.HealthEngine)
	go func() {
		if err := a.healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// readyzHandler reports ready once the channel registry is open.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !a.registry.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","version":"` + ver + `"}`))
}

type statusResponse struct {
	Server  string                  `json:"server"`
	Mode    string                  `json:"mode"`
	Stats   chat.Stats              `json:"stats"`
	Peers   []federation.PeerStatus `json:"peers"`
	Version string                  `json:"version,omitempty"`
}

func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Server:  a.srv.Name(),
		Mode:    string(a.pipeline.Policy().Mode),
		Stats:   a.srv.Stats(),
		Peers:   a.hub.Peers(),
		Version: a.version,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *App) channelsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a.srv.ChannelList())
}

// sweepHandler triggers the empty-channel sweep on demand with the
// configured TTL.
func (a *App) sweepHandler(w http.ResponseWriter, r *http.Request) {
	removed := sweep.RunOnce(a.srv, a.eff.Config.RegistryEmptyTTL())
	if removed == nil {
		removed = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"removed": removed,
	})
}

// wsHandler upgrades a browser connection and runs the normal client
// loop over it, one IRC line per text frame.
func (a *App) wsHandler(w http.ResponseWriter, r *http.Request) {
	c, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	go a.srv.RunClient(chat.NewWSConn(c))
}
