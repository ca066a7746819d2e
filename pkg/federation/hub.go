// Package federation maintains websocket links to peer servers and
// carries relay envelopes across them. Delivery is best-effort,
// at-most-once: a down or congested link drops the envelope, there are
// no acks and no retries.
package federation

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/websocket"

	"relayd/pkg/logger"
	"relayd/pkg/metrics"
)

// TokenHeader authenticates peer links in both directions.
const TokenHeader = "X-Relayd-Token"

// InboundHandler receives envelopes arriving from peers. The handler
// must treat them as pre-authorized and must never propagate them
// again.
type InboundHandler func(Envelope)

// Hub owns all peer links of this server.
type Hub struct {
	origin string
	token  string

	mu      sync.RWMutex
	peers   map[string]*Peer
	handler InboundHandler
}

func NewHub(origin, token string) *Hub {
	return &Hub{origin: origin, token: token, peers: make(map[string]*Peer)}
}

// SetHandler attaches the inbound envelope handler.
func (h *Hub) SetHandler(fn InboundHandler) {
	h.mu.Lock()
	h.handler = fn
	h.mu.Unlock()
}

// AddPeer registers an outbound link and starts its dial loop.
func (h *Hub) AddPeer(ctx context.Context, name, url string) {
	p := newPeer(name, url, h.token)
	h.mu.Lock()
	h.peers[name] = p
	h.mu.Unlock()
	go p.run(ctx)
}

// Propagate implements relay.Propagator: one envelope per peer link,
// dropped when the link is down or its queue is full.
func (h *Hub) Propagate(channel, nick, text string) {
	env := Envelope{Channel: channel, Nick: nick, Text: text, Origin: h.origin}
	data, err := env.encode()
	if err != nil {
		logger.Error("federation_encode_failed", "error", err)
		return
	}
	h.mu.RLock()
	peers := make([]*Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()
	for _, p := range peers {
		if p.offer(data) {
			metrics.FederationSent.Inc()
		} else {
			metrics.FederationDropped.Inc()
			logger.Debug("federation_envelope_dropped", "peer", p.name)
		}
	}
}

// PeerStatus is the admin-surface view of one link.
type PeerStatus struct {
	Name      string `json:"name"`
	URL       string `json:"url,omitempty"`
	Connected bool   `json:"connected"`
}

func (h *Hub) Peers() []PeerStatus {
	h.mu.RLock()
	out := make([]PeerStatus, 0, len(h.peers))
	for _, p := range h.peers {
		out = append(out, PeerStatus{Name: p.name, URL: p.url, Connected: p.isConnected()})
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// peer links authenticate by token, not origin
	CheckOrigin: func(*http.Request) bool { return true },
}

// HandleInbound serves the /federation endpoint: upgrades the
// connection and feeds arriving envelopes to the handler.
func (h *Hub) HandleInbound(w http.ResponseWriter, r *http.Request) {
	if h.token == "" || r.Header.Get(TokenHeader) != h.token {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("federation_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()
	logger.Info("federation_peer_connected", "remote", r.RemoteAddr)
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("federation_peer_gone", "remote", r.RemoteAddr)
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		env, err := decodeEnvelope(data)
		if err != nil {
			logger.Warn("federation_bad_envelope", "remote", r.RemoteAddr, "error", err)
			continue
		}
		if env.Origin == h.origin {
			// our own name coming back; a misconfigured peer loop
			logger.Warn("federation_self_envelope", "remote", r.RemoteAddr)
			continue
		}
		metrics.FederationReceived.Inc()
		h.mu.RLock()
		handler := h.handler
		h.mu.RUnlock()
		if handler != nil {
			handler(env)
		}
	}
}
