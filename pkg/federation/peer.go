package federation

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"relayd/pkg/logger"
)

const (
	peerQueueLen     = 128
	peerWriteTimeout = 10 * time.Second
	redialMin        = time.Second
	redialMax        = 30 * time.Second
)

// Peer is one outbound link. Envelopes are queued and written by the
// dial loop; anything queued while the link is down is dropped by
// offer, not retried.
type Peer struct {
	name  string
	url   string
	token string

	out       chan []byte
	connected atomic.Bool
}

func newPeer(name, url, token string) *Peer {
	return &Peer{name: name, url: url, token: token, out: make(chan []byte, peerQueueLen)}
}

func (p *Peer) isConnected() bool { return p.connected.Load() }

// offer queues data for delivery without blocking.
func (p *Peer) offer(data []byte) bool {
	if !p.connected.Load() {
		return false
	}
	select {
	case p.out <- data:
		return true
	default:
		return false
	}
}

// run dials the peer until ctx is canceled, with doubling backoff
// between attempts, and writes queued envelopes while connected.
func (p *Peer) run(ctx context.Context) {
	backoff := redialMin
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.url, http.Header{TokenHeader: []string{p.token}})
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > redialMax {
				backoff = redialMax
			}
			continue
		}
		backoff = redialMin
		logger.Info("federation_link_up", "peer", p.name)
		p.connected.Store(true)
		p.writeLoop(ctx, conn)
		p.connected.Store(false)
		_ = conn.Close()
		logger.Warn("federation_link_down", "peer", p.name)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (p *Peer) writeLoop(ctx context.Context, conn *websocket.Conn) {
	// drain reads so pings and closes are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-p.out:
			_ = conn.SetWriteDeadline(time.Now().Add(peerWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
