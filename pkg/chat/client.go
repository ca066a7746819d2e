package chat

import (
	"sync"

	"relayd/pkg/ircwire"
	"relayd/pkg/metrics"
)

// sendQueueLen bounds the per-client outbound queue; writes beyond it
// are dropped rather than blocking the sender (slow-consumer shedding).
const sendQueueLen = 64

// Client is one connected local user.
type Client struct {
	srv  *Server
	conn Conn

	send chan string
	done chan struct{}
	once sync.Once

	mu             sync.Mutex
	nick           string
	username       string
	realname       string
	registered     bool
	capNegotiating bool
	caps           map[string]bool
	grants         map[string]struct{}
}

func newClient(srv *Server, conn Conn) *Client {
	return &Client{
		srv:    srv,
		conn:   conn,
		send:   make(chan string, sendQueueLen),
		done:   make(chan struct{}),
		caps:   make(map[string]bool),
		grants: make(map[string]struct{}),
	}
}

// Nick returns the client's current nick, or empty before NICK.
func (c *Client) Nick() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nick
}

func (c *Client) registeredNow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

// HasCap reports whether the client negotiated the named capability.
func (c *Client) HasCap(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps[name]
}

// HasGrant reports whether an OPER grant is attached.
func (c *Client) HasGrant(grant string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.grants[grant]
	return ok
}

func (c *Client) attachGrants(grants []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range grants {
		c.grants[g] = struct{}{}
	}
}

// SendLine queues a raw line for delivery, dropping it if the queue is
// full.
func (c *Client) SendLine(line string) {
	select {
	case c.send <- line:
	default:
		metrics.DroppedLines.Inc()
	}
}

// SendMessage queues a formatted message.
func (c *Client) SendMessage(msg ircwire.Message) {
	c.SendLine(msg.String())
}

func (c *Client) writePump() {
	for {
		select {
		case line := <-c.send:
			if err := c.conn.WriteLine(line); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
