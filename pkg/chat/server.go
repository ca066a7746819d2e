package chat

import (
	"sync"
	"time"

	"relayd/pkg/auth"
	"relayd/pkg/ircwire"
	"relayd/pkg/logger"
	"relayd/pkg/metrics"
	"relayd/pkg/relay"
)

// Server owns the connection registry and the channel directory. It is
// the relay pipeline's Directory and Broadcaster.
type Server struct {
	name string

	mu       sync.RWMutex
	clients  map[string]*Client  // folded nick -> client
	channels map[string]*Channel // folded name -> channel

	pipeline *relay.Pipeline
	opers    *auth.Opers

	// registry persistence hooks, set by the app when a channel
	// registry is configured
	onChannelCreate func(name, founder string)
	onChannelRemove func(name string)
}

// NewServer builds a server with the given canonical name.
func NewServer(name string, opers *auth.Opers) *Server {
	return &Server{
		name:     name,
		clients:  make(map[string]*Client),
		channels: make(map[string]*Channel),
		opers:    opers,
	}
}

// Name returns the server's canonical name.
func (s *Server) Name() string { return s.name }

// SetPipeline attaches the relay pipeline. Called once during wiring;
// the pipeline needs the server as its directory so construction is
// two-phase.
func (s *Server) SetPipeline(p *relay.Pipeline) { s.pipeline = p }

// SetChannelHooks attaches registry persistence callbacks.
func (s *Server) SetChannelHooks(onCreate func(name, founder string), onRemove func(name string)) {
	s.onChannelCreate = onCreate
	s.onChannelRemove = onRemove
}

// Channel implements relay.Directory.
func (s *Server) Channel(name string) (relay.Channel, bool) {
	s.mu.RLock()
	ch, ok := s.channels[fold(name)]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return ch, true
}

// NickInUse implements relay.Directory: true when a real connected
// user currently holds the nick.
func (s *Server) NickInUse(nick string) bool {
	s.mu.RLock()
	_, ok := s.clients[fold(nick)]
	s.mu.RUnlock()
	return ok
}

// lookupChannel returns the concrete channel.
func (s *Server) lookupChannel(name string) (*Channel, bool) {
	s.mu.RLock()
	ch, ok := s.channels[fold(name)]
	s.mu.RUnlock()
	return ch, ok
}

func (s *Server) lookupClient(nick string) (*Client, bool) {
	s.mu.RLock()
	c, ok := s.clients[fold(nick)]
	s.mu.RUnlock()
	return c, ok
}

// AddChannel creates (or returns) a channel, persisting new ones
// through the registry hook. Used by JOIN and by startup restore.
func (s *Server) AddChannel(name, founder string) *Channel {
	s.mu.Lock()
	ch, ok := s.channels[fold(name)]
	if !ok {
		ch = newChannel(name, founder)
		s.channels[fold(name)] = ch
		metrics.Channels.Set(float64(len(s.channels)))
	}
	s.mu.Unlock()
	if !ok && s.onChannelCreate != nil {
		s.onChannelCreate(name, founder)
	}
	return ch
}

// SweepEmptyChannels drops channels that have been empty for at least
// ttl and returns their names.
func (s *Server) SweepEmptyChannels(ttl time.Duration) []string {
	s.mu.Lock()
	var dropped []string
	for key, ch := range s.channels {
		if ch.emptyFor(ttl) {
			delete(s.channels, key)
			dropped = append(dropped, ch.Name())
		}
	}
	metrics.Channels.Set(float64(len(s.channels)))
	s.mu.Unlock()
	for _, name := range dropped {
		if s.onChannelRemove != nil {
			s.onChannelRemove(name)
		}
		logger.Info("channel_swept", "channel", name)
	}
	return dropped
}

// Stats is the admin-surface snapshot.
type Stats struct {
	Clients  int `json:"clients"`
	Channels int `json:"channels"`
}

func (s *Server) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Clients: len(s.clients), Channels: len(s.channels)}
}

// ChannelInfo is one entry of the admin channel listing.
type ChannelInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
	Founder string `json:"founder,omitempty"`
}

func (s *Server) ChannelList() []ChannelInfo {
	s.mu.RLock()
	chans := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		chans = append(chans, ch)
	}
	s.mu.RUnlock()
	out := make([]ChannelInfo, 0, len(chans))
	for _, ch := range chans {
		out = append(out, ChannelInfo{Name: ch.Name(), Members: len(ch.Members()), Founder: ch.Founder()})
	}
	return out
}

// bindNick reserves nick for c, releasing c's previous nick. Returns
// false when another client holds it.
func (s *Server) bindNick(c *Client, nick string) bool {
	folded := fold(nick)
	s.mu.Lock()
	defer s.mu.Unlock()
	if holder, ok := s.clients[folded]; ok && holder != c {
		return false
	}
	c.mu.Lock()
	old := c.nick
	c.nick = nick
	c.mu.Unlock()
	if old != "" {
		delete(s.clients, fold(old))
	}
	s.clients[folded] = c
	return true
}

func (s *Server) removeClient(c *Client) {
	nick := c.Nick()
	if nick != "" && s.pipeline != nil {
		s.pipeline.Forget(nick)
	}
	s.mu.Lock()
	if nick != "" {
		if holder, ok := s.clients[fold(nick)]; ok && holder == c {
			delete(s.clients, fold(nick))
		}
	}
	chans := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		chans = append(chans, ch)
	}
	s.mu.Unlock()
	for _, ch := range chans {
		ch.remove(c)
	}
	if c.registeredNow() {
		metrics.ConnectedClients.Dec()
	}
}

// sharedChannels returns channels c is currently a member of.
func (s *Server) sharedChannels(c *Client) []*Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Channel
	for _, ch := range s.channels {
		ch.mu.RLock()
		_, in := ch.members[c]
		ch.mu.RUnlock()
		if in {
			out = append(out, ch)
		}
	}
	return out
}

// reply sends a numeric to the client with the server as source.
func (s *Server) reply(c *Client, numeric string, params ...string) {
	nick := c.Nick()
	if nick == "" {
		nick = "*"
	}
	msg := ircwire.Message{Source: s.name, Command: numeric, Params: append([]string{nick}, params...)}
	c.SendMessage(msg)
}

// RunClient serves one connection to completion. It blocks until the
// connection closes; callers run it in its own goroutine per
// connection.
func (s *Server) RunClient(conn Conn) {
	c := newClient(s, conn)
	go c.writePump()
	logger.Debug("client_connected", "remote", conn.RemoteAddr())
	for {
		line, err := conn.ReadLine()
		if err != nil {
			break
		}
		msg, perr := ircwire.ParseLine(line)
		if perr != nil {
			continue
		}
		if quit := s.dispatch(c, msg); quit {
			break
		}
	}
	s.quitClient(c, "connection closed")
}

func (s *Server) quitClient(c *Client, reason string) {
	if c.registeredNow() {
		notice := ircwire.Message{Source: c.Nick(), Command: "QUIT", Params: []string{reason}}
		for _, ch := range s.sharedChannels(c) {
			for _, m := range ch.Members() {
				if m != c {
					m.SendMessage(notice)
				}
			}
		}
	}
	s.removeClient(c)
	c.close()
	logger.Debug("client_disconnected", "nick", c.Nick(), "reason", reason)
}
