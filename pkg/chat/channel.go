package chat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Channel is a chat channel and its live membership. It satisfies the
// relay pipeline's read-only channel view.
type Channel struct {
	name string

	mu         sync.RWMutex
	members    map[*Client]struct{}
	founder    string
	emptySince time.Time
}

func newChannel(name, founder string) *Channel {
	return &Channel{
		name:       name,
		members:    make(map[*Client]struct{}),
		founder:    founder,
		emptySince: time.Now(),
	}
}

// Name returns the channel's exact identifier.
func (ch *Channel) Name() string { return ch.name }

// Founder returns the nick that first created the channel.
func (ch *Channel) Founder() string {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.founder
}

// HasMember reports whether a client with the given nick is currently
// in the channel (ascii case-insensitive).
func (ch *Channel) HasMember(nick string) bool {
	folded := fold(nick)
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	for m := range ch.members {
		if fold(m.Nick()) == folded {
			return true
		}
	}
	return false
}

// Members returns a stable snapshot of the current membership.
func (ch *Channel) Members() []*Client {
	ch.mu.RLock()
	out := make([]*Client, 0, len(ch.members))
	for m := range ch.members {
		out = append(out, m)
	}
	ch.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Nick() < out[j].Nick() })
	return out
}

func (ch *Channel) add(c *Client) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if _, ok := ch.members[c]; ok {
		return false
	}
	ch.members[c] = struct{}{}
	return true
}

func (ch *Channel) remove(c *Client) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	delete(ch.members, c)
	if len(ch.members) == 0 {
		ch.emptySince = time.Now()
	}
}

// emptyFor reports whether the channel has had no members for at least
// ttl.
func (ch *Channel) emptyFor(ttl time.Duration) bool {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return len(ch.members) == 0 && time.Since(ch.emptySince) >= ttl
}

// ValidChannelName accepts #-prefixed names without protocol
// delimiters.
func ValidChannelName(name string) bool {
	if len(name) < 2 || len(name) > 64 || name[0] != '#' {
		return false
	}
	return !strings.ContainsAny(name[1:], " ,:\x07")
}

// fold is the ascii casemapping applied to nicks and channel names.
func fold(s string) string {
	return strings.ToLower(s)
}
