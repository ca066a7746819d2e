package relay

import (
	"fmt"
	"strings"
	"sync/atomic"

	glob "github.com/ryanuber/go-glob"
)

// Mode selects which authorization policy governs the deployment. It is
// a configuration decision, fixed for the lifetime of a loaded policy,
// never a per-request choice.
type Mode string

const (
	// ModeCapability permits local actors that negotiated the relaymsg
	// capability; peer-originated requests are presumed authorized by
	// the originating server.
	ModeCapability Mode = "capability"
	// ModePermission permits actors holding the relaymsg oper grant,
	// regardless of locality.
	ModePermission Mode = "permission"
)

// Defaults applied when the config leaves the fields unset.
const (
	DefaultSeparator = "/"
	DefaultPattern   = "*/*"
	DefaultIdent     = "relay"
)

// Policy is the process-wide relaymsg configuration, loaded and
// validated as a unit. Under ModeCapability the nickname shape rule is
// the separator; under ModePermission it is the glob pattern.
type Policy struct {
	Mode      Mode
	Separator string
	Pattern   string
	Ident     string
	Host      string
}

// Validate reports ErrConfigInvalid (wrapped with detail) unless the
// policy is fully usable: known mode, non-empty shape rule, and ident
// and host each satisfying the syntax rules applied to a real
// connection's ident/host.
func (p Policy) Validate() error {
	switch p.Mode {
	case ModeCapability, ModePermission:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrConfigInvalid, p.Mode)
	}
	switch p.Mode {
	case ModeCapability:
		if p.Separator == "" {
			return fmt.Errorf("%w: empty separator", ErrConfigInvalid)
		}
	case ModePermission:
		if p.Pattern == "" {
			return fmt.Errorf("%w: empty nick pattern", ErrConfigInvalid)
		}
	}
	if !ValidIdent(p.Ident) {
		return fmt.Errorf("%w: invalid ident %q", ErrConfigInvalid, p.Ident)
	}
	if !ValidHost(p.Host) {
		return fmt.Errorf("%w: invalid host %q", ErrConfigInvalid, p.Host)
	}
	return nil
}

// Authorize implements the authorization gate for this policy.
func (p Policy) Authorize(a Actor) bool {
	switch p.Mode {
	case ModeCapability:
		return !a.Local || a.Capability
	case ModePermission:
		return a.Grant
	}
	return false
}

// checkShape applies the mode-selected shape rule.
func (p Policy) checkShape(nick string) error {
	switch p.Mode {
	case ModeCapability:
		if !strings.Contains(nick, p.Separator) {
			return ErrInvalidNickShape
		}
	case ModePermission:
		if !glob.Glob(p.Pattern, nick) {
			return ErrInvalidNickShape
		}
	}
	return nil
}

// ShapeHint is the human-readable description of the active shape rule,
// used in the notice sent back on shape failures and as the CAP value.
func (p Policy) ShapeHint() string {
	if p.Mode == ModePermission {
		return p.Pattern
	}
	return p.Separator
}

// Store holds the active policy and swaps it atomically at reload
// boundaries. Request processing only ever observes a fully validated
// policy; an invalid replacement is rejected without touching the
// active one.
type Store struct {
	p atomic.Pointer[Policy]
}

// NewStore validates the initial policy and returns a store holding it.
func NewStore(p Policy) (*Store, error) {
	s := &Store{}
	if err := s.Swap(p); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the active policy. The returned pointer must be
// treated as read-only.
func (s *Store) Current() *Policy {
	return s.p.Load()
}

// Swap validates next and installs it as a unit. On error the active
// policy is left unchanged.
func (s *Store) Swap(next Policy) error {
	if err := next.Validate(); err != nil {
		return err
	}
	s.p.Store(&next)
	return nil
}

// ValidIdent reports whether s is acceptable as a connection ident:
// non-empty, at most 20 octets, letters, digits and the usual
// ident punctuation, with no protocol-control characters.
func ValidIdent(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case strings.IndexByte("[]^_-`{|}.", c) >= 0:
		default:
			return false
		}
	}
	return true
}

// ValidHost reports whether s is acceptable as a connection hostname:
// dot-separated labels of letters, digits and hyphens, no label
// starting or ending with a hyphen. This is deliberately the
// host-syntax rule, not the ident rule.
func ValidHost(s string) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			switch {
			case c >= 'a' && c <= 'z':
			case c >= 'A' && c <= 'Z':
			case c >= '0' && c <= '9':
			case c == '-':
			default:
				return false
			}
		}
	}
	return true
}
