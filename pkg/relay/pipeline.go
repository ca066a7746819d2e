// Package relay implements the RELAYMSG pipeline: deciding whether an
// actor may post under a synthetic identity, validating the requested
// nick, fanning the message out locally and propagating it across the
// federation exactly once.
package relay

import (
	"relayd/pkg/auth"
	"relayd/pkg/logger"
	"relayd/pkg/metrics"
)

// Actor describes the requesting connection as far as the pipeline
// cares: its true nick, whether it is a local client or a peer link,
// and its authorization state under either policy.
type Actor struct {
	Nick       string
	Local      bool
	Capability bool // negotiated the relaymsg capability
	Grant      bool // holds the relaymsg oper grant
}

// Channel is the read-only view of a target channel.
type Channel interface {
	Name() string
	HasMember(nick string) bool
}

// Directory is the channel/connection directory the pipeline queries.
// It is owned by the chat core; the pipeline only reads it.
type Directory interface {
	Channel(name string) (Channel, bool)
	NickInUse(nick string) bool
}

// Broadcaster delivers the message to every current channel member
// under the synthetic identity. provenance is the true requester nick
// (capability mode) or empty; it is only shown to recipients that
// negotiated the capability.
type Broadcaster interface {
	Broadcast(ch Channel, from Identity, text, provenance string)
}

// Propagator forwards a relay instruction to peer servers. It is
// invoked at most once per request, and only for locally originated
// ones.
type Propagator interface {
	Propagate(channel, nick, text string)
}

// Pipeline wires the gates together. One instance serves the whole
// process; the policy store is swapped underneath it on reload.
type Pipeline struct {
	policies *Store
	dir      Directory
	bc       Broadcaster
	prop     Propagator
	limiter  *auth.LimiterPool // optional
}

func NewPipeline(policies *Store, dir Directory, bc Broadcaster, prop Propagator, limiter *auth.LimiterPool) *Pipeline {
	return &Pipeline{policies: policies, dir: dir, bc: bc, prop: prop, limiter: limiter}
}

// Policy returns the currently active policy.
func (p *Pipeline) Policy() *Policy {
	return p.policies.Current()
}

// Forget releases the per-actor throttle state, called when the
// actor's connection goes away.
func (p *Pipeline) Forget(nick string) {
	if p.limiter != nil {
		p.limiter.Forget(nick)
	}
}

// Relay runs one request to completion. Broadcast and propagation are
// all-or-nothing: nothing is emitted unless every check passed. The
// returned error identifies the failing check; ErrUnauthorized and
// ErrThrottled are silent (callers send no reply for them).
func (p *Pipeline) Relay(a Actor, channelName, nick, text string) error {
	pol := p.policies.Current()

	// Peer-originated requests were authorized by the initiating
	// server; re-running the gate here would demand local grants a
	// peer link can never hold.
	if a.Local && !pol.Authorize(a) {
		metrics.RelayRequests.WithLabelValues("unauthorized").Inc()
		return ErrUnauthorized
	}
	if a.Local && p.limiter != nil && !p.limiter.Allow(a.Nick) {
		metrics.RelayRequests.WithLabelValues("throttled").Inc()
		return ErrThrottled
	}

	ch, ok := p.dir.Channel(channelName)
	if !ok {
		metrics.RelayRequests.WithLabelValues("no_channel").Inc()
		return ErrChannelNotFound
	}
	// Membership is checked at the initiating server; a peer link is
	// not itself a channel member.
	if a.Local && !ch.HasMember(a.Nick) {
		metrics.RelayRequests.WithLabelValues("not_member").Inc()
		return ErrNotChannelMember
	}

	if err := CheckNickCharset(nick); err != nil {
		metrics.RelayRequests.WithLabelValues("bad_chars").Inc()
		return err
	}
	if a.Local {
		if err := pol.checkShape(nick); err != nil {
			metrics.RelayRequests.WithLabelValues("bad_shape").Inc()
			return err
		}
		// The originating server is authoritative for collisions;
		// peers re-delivering a propagated message do not re-check.
		if p.dir.NickInUse(nick) {
			metrics.RelayRequests.WithLabelValues("nick_in_use").Inc()
			return ErrNicknameInUse
		}
	}

	id := pol.Synthesize(nick)
	// Provenance is the true requester's nickname. It never crosses
	// the federation, so a peer re-broadcast carries none; the actor
	// nick there is the origin server, not a requester.
	provenance := ""
	if a.Local && pol.Mode == ModeCapability {
		provenance = a.Nick
	}
	p.bc.Broadcast(ch, id, text, provenance)

	if a.Local && p.prop != nil {
		p.prop.Propagate(ch.Name(), nick, text)
	}

	metrics.RelayRequests.WithLabelValues("accepted").Inc()
	logger.Debug("relay_delivered", "channel", ch.Name(), "nick", nick, "local", a.Local)
	return nil
}
