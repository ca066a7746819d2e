package relay

import (
	"errors"
	"strings"
	"testing"

	"relayd/pkg/auth"
)

type fakeChannel struct {
	name    string
	members map[string]bool
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) HasMember(nick string) bool { return c.members[nick] }

type fakeDirectory struct {
	channels map[string]*fakeChannel
	nicks    map[string]bool
}

func (d *fakeDirectory) Channel(name string) (Channel, bool) {
	ch, ok := d.channels[name]
	return ch, ok
}

func (d *fakeDirectory) NickInUse(nick string) bool { return d.nicks[nick] }

type broadcastCall struct {
	channel    string
	mask       string
	text       string
	provenance string
}

type fakeBroadcaster struct{ calls []broadcastCall }

func (b *fakeBroadcaster) Broadcast(ch Channel, from Identity, text, provenance string) {
	b.calls = append(b.calls, broadcastCall{ch.Name(), from.Mask(), text, provenance})
}

type propagateCall struct{ channel, nick, text string }

type fakePropagator struct{ calls []propagateCall }

func (p *fakePropagator) Propagate(channel, nick, text string) {
	p.calls = append(p.calls, propagateCall{channel, nick, text})
}

func newTestPipeline(t *testing.T, pol Policy) (*Pipeline, *fakeDirectory, *fakeBroadcaster, *fakePropagator) {
	t.Helper()
	store, err := NewStore(pol)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	dir := &fakeDirectory{
		channels: map[string]*fakeChannel{
			"#support": {name: "#support", members: map[string]bool{"alice": true}},
		},
		nicks: map[string]bool{"alice": true, "bob": true},
	}
	bc := &fakeBroadcaster{}
	prop := &fakePropagator{}
	return NewPipeline(store, dir, bc, prop, nil), dir, bc, prop
}

func capPolicy() Policy {
	return Policy{Mode: ModeCapability, Separator: "/", Ident: "relay", Host: "relay.example.com"}
}

func permPolicy() Policy {
	return Policy{Mode: ModePermission, Pattern: "*/*", Ident: "relay", Host: "relay.example.com"}
}

func TestRelayEndToEnd(t *testing.T) {
	p, _, bc, prop := newTestPipeline(t, capPolicy())
	actor := Actor{Nick: "alice", Local: true, Capability: true}

	if err := p.Relay(actor, "#support", "carol/relay", "hello"); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if len(bc.calls) != 1 {
		t.Fatalf("broadcasts: got %d", len(bc.calls))
	}
	call := bc.calls[0]
	if call.mask != "carol/relay!relay@relay.example.com" {
		t.Fatalf("mask: got %q", call.mask)
	}
	if call.text != "hello" {
		t.Fatalf("text altered: %q", call.text)
	}
	if call.provenance != "alice" {
		t.Fatalf("provenance: got %q", call.provenance)
	}
	if len(prop.calls) != 1 {
		t.Fatalf("propagations: got %d", len(prop.calls))
	}
	if prop.calls[0] != (propagateCall{"#support", "carol/relay", "hello"}) {
		t.Fatalf("propagation payload: %#v", prop.calls[0])
	}
}

func TestRelayUnauthorizedIsSilentAndSideEffectFree(t *testing.T) {
	p, _, bc, prop := newTestPipeline(t, capPolicy())
	err := p.Relay(Actor{Nick: "alice", Local: true}, "#support", "carol/relay", "hello")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(bc.calls) != 0 || len(prop.calls) != 0 {
		t.Fatal("unauthorized request produced side effects")
	}
}

func TestRelayChannelGate(t *testing.T) {
	p, _, bc, _ := newTestPipeline(t, capPolicy())
	actor := Actor{Nick: "alice", Local: true, Capability: true}

	if err := p.Relay(actor, "#nope", "carol/relay", "hi"); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}

	outsider := Actor{Nick: "mallory", Local: true, Capability: true}
	if err := p.Relay(outsider, "#support", "carol/relay", "hi"); !errors.Is(err, ErrNotChannelMember) {
		t.Fatalf("expected ErrNotChannelMember, got %v", err)
	}
	if len(bc.calls) != 0 {
		t.Fatal("gated request reached broadcast")
	}
}

func TestRelayCharsetRejectionBothModes(t *testing.T) {
	for _, pol := range []Policy{capPolicy(), permPolicy()} {
		p, _, bc, _ := newTestPipeline(t, pol)
		actor := Actor{Nick: "alice", Local: true, Capability: true, Grant: true}
		for _, c := range "!+%@&#$:'\"?*,." {
			nick := "bad" + string(c) + "/nick"
			err := p.Relay(actor, "#support", nick, "hi")
			if !errors.Is(err, ErrInvalidNickChars) {
				t.Fatalf("mode %s nick %q: expected ErrInvalidNickChars, got %v", pol.Mode, nick, err)
			}
		}
		if len(bc.calls) != 0 {
			t.Fatalf("mode %s: rejected nick broadcast anyway", pol.Mode)
		}
	}
}

func TestRelayShapeSeparatorMode(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, capPolicy())
	actor := Actor{Nick: "alice", Local: true, Capability: true}

	if err := p.Relay(actor, "#support", "alice2/bridge", "hi"); err != nil {
		t.Fatalf("separator nick rejected: %v", err)
	}
	if err := p.Relay(actor, "#support", "alicebridge", "hi"); !errors.Is(err, ErrInvalidNickShape) {
		t.Fatalf("expected ErrInvalidNickShape, got %v", err)
	}
}

func TestRelayShapeGlobMode(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, permPolicy())
	actor := Actor{Nick: "alice", Local: true, Grant: true}

	if err := p.Relay(actor, "#support", "bob2/xyz", "hi"); err != nil {
		t.Fatalf("glob-matching nick rejected: %v", err)
	}
	if err := p.Relay(actor, "#support", "bob2", "hi"); !errors.Is(err, ErrInvalidNickShape) {
		t.Fatalf("expected ErrInvalidNickShape, got %v", err)
	}
}

func TestRelayCollision(t *testing.T) {
	p, dir, _, _ := newTestPipeline(t, capPolicy())
	dir.nicks["carol/relay"] = true
	actor := Actor{Nick: "alice", Local: true, Capability: true}

	err := p.Relay(actor, "#support", "carol/relay", "hi")
	if !errors.Is(err, ErrNicknameInUse) {
		t.Fatalf("expected ErrNicknameInUse, got %v", err)
	}
}

func TestRelayPeerOriginatedSkipsChecksAndNeverPropagates(t *testing.T) {
	p, dir, bc, prop := newTestPipeline(t, capPolicy())
	// in-use nick and shapeless nick: both fine for a propagated copy,
	// the originating server already vetted them
	dir.nicks["shapeless"] = true
	peer := Actor{Nick: "hub.example.net", Local: false}

	if err := p.Relay(peer, "#support", "shapeless", "hi"); err != nil {
		t.Fatalf("peer-originated relay rejected: %v", err)
	}
	if len(bc.calls) != 1 {
		t.Fatalf("broadcasts: got %d", len(bc.calls))
	}
	if len(prop.calls) != 0 {
		t.Fatal("peer-originated relay triggered re-propagation")
	}
}

func TestRelayPeerOriginatedTrustedInPermissionMode(t *testing.T) {
	p, _, bc, prop := newTestPipeline(t, permPolicy())
	// a peer link holds no oper grant; the initiating server already
	// authorized the request
	peer := Actor{Nick: "hub.example.net", Local: false}

	if err := p.Relay(peer, "#support", "carol/relay", "hi"); err != nil {
		t.Fatalf("peer-originated relay rejected: %v", err)
	}
	if len(bc.calls) != 1 {
		t.Fatalf("broadcasts: got %d", len(bc.calls))
	}
	if len(prop.calls) != 0 {
		t.Fatal("peer-originated relay triggered re-propagation")
	}
}

func TestRelayPeerOriginatedCarriesNoProvenance(t *testing.T) {
	p, _, bc, _ := newTestPipeline(t, capPolicy())
	peer := Actor{Nick: "hub.example.net", Local: false}

	if err := p.Relay(peer, "#support", "carol/relay", "hi"); err != nil {
		t.Fatalf("peer-originated relay rejected: %v", err)
	}
	if got := bc.calls[0].provenance; got != "" {
		t.Fatalf("peer re-broadcast must carry no provenance, got %q", got)
	}
}

func TestRelayPermissionModeNoProvenance(t *testing.T) {
	p, _, bc, _ := newTestPipeline(t, permPolicy())
	actor := Actor{Nick: "alice", Local: true, Grant: true}

	if err := p.Relay(actor, "#support", "carol/relay", "hi"); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if bc.calls[0].provenance != "" {
		t.Fatalf("permission mode attached provenance %q", bc.calls[0].provenance)
	}
}

func TestRelayThrottled(t *testing.T) {
	store, err := NewStore(capPolicy())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	dir := &fakeDirectory{
		channels: map[string]*fakeChannel{"#support": {name: "#support", members: map[string]bool{"alice": true}}},
		nicks:    map[string]bool{},
	}
	bc := &fakeBroadcaster{}
	prop := &fakePropagator{}
	lim := auth.NewLimiterPool(auth.LimiterConfig{RPS: 0.0001, Burst: 1})
	p := NewPipeline(store, dir, bc, prop, lim)
	actor := Actor{Nick: "alice", Local: true, Capability: true}

	if err := p.Relay(actor, "#support", "a/b", "one"); err != nil {
		t.Fatalf("first relay: %v", err)
	}
	if err := p.Relay(actor, "#support", "a/b", "two"); !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	if len(bc.calls) != 1 || len(prop.calls) != 1 {
		t.Fatal("throttled request produced side effects")
	}
}

func TestCheckNickCharsetAllowsRelayPunctuation(t *testing.T) {
	for _, nick := range []string{"user/bridge", "user~x", "user-x", "u_ser/b"} {
		if err := CheckNickCharset(nick); err != nil {
			t.Fatalf("nick %q rejected: %v", nick, err)
		}
	}
	if err := CheckNickCharset(""); !errors.Is(err, ErrInvalidNickChars) {
		t.Fatal("empty nick must be rejected")
	}
	if !strings.Contains(disallowedNickChars, "*") {
		t.Fatal("wildcard must stay disallowed")
	}
}
