package relay

import (
	"errors"
	"testing"
)

func TestPolicyValidate(t *testing.T) {
	good := Policy{Mode: ModeCapability, Separator: "/", Ident: "relay", Host: "relay.example.com"}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}

	cases := []Policy{
		{Mode: "nonsense", Separator: "/", Ident: "relay", Host: "relay.example.com"},
		{Mode: ModeCapability, Separator: "", Ident: "relay", Host: "relay.example.com"},
		{Mode: ModePermission, Pattern: "", Ident: "relay", Host: "relay.example.com"},
		{Mode: ModeCapability, Separator: "/", Ident: "re lay", Host: "relay.example.com"},
		{Mode: ModeCapability, Separator: "/", Ident: "relay", Host: "relay..example"},
		{Mode: ModeCapability, Separator: "/", Ident: "relay", Host: "-bad.example"},
		{Mode: ModeCapability, Separator: "/", Ident: "", Host: "relay.example.com"},
	}
	for i, p := range cases {
		if err := p.Validate(); !errors.Is(err, ErrConfigInvalid) {
			t.Fatalf("case %d: expected ErrConfigInvalid, got %v", i, err)
		}
	}
}

func TestValidHostIsHostSyntax(t *testing.T) {
	// host rule admits things the ident rule would and rejects ident
	// punctuation like backticks
	if !ValidHost("relay.example.com") || !ValidHost("localhost") {
		t.Fatal("plain hostnames must pass")
	}
	if ValidHost("re`lay.example.com") {
		t.Fatal("ident punctuation must not pass the host rule")
	}
	if ValidHost("") {
		t.Fatal("empty host must fail")
	}
}

func TestStoreSwapRejectsInvalidKeepingActive(t *testing.T) {
	s, err := NewStore(Policy{Mode: ModeCapability, Separator: "/", Ident: "relay", Host: "h.example"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	bad := Policy{Mode: ModeCapability, Separator: "/", Ident: "bad ident", Host: "h.example"}
	if err := s.Swap(bad); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
	if got := s.Current().Ident; got != "relay" {
		t.Fatalf("active policy mutated by failed swap: ident %q", got)
	}

	next := Policy{Mode: ModePermission, Pattern: "*/*", Ident: "bridge", Host: "h.example"}
	if err := s.Swap(next); err != nil {
		t.Fatalf("valid swap failed: %v", err)
	}
	if s.Current().Mode != ModePermission {
		t.Fatal("swap did not take effect")
	}
}

func TestAuthorize(t *testing.T) {
	cap := Policy{Mode: ModeCapability}
	perm := Policy{Mode: ModePermission}

	if cap.Authorize(Actor{Local: true}) {
		t.Fatal("capability mode: local actor without cap authorized")
	}
	if !cap.Authorize(Actor{Local: true, Capability: true}) {
		t.Fatal("capability mode: local actor with cap rejected")
	}
	if !cap.Authorize(Actor{Local: false}) {
		t.Fatal("capability mode: peer-originated actor must be trusted")
	}
	if perm.Authorize(Actor{Local: true, Capability: true}) {
		t.Fatal("permission mode: cap alone must not authorize")
	}
	if !perm.Authorize(Actor{Local: false, Grant: true}) {
		t.Fatal("permission mode: grant must authorize regardless of locality")
	}
}

func TestSynthesize(t *testing.T) {
	p := Policy{Ident: "relay", Host: "relay.example.com"}
	id := p.Synthesize("carol/relay")
	if id.Mask() != "carol/relay!relay@relay.example.com" {
		t.Fatalf("mask: got %q", id.Mask())
	}
}
