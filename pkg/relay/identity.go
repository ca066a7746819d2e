package relay

// Identity is the synthetic nick!ident@host triple presented as a relay
// message's apparent origin. It is built per request, never registered
// as a connection, and discarded once the message is out.
type Identity struct {
	Nick  string
	Ident string
	Host  string
}

// Mask renders the identity as a source prefix.
func (id Identity) Mask() string {
	return id.Nick + "!" + id.Ident + "@" + id.Host
}

// Synthesize composes the apparent sender for nick under this policy.
// Inputs are assumed already validated.
func (p Policy) Synthesize(nick string) Identity {
	return Identity{Nick: nick, Ident: p.Ident, Host: p.Host}
}
