package chat

import (
	"time"

	"github.com/google/uuid"

	"relayd/pkg/ircwire"
	"relayd/pkg/relay"
)

// serverTimeFormat is the IRCv3 server-time timestamp layout.
const serverTimeFormat = "2006-01-02T15:04:05.000Z"

// Broadcast implements relay.Broadcaster: the message goes to every
// current member under the synthetic identity, synchronously. Members
// that negotiated the relaymsg capability additionally receive the tag
// block (msgid, time, and the provenance tag when present); everyone
// else gets the bare line. Provenance never reaches clients that did
// not negotiate the capability.
func (s *Server) Broadcast(ch relay.Channel, from relay.Identity, text, provenance string) {
	target, ok := ch.(*Channel)
	if !ok {
		if target, ok = s.lookupChannel(ch.Name()); !ok {
			return
		}
	}

	plain := ircwire.Message{
		Source:  from.Mask(),
		Command: "PRIVMSG",
		Params:  []string{target.Name(), text},
	}
	tagged := plain
	tagged.Tags = map[string]string{
		"msgid": uuid.NewString(),
		"time":  time.Now().UTC().Format(serverTimeFormat),
	}
	if provenance != "" {
		tagged.Tags["relaymsg"] = provenance
	}

	for _, m := range target.Members() {
		if m.HasCap(CapRelayMsg) {
			m.SendMessage(tagged)
		} else {
			m.SendMessage(plain)
		}
	}
}
