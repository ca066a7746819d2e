package chat

import (
	"strings"

	"relayd/pkg/ircwire"
)

// CapRelayMsg is the capability gating RELAYMSG under the capability
// policy and the visibility of the @relaymsg provenance tag. The name
// matches what existing bridge software negotiates.
const CapRelayMsg = "overdrivenetworks.com/relaymsg"

// advertisedCaps returns the CAP LS listing; the relaymsg value is the
// active shape hint so bridges can discover the separator/pattern.
func (s *Server) advertisedCaps() string {
	hint := ""
	if s.pipeline != nil {
		hint = s.pipeline.Policy().ShapeHint()
	}
	if hint == "" {
		return CapRelayMsg
	}
	return CapRelayMsg + "=" + hint
}

func (s *Server) handleCap(c *Client, msg ircwire.Message) {
	if len(msg.Params) == 0 {
		s.reply(c, ERR_NEEDMOREPARAMS, "CAP", "Not enough parameters")
		return
	}
	sub := strings.ToUpper(msg.Params[0])
	nick := c.Nick()
	if nick == "" {
		nick = "*"
	}
	switch sub {
	case "LS":
		c.mu.Lock()
		if !c.registered {
			c.capNegotiating = true
		}
		c.mu.Unlock()
		c.SendMessage(ircwire.Message{Source: s.name, Command: "CAP", Params: []string{nick, "LS", s.advertisedCaps()}})
	case "LIST":
		c.mu.Lock()
		var enabled []string
		for name, on := range c.caps {
			if on {
				enabled = append(enabled, name)
			}
		}
		c.mu.Unlock()
		c.SendMessage(ircwire.Message{Source: s.name, Command: "CAP", Params: []string{nick, "LIST", strings.Join(enabled, " ")}})
	case "REQ":
		if len(msg.Params) < 2 {
			s.reply(c, ERR_NEEDMOREPARAMS, "CAP", "Not enough parameters")
			return
		}
		req := strings.Fields(msg.Params[1])
		ok := true
		for _, name := range req {
			if strings.TrimPrefix(name, "-") != CapRelayMsg {
				ok = false
			}
		}
		verb := "ACK"
		if !ok {
			verb = "NAK"
		} else {
			c.mu.Lock()
			if !c.registered {
				c.capNegotiating = true
			}
			for _, name := range req {
				if strings.HasPrefix(name, "-") {
					delete(c.caps, name[1:])
				} else {
					c.caps[name] = true
				}
			}
			c.mu.Unlock()
		}
		c.SendMessage(ircwire.Message{Source: s.name, Command: "CAP", Params: []string{nick, verb, msg.Params[1]}})
	case "END":
		c.mu.Lock()
		c.capNegotiating = false
		c.mu.Unlock()
		s.tryRegister(c)
	default:
		s.reply(c, ERR_UNKNOWNCOMMAND, "CAP "+sub, "Unknown CAP subcommand")
	}
}
