package chat

import (
	"errors"
	"strings"

	"relayd/pkg/auth"
	"relayd/pkg/ircwire"
	"relayd/pkg/logger"
	"relayd/pkg/metrics"
	"relayd/pkg/relay"
)

// dispatch routes one parsed line. It returns true when the connection
// should be torn down.
func (s *Server) dispatch(c *Client, msg ircwire.Message) bool {
	switch msg.Command {
	case "CAP":
		s.handleCap(c, msg)
	case "NICK":
		s.handleNick(c, msg)
	case "USER":
		s.handleUser(c, msg)
	case "PING":
		token := ""
		if len(msg.Params) > 0 {
			token = msg.Params[0]
		}
		c.SendMessage(ircwire.Message{Source: s.name, Command: "PONG", Params: []string{s.name, token}})
	case "PONG":
		// nothing to do
	case "QUIT":
		return true
	case "JOIN":
		if s.requireRegistered(c) {
			s.handleJoin(c, msg)
		}
	case "PART":
		if s.requireRegistered(c) {
			s.handlePart(c, msg)
		}
	case "PRIVMSG":
		if s.requireRegistered(c) {
			s.handlePrivmsg(c, msg)
		}
	case "OPER":
		if s.requireRegistered(c) {
			s.handleOper(c, msg)
		}
	case "RELAYMSG":
		if s.requireRegistered(c) {
			s.handleRelayMsg(c, msg)
		}
	default:
		s.reply(c, ERR_UNKNOWNCOMMAND, msg.Command, "Unknown command")
	}
	return false
}

func (s *Server) requireRegistered(c *Client) bool {
	if c.registeredNow() {
		return true
	}
	s.reply(c, ERR_NOTREGISTERED, "You have not registered")
	return false
}

func (s *Server) handleNick(c *Client, msg ircwire.Message) {
	if len(msg.Params) == 0 || msg.Params[0] == "" {
		s.reply(c, ERR_NONICKNAMEGIVEN, "No nickname given")
		return
	}
	nick := msg.Params[0]
	if !validNick(nick) {
		s.reply(c, ERR_ERRONEUSNICK, nick, "Erroneous nickname")
		return
	}
	old := c.Nick()
	if !s.bindNick(c, nick) {
		s.reply(c, ERR_NICKNAMEINUSE, nick, "Nickname is already in use")
		return
	}
	if c.registeredNow() && old != "" && old != nick {
		note := ircwire.Message{Source: old, Command: "NICK", Params: []string{nick}}
		c.SendMessage(note)
		seen := map[*Client]bool{c: true}
		for _, ch := range s.sharedChannels(c) {
			for _, m := range ch.Members() {
				if !seen[m] {
					seen[m] = true
					m.SendMessage(note)
				}
			}
		}
		return
	}
	s.tryRegister(c)
}

func (s *Server) handleUser(c *Client, msg ircwire.Message) {
	if c.registeredNow() {
		return
	}
	if len(msg.Params) < 4 {
		s.reply(c, ERR_NEEDMOREPARAMS, "USER", "Not enough parameters")
		return
	}
	c.mu.Lock()
	c.username = msg.Params[0]
	c.realname = msg.Params[3]
	c.mu.Unlock()
	s.tryRegister(c)
}

// tryRegister completes registration once NICK and USER are both in
// and any CAP negotiation was ended.
func (s *Server) tryRegister(c *Client) {
	c.mu.Lock()
	ready := !c.registered && c.nick != "" && c.username != "" && !c.capNegotiating
	if ready {
		c.registered = true
	}
	c.mu.Unlock()
	if !ready {
		return
	}
	metrics.ConnectedClients.Inc()
	s.reply(c, RPL_WELCOME, "Welcome to the network "+c.Nick())
	s.reply(c, RPL_YOURHOST, "Your host is "+s.name)
	logger.Info("client_registered", "nick", c.Nick())
}

func (s *Server) handleJoin(c *Client, msg ircwire.Message) {
	if len(msg.Params) == 0 {
		s.reply(c, ERR_NEEDMOREPARAMS, "JOIN", "Not enough parameters")
		return
	}
	for _, name := range strings.Split(msg.Params[0], ",") {
		if !ValidChannelName(name) {
			s.reply(c, ERR_NOSUCHCHANNEL, name, "No such channel")
			continue
		}
		ch := s.AddChannel(name, c.Nick())
		if !ch.add(c) {
			continue
		}
		join := ircwire.Message{Source: c.Nick(), Command: "JOIN", Params: []string{ch.Name()}}
		for _, m := range ch.Members() {
			m.SendMessage(join)
		}
		names := make([]string, 0, 8)
		for _, m := range ch.Members() {
			names = append(names, m.Nick())
		}
		s.reply(c, RPL_NAMREPLY, "=", ch.Name(), strings.Join(names, " "))
		s.reply(c, RPL_ENDOFNAMES, ch.Name(), "End of /NAMES list")
	}
}

func (s *Server) handlePart(c *Client, msg ircwire.Message) {
	if len(msg.Params) == 0 {
		s.reply(c, ERR_NEEDMOREPARAMS, "PART", "Not enough parameters")
		return
	}
	reason := ""
	if len(msg.Params) > 1 {
		reason = msg.Params[1]
	}
	for _, name := range strings.Split(msg.Params[0], ",") {
		ch, ok := s.lookupChannel(name)
		if !ok || !ch.HasMember(c.Nick()) {
			s.reply(c, ERR_NOSUCHCHANNEL, name, "No such channel")
			continue
		}
		part := ircwire.Message{Source: c.Nick(), Command: "PART", Params: []string{ch.Name(), reason}}
		for _, m := range ch.Members() {
			m.SendMessage(part)
		}
		ch.remove(c)
	}
}

func (s *Server) handlePrivmsg(c *Client, msg ircwire.Message) {
	if len(msg.Params) < 2 {
		s.reply(c, ERR_NEEDMOREPARAMS, "PRIVMSG", "Not enough parameters")
		return
	}
	target, text := msg.Params[0], msg.Params[1]
	if text == "" {
		s.reply(c, ERR_NOTEXTTOSEND, "No text to send")
		return
	}
	out := ircwire.Message{Source: c.Nick(), Command: "PRIVMSG", Params: []string{target, text}}
	if strings.HasPrefix(target, "#") {
		ch, ok := s.lookupChannel(target)
		if !ok {
			s.reply(c, ERR_NOSUCHCHANNEL, target, "No such channel")
			return
		}
		if !ch.HasMember(c.Nick()) {
			s.reply(c, ERR_CANNOTSENDTO, target, "Cannot send to channel")
			return
		}
		for _, m := range ch.Members() {
			if m != c {
				m.SendMessage(out)
			}
		}
		return
	}
	peer, ok := s.lookupClient(target)
	if !ok {
		s.reply(c, ERR_NOSUCHNICK, target, "No such nick")
		return
	}
	peer.SendMessage(out)
}

func (s *Server) handleOper(c *Client, msg ircwire.Message) {
	if len(msg.Params) < 2 {
		s.reply(c, ERR_NEEDMOREPARAMS, "OPER", "Not enough parameters")
		return
	}
	if s.opers == nil {
		s.reply(c, ERR_PASSWDMISMATCH, "Password incorrect")
		return
	}
	acct, ok := s.opers.Verify(msg.Params[0], msg.Params[1])
	if !ok {
		s.reply(c, ERR_PASSWDMISMATCH, "Password incorrect")
		logger.Warn("oper_failed", "name", msg.Params[0], "nick", c.Nick())
		return
	}
	c.attachGrants(acct.Grants)
	s.reply(c, RPL_YOUREOPER, "You are now an IRC operator")
	logger.Info("oper_granted", "name", acct.Name, "nick", c.Nick())
}

// handleRelayMsg feeds the relay pipeline and maps its errors onto the
// user-visible numerics. Unauthorized and throttled requests fail
// silently.
func (s *Server) handleRelayMsg(c *Client, msg ircwire.Message) {
	if s.pipeline == nil {
		return
	}
	if len(msg.Params) < 3 {
		s.reply(c, ERR_NEEDMOREPARAMS, "RELAYMSG", "Not enough parameters")
		return
	}
	// text sent without a trailing colon splits on spaces; fold the
	// surplus back together
	channel, nick := msg.Params[0], msg.Params[1]
	text := strings.Join(msg.Params[2:], " ")
	if text == "" {
		s.reply(c, ERR_NOTEXTTOSEND, "No text to send")
		return
	}
	actor := relay.Actor{
		Nick:       c.Nick(),
		Local:      true,
		Capability: c.HasCap(CapRelayMsg),
		Grant:      c.HasGrant(auth.GrantRelayMsg),
	}
	err := s.pipeline.Relay(actor, channel, nick, text)
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrUnauthorized), errors.Is(err, relay.ErrThrottled):
		// silent fail-fast
	case errors.Is(err, relay.ErrChannelNotFound):
		s.reply(c, ERR_NOSUCHCHANNEL, channel, "No such channel")
	case errors.Is(err, relay.ErrNotChannelMember):
		s.reply(c, ERR_CANNOTSENDTO, channel, "You must be in the channel to use this command")
	case errors.Is(err, relay.ErrNicknameInUse):
		s.reply(c, ERR_BADRELAYNICK, nick, "RELAYMSG spoofed nick is already in use")
	case errors.Is(err, relay.ErrInvalidNickChars):
		s.reply(c, ERR_BADRELAYNICK, nick, "Invalid characters in spoofed nick")
	case errors.Is(err, relay.ErrInvalidNickShape):
		pol := s.pipeline.Policy()
		if pol.Mode == relay.ModePermission {
			s.reply(c, ERR_BADRELAYNICK, nick, "Spoofed nickname must match pattern "+pol.Pattern)
		} else {
			s.reply(c, ERR_BADRELAYNICK, nick, "Spoofed nickname must include separator "+pol.Separator)
		}
	}
}

// validNick is the rule for real connection nicks; spoofed relay nicks
// have their own, looser rule in the relay package.
func validNick(nick string) bool {
	if len(nick) == 0 || len(nick) > 32 {
		return false
	}
	if nick[0] == '#' || nick[0] == ':' || (nick[0] >= '0' && nick[0] <= '9') {
		return false
	}
	return !strings.ContainsAny(nick, " ,*?!@.#:&+%$'\"")
}
