// Package ircwire implements the client line format used on both the
// TCP and websocket transports: an optional @tag block, an optional
// :source prefix, a command, and space-separated parameters where the
// last parameter may be a :trailing spanning the rest of the line.
package ircwire

import (
	"errors"
	"strings"
)

// MaxLineLen is the classic limit for a full line including CRLF. Lines
// longer than this are truncated before parsing; the tag block has its
// own budget and is not counted against it.
const MaxLineLen = 512

var ErrEmptyLine = errors.New("ircwire: empty line")

// Message is one parsed protocol line.
type Message struct {
	Tags    map[string]string
	Source  string
	Command string
	Params  []string
}

// NewMessage builds a message with no tags or source.
func NewMessage(command string, params ...string) Message {
	return Message{Command: strings.ToUpper(command), Params: params}
}

// ParseLine parses a single line with any trailing CR/LF already
// acceptable; it returns ErrEmptyLine for blank input.
func ParseLine(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	line = strings.TrimLeft(line, " ")
	var msg Message

	if strings.HasPrefix(line, "@") {
		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			return msg, ErrEmptyLine
		}
		msg.Tags = parseTags(line[1:sp])
		line = strings.TrimLeft(line[sp+1:], " ")
	}
	if len(line) > MaxLineLen-2 {
		line = line[:MaxLineLen-2]
	}
	if strings.HasPrefix(line, ":") {
		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			return msg, ErrEmptyLine
		}
		msg.Source = line[1:sp]
		line = strings.TrimLeft(line[sp+1:], " ")
	}
	if line == "" {
		return msg, ErrEmptyLine
	}

	for line != "" {
		if strings.HasPrefix(line, ":") {
			msg.Params = append(msg.Params, line[1:])
			break
		}
		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			msg.Params = append(msg.Params, line)
			break
		}
		msg.Params = append(msg.Params, line[:sp])
		line = strings.TrimLeft(line[sp+1:], " ")
	}
	if len(msg.Params) == 0 {
		return msg, ErrEmptyLine
	}
	msg.Command = strings.ToUpper(msg.Params[0])
	msg.Params = msg.Params[1:]
	return msg, nil
}

// String renders the message as a wire line without CRLF. The last
// parameter is sent as trailing when it is empty or contains a space or
// leading colon.
func (m Message) String() string {
	var b strings.Builder
	if len(m.Tags) > 0 {
		b.WriteByte('@')
		first := true
		for k, v := range m.Tags {
			if !first {
				b.WriteByte(';')
			}
			first = false
			b.WriteString(k)
			if v != "" {
				b.WriteByte('=')
				b.WriteString(escapeTagValue(v))
			}
		}
		b.WriteByte(' ')
	}
	if m.Source != "" {
		b.WriteByte(':')
		b.WriteString(m.Source)
		b.WriteByte(' ')
	}
	b.WriteString(m.Command)
	for i, p := range m.Params {
		b.WriteByte(' ')
		if i == len(m.Params)-1 && (p == "" || strings.ContainsRune(p, ' ') || strings.HasPrefix(p, ":")) {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}
	return b.String()
}

// WithoutTags returns a copy of the message with the tag block removed.
func (m Message) WithoutTags() Message {
	out := m
	out.Tags = nil
	return out
}

func parseTags(block string) map[string]string {
	tags := make(map[string]string)
	for _, pair := range strings.Split(block, ";") {
		if pair == "" {
			continue
		}
		if eq := strings.IndexByte(pair, '='); eq >= 0 {
			tags[pair[:eq]] = unescapeTagValue(pair[eq+1:])
		} else {
			tags[pair] = ""
		}
	}
	return tags
}

var tagEscaper = strings.NewReplacer(
	"\\", "\\\\",
	";", "\\:",
	" ", "\\s",
	"\r", "\\r",
	"\n", "\\n",
)

func escapeTagValue(v string) string {
	return tagEscaper.Replace(v)
}

func unescapeTagValue(v string) string {
	if !strings.ContainsRune(v, '\\') {
		return v
	}
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		if v[i] != '\\' || i == len(v)-1 {
			b.WriteByte(v[i])
			continue
		}
		i++
		switch v[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}
