package ircwire

import (
	"strings"
	"testing"
)

func TestParseLineBasic(t *testing.T) {
	msg, err := ParseLine("PRIVMSG #support :hello there\r\n")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if msg.Command != "PRIVMSG" {
		t.Fatalf("command: got %q", msg.Command)
	}
	if len(msg.Params) != 2 || msg.Params[0] != "#support" || msg.Params[1] != "hello there" {
		t.Fatalf("params: got %#v", msg.Params)
	}
}

func TestParseLineSourceAndTags(t *testing.T) {
	msg, err := ParseLine("@relaymsg=alice;msgid=abc :carol/relay!relay@relay.example.com PRIVMSG #support :hi")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if msg.Source != "carol/relay!relay@relay.example.com" {
		t.Fatalf("source: got %q", msg.Source)
	}
	if msg.Tags["relaymsg"] != "alice" || msg.Tags["msgid"] != "abc" {
		t.Fatalf("tags: got %#v", msg.Tags)
	}
}

func TestParseLineLowercaseCommand(t *testing.T) {
	msg, err := ParseLine("join #a")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if msg.Command != "JOIN" {
		t.Fatalf("command not folded: %q", msg.Command)
	}
}

func TestParseLineEmpty(t *testing.T) {
	if _, err := ParseLine("\r\n"); err != ErrEmptyLine {
		t.Fatalf("expected ErrEmptyLine, got %v", err)
	}
	if _, err := ParseLine("   "); err != ErrEmptyLine {
		t.Fatalf("expected ErrEmptyLine for blanks, got %v", err)
	}
}

func TestStringTrailing(t *testing.T) {
	m := NewMessage("PRIVMSG", "#a", "two words")
	if got := m.String(); got != "PRIVMSG #a :two words" {
		t.Fatalf("got %q", got)
	}
	m = NewMessage("PRIVMSG", "#a", "oneword")
	if got := m.String(); got != "PRIVMSG #a oneword" {
		t.Fatalf("got %q", got)
	}
	m = NewMessage("PRIVMSG", "#a", "")
	if got := m.String(); got != "PRIVMSG #a :" {
		t.Fatalf("empty trailing: got %q", got)
	}
}

func TestTagEscapingRoundTrip(t *testing.T) {
	m := Message{
		Tags:    map[string]string{"relaymsg": "a b;c\\d"},
		Command: "PRIVMSG",
		Params:  []string{"#a", "x"},
	}
	line := m.String()
	if strings.ContainsRune(strings.SplitN(line, " ", 2)[0], ' ') {
		t.Fatalf("tag block contains raw space: %q", line)
	}
	back, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if back.Tags["relaymsg"] != "a b;c\\d" {
		t.Fatalf("tag round trip: got %q", back.Tags["relaymsg"])
	}
}

func TestParseLineTruncation(t *testing.T) {
	long := "PRIVMSG #a :" + strings.Repeat("x", 2*MaxLineLen)
	msg, err := ParseLine(long)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if len(msg.String()) > MaxLineLen-2 {
		t.Fatalf("line not truncated: %d", len(msg.String()))
	}
}
