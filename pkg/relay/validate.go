package relay

import "strings"

// disallowedNickChars are characters that carry protocol meaning
// elsewhere (prefix sigils, mask wildcards, parameter delimiters) and
// must never appear in a spoofed nick. The set is fixed and applies in
// both policy modes. Everything else is allowed, which keeps spoofed
// nicks more flexible than regular ones ("/" and "~" in particular).
const disallowedNickChars = "!+%@&#$:'\"?*,."

// CheckNickCharset rejects empty nicks and nicks containing any
// disallowed character.
func CheckNickCharset(nick string) error {
	if nick == "" {
		return ErrInvalidNickChars
	}
	if strings.ContainsAny(nick, disallowedNickChars) {
		return ErrInvalidNickChars
	}
	return nil
}
