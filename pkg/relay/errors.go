package relay

import "errors"

// Pipeline errors. All of these are per-request and terminate the
// request before any broadcast happens; ErrConfigInvalid is only ever
// returned from policy validation at startup/reload.
var (
	ErrUnauthorized     = errors.New("relay: actor not authorized")
	ErrThrottled        = errors.New("relay: actor rate limited")
	ErrChannelNotFound  = errors.New("relay: no such channel")
	ErrNotChannelMember = errors.New("relay: actor not in channel")
	ErrNicknameInUse    = errors.New("relay: spoofed nick already in use")
	ErrInvalidNickChars = errors.New("relay: invalid characters in spoofed nick")
	ErrInvalidNickShape = errors.New("relay: spoofed nick does not satisfy shape rule")
	ErrConfigInvalid    = errors.New("relay: invalid relaymsg configuration")
)
