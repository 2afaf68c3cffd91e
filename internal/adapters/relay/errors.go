package relay

import "errors"

// Sentinel errors for relay access.
var (
	ErrNoRelays = errors.New("no relays configured")
	ErrClosed   = errors.New("relay client closed")
)
