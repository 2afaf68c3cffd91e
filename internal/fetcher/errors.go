package fetcher

import "errors"

// ErrNetwork marks a round that failed or timed out. It is logged and
// counted, never returned to consumers.
var ErrNetwork = errors.New("fetch round failed")
