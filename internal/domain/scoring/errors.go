package scoring

import "errors"

// ErrUnknownRule is returned for a score rule name that is not supported.
var ErrUnknownRule = errors.New("unknown score rule")
