package worker

import "errors"

// ErrTaskPanicked wraps a recovered panic from a task body.
var ErrTaskPanicked = errors.New("task panicked")
