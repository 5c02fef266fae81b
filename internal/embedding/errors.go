package embedding

import "errors"

// ErrUnavailable marks a transient embedding backend failure. Callers may
// retry the whole operation; the engine itself already retried with backoff.
var ErrUnavailable = errors.New("embedding backend unavailable")
