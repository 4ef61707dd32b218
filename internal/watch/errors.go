package watch

import "errors"

// setupError signals that the watch target was missing or unreadable at
// supervisor initialization. There is nothing meaningful to watch, so the
// caller must abort startup.
type setupError struct {
	path string
	err  error
}

func (e setupError) Error() string { return "watch setup: " + e.path + ": " + e.err.Error() }
func (e setupError) Unwrap() error { return e.err }

// IsSetup reports whether err indicates a fatal initialization failure.
func IsSetup(err error) bool {
	var se setupError
	return errors.As(err, &se)
}

// targetLostError signals that the watched file disappeared after
// initialization. The watch contract cannot be fulfilled; the loop exits
// rather than restart-looping against a nonexistent file.
type targetLostError struct{ path string }

func (e targetLostError) Error() string { return "watch target lost: " + e.path }

// ErrTargetLost constructs a targetLostError.
func ErrTargetLost(path string) error { return targetLostError{path: path} }

// IsTargetLost reports whether err indicates the watched file disappeared.
func IsTargetLost(err error) bool {
	var tl targetLostError
	return errors.As(err, &tl)
}
