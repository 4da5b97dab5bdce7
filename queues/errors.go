package queues

import "github.com/pkg/errors"

// Errors returned by the manager. They are wrapped with context, use errors.Is to test for them.
var (
	// ErrNotFound is returned when the requested index exceeds the number of queues available for a key.
	ErrNotFound = errors.New("device not found on system")

	// ErrUnsupportedKey is returned for (backend, device type) combinations the manager doesn't cache.
	ErrUnsupportedKey = errors.New("unsupported device type")

	// ErrNoActiveQueue is returned when the activation stack is empty, because no default device could be resolved.
	ErrNoActiveQueue = errors.New("no currently active queue")

	// ErrReleased is returned when using a Queue handle after Release.
	ErrReleased = errors.New("queue handle already released")
)

// catch converts a panic raised by a runtime call into an error, stored in *err.
// Use it deferred: defer catch(&err, "building catalog for %s", key).
func catch(err *error, format string, args ...any) {
	r := recover()
	if r == nil {
		return
	}
	if rErr, ok := r.(error); ok {
		*err = errors.WithMessagef(rErr, "panic while "+format, args...)
		return
	}
	*err = errors.Errorf("panic while "+format+": %v", append(args, r)...)
}
