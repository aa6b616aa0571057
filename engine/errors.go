package engine

import "errors"

// ErrNotConnected is matched by every NotConnectedError.
var ErrNotConnected = errors.New("simulator not connected")

// NotConnectedError is returned by emission and replay while the
// simulator is disconnected. Recover with Connect and retry.
type NotConnectedError struct {
	Op string
}

func (e *NotConnectedError) Error() string {
	if e.Op == "" {
		return ErrNotConnected.Error()
	}
	return e.Op + ": " + ErrNotConnected.Error()
}

func (e *NotConnectedError) Is(target error) bool {
	return target == ErrNotConnected
}
