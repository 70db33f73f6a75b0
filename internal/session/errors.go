package session

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when an operator action is not valid in
// the current state. No side effects run.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrNoActiveCall is an invalid transition attempted while idle.
var ErrNoActiveCall = fmt.Errorf("%w: no active call", ErrInvalidTransition)

// ErrDeviceUnavailable is returned for device actions when no device is wired.
var ErrDeviceUnavailable = errors.New("telephony device unavailable")
