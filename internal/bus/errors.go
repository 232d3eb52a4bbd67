package bus

import "errors"

// Domain errors for the bus package.
var (
	// ErrBusExists is returned when registering a second bus with the same name.
	ErrBusExists = errors.New("bus: already registered")

	// ErrUnknownFamily is returned when no factory exists for a bus family.
	ErrUnknownFamily = errors.New("bus: unknown family")

	// ErrNotStarted is returned when scanning a bus that was never started.
	ErrNotStarted = errors.New("bus: not started")
)
