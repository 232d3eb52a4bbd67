package sensor

import "errors"

// Domain errors for the sensor package.
var (
	// ErrUnknownSensorType is returned when no factory exists for a sensor type.
	ErrUnknownSensorType = errors.New("sensor: unknown type")

	// ErrBusMissing is returned when a sensor's bus is not in the bus registry.
	ErrBusMissing = errors.New("sensor: bus missing")

	// ErrSensorExists is returned when registering a second sensor with the same id.
	ErrSensorExists = errors.New("sensor: already registered")

	// ErrWrongBus is returned when a sensor is attached to a bus of the wrong family.
	ErrWrongBus = errors.New("sensor: wrong bus family")

	// ErrNoDevice is returned when a sensor's device cannot be found.
	ErrNoDevice = errors.New("sensor: device not found")

	// ErrNotInitialized is returned by composite sensors whose companion
	// did not start.
	ErrNotInitialized = errors.New("sensor: not initialized")

	// ErrPanic wraps a recovered driver panic.
	ErrPanic = errors.New("sensor: driver panic")

	// ErrCRC is returned when the w1 driver reports a CRC failure.
	ErrCRC = errors.New("sensor: crc check failed")

	// ErrInvalidSettings is returned when sensor settings are malformed.
	ErrInvalidSettings = errors.New("sensor: invalid settings")
)
