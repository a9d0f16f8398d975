package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrCommandNotFound is returned when a command ID does not exist.
	ErrCommandNotFound = errors.New("device: command not found")

	// ErrInvalidDevice is returned when a device fails validation (empty id).
	ErrInvalidDevice = errors.New("device: invalid")
)
