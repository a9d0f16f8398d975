package ota

import "errors"

var (
	// ErrVersionUnavailable indicates the version metadata file is missing.
	ErrVersionUnavailable = errors.New("ota: version information unavailable")

	// ErrFirmwareNotFound indicates the requested firmware file does not exist.
	ErrFirmwareNotFound = errors.New("ota: firmware file not found")

	// ErrInvalidFilename indicates a firmware filename that escapes the
	// firmware directory.
	ErrInvalidFilename = errors.New("ota: invalid firmware filename")
)
