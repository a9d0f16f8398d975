// Package ota serves firmware update metadata and binaries to devices.
//
// Release metadata lives in a version.json file beside the firmware
// directory; a default is seeded on first run. Devices poll CheckUpdate
// with their running version and download binaries resolved through
// FirmwarePath, which confines access to the firmware directory.
package ota
