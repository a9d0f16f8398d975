package ota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hearthlab/hearth-core/internal/infrastructure/config"
	"github.com/hearthlab/hearth-core/internal/infrastructure/logging"
)

// VersionInfo describes the firmware release currently on offer.
type VersionInfo struct {
	Version            string `json:"version"`
	Build              int    `json:"build"`
	ReleaseDate        string `json:"release_date"`
	Changelog          string `json:"changelog"`
	FirmwareURL        string `json:"firmware_url"`
	Checksum           string `json:"checksum"`
	SizeBytes          int64  `json:"size_bytes"`
	MinRequiredVersion string `json:"min_required_version"`
}

// UpdateCheck is the answer to a device asking whether newer firmware exists.
type UpdateCheck struct {
	UpdateAvailable bool         `json:"update_available"`
	LatestVersion   string       `json:"latest_version"`
	CurrentVersion  string       `json:"current_version"`
	VersionInfo     *VersionInfo `json:"version_info,omitempty"`
}

// Service serves firmware version metadata and firmware binaries from a
// directory on disk.
type Service struct {
	firmwareDir string
	versionFile string
	logger      *logging.Logger
}

// New creates the OTA service, ensuring the firmware directory exists and
// seeding a default version file on first run.
func New(cfg config.OTAConfig, logger *logging.Logger) (*Service, error) {
	s := &Service{
		firmwareDir: cfg.FirmwareDir,
		versionFile: cfg.VersionFile,
		logger:      logger,
	}

	if err := os.MkdirAll(s.firmwareDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating firmware directory: %w", err)
	}

	if _, err := os.Stat(s.versionFile); os.IsNotExist(err) {
		if err := s.writeDefaultVersion(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// writeDefaultVersion seeds version.json with an initial release entry.
func (s *Service) writeDefaultVersion() error {
	info := VersionInfo{
		Version:            "1.0.0",
		Build:              1,
		ReleaseDate:        time.Now().UTC().Format(time.RFC3339),
		Changelog:          "Initial release",
		FirmwareURL:        "/api/v1/ota/firmware/firmware.bin",
		MinRequiredVersion: "0.0.0",
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding default version info: %w", err)
	}
	if err := os.WriteFile(s.versionFile, data, 0o640); err != nil {
		return fmt.Errorf("writing default version file: %w", err)
	}

	s.logger.Info("created default firmware version file", "path", s.versionFile)
	return nil
}

// Version returns the current firmware release metadata.
func (s *Service) Version() (*VersionInfo, error) {
	data, err := os.ReadFile(s.versionFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVersionUnavailable
		}
		return nil, fmt.Errorf("reading version file: %w", err)
	}

	var info VersionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing version file: %w", err)
	}
	return &info, nil
}

// CheckUpdate reports whether the offered firmware is newer than the
// device's current version.
func (s *Service) CheckUpdate(currentVersion string) (*UpdateCheck, error) {
	info, err := s.Version()
	if err != nil {
		return nil, err
	}

	check := &UpdateCheck{
		LatestVersion:  info.Version,
		CurrentVersion: currentVersion,
	}
	if isNewerVersion(info.Version, currentVersion) {
		check.UpdateAvailable = true
		check.VersionInfo = info
	}
	return check, nil
}

// FirmwarePath resolves a firmware filename inside the firmware directory.
// Names that escape the directory are rejected.
func (s *Service) FirmwarePath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", ErrInvalidFilename
	}

	path := filepath.Join(s.firmwareDir, filename)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		s.logger.Warn("firmware file not found", "path", path)
		return "", ErrFirmwareNotFound
	}
	return path, nil
}

// isNewerVersion compares dotted numeric versions part by part. Shorter
// versions are padded with zeros; unparseable versions never count as newer.
func isNewerVersion(latest, current string) bool {
	latestParts := versionParts(latest)
	currentParts := versionParts(current)
	if latestParts == nil || currentParts == nil {
		return false
	}

	for len(latestParts) < len(currentParts) {
		latestParts = append(latestParts, 0)
	}
	for len(currentParts) < len(latestParts) {
		currentParts = append(currentParts, 0)
	}

	for i := range latestParts {
		if latestParts[i] != currentParts[i] {
			return latestParts[i] > currentParts[i]
		}
	}
	return false
}

func versionParts(version string) []int {
	fields := strings.Split(version, ".")
	parts := make([]int, 0, len(fields))
	for _, field := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil
		}
		parts = append(parts, n)
	}
	return parts
}
