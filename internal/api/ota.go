package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthlab/hearth-core/internal/ota"
)

// handleOTAVersion returns the firmware release currently on offer.
func (s *Server) handleOTAVersion(w http.ResponseWriter, _ *http.Request) {
	if s.ota == nil {
		writeNotFound(w, "OTA service not configured")
		return
	}

	info, err := s.ota.Version()
	if err != nil {
		if errors.Is(err, ota.ErrVersionUnavailable) {
			writeNotFound(w, "version information unavailable")
			return
		}
		s.logger.Error("failed to read firmware version", "error", err)
		writeInternalError(w, "failed to read firmware version")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleOTACheck reports whether newer firmware exists for the version in
// the current_version query parameter.
func (s *Server) handleOTACheck(w http.ResponseWriter, r *http.Request) {
	if s.ota == nil {
		writeNotFound(w, "OTA service not configured")
		return
	}

	current := r.URL.Query().Get("current_version")
	if current == "" {
		writeBadRequest(w, "current_version query parameter is required")
		return
	}

	check, err := s.ota.CheckUpdate(current)
	if err != nil {
		if errors.Is(err, ota.ErrVersionUnavailable) {
			writeNotFound(w, "version information unavailable")
			return
		}
		s.logger.Error("failed to check for update", "error", err)
		writeInternalError(w, "failed to check for update")
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// handleOTAFirmware streams a firmware binary to the device.
func (s *Server) handleOTAFirmware(w http.ResponseWriter, r *http.Request) {
	if s.ota == nil {
		writeNotFound(w, "OTA service not configured")
		return
	}

	filename := chi.URLParam(r, "filename")
	path, err := s.ota.FirmwarePath(filename)
	if err != nil {
		if errors.Is(err, ota.ErrInvalidFilename) {
			writeBadRequest(w, "invalid firmware filename")
			return
		}
		writeNotFound(w, "firmware file not found")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeFile(w, r, path)
}
