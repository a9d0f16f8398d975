package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hearthlab/hearth-core/internal/device"
)

// maxReadingLimit caps sensor reading queries.
const maxReadingLimit = 1000

// handleListDevices returns all registered devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.repo.ListDevices(r.Context())
	if err != nil {
		s.logger.Error("failed to list devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []device.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleGetDevice returns one device by its firmware-reported ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	d, err := s.repo.FindDevice(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to get device", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleListReadings returns recent sensor readings for a device, newest
// first. Supports sensor_type and limit query filters.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	query := device.ReadingQuery{
		SensorType: r.URL.Query().Get("sensor_type"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxReadingLimit {
			writeBadRequest(w, "limit must be between 1 and 1000")
			return
		}
		query.Limit = limit
	}

	readings, err := s.repo.ListSensorReadings(r.Context(), deviceID, query)
	if err != nil {
		s.logger.Error("failed to list readings", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to list sensor readings")
		return
	}
	if readings == nil {
		readings = []device.SensorReading{}
	}
	writeJSON(w, http.StatusOK, readings)
}
