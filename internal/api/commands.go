package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hearthlab/hearth-core/internal/device"
	"github.com/hearthlab/hearth-core/internal/infrastructure/mqtt"
)

// commandRequest is the body for POST /devices/{id}/commands.
type commandRequest struct {
	Command string `json:"command"`
	Payload any    `json:"payload,omitempty"`
}

// handleSendCommand persists a command record and relays it to the device
// over the broker. Fire-and-forget: a broker outage fails the command
// immediately rather than queueing it.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	if _, err := s.repo.FindDevice(r.Context(), deviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to look up device", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to look up device")
		return
	}

	payload := ""
	if req.Payload != nil {
		encoded, err := json.Marshal(req.Payload)
		if err != nil {
			writeBadRequest(w, "payload is not serialisable")
			return
		}
		payload = string(encoded)
	}

	cmd := &device.Command{
		ID:       uuid.NewString(),
		DeviceID: deviceID,
		Command:  req.Command,
		Payload:  payload,
		Status:   device.CommandStatusPending,
	}
	if err := s.repo.CreateCommand(r.Context(), cmd); err != nil {
		s.logger.Error("failed to store command", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to store command")
		return
	}

	if s.commands == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "command delivery unavailable")
		return
	}

	if err := s.commands.PublishCommand(deviceID, req.Command, req.Payload, cmd.ID); err != nil {
		cmd.Status = device.CommandStatusFailed
		if updateErr := s.repo.UpdateCommandStatus(r.Context(), cmd.ID, device.CommandStatusFailed, nil); updateErr != nil {
			s.logger.Error("failed to mark command failed", "command_id", cmd.ID, "error", updateErr)
		}
		if errors.Is(err, mqtt.ErrNotConnected) {
			writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "message broker not connected")
			return
		}
		s.logger.Error("failed to publish command", "command_id", cmd.ID, "error", err)
		writeInternalError(w, "failed to publish command")
		return
	}

	cmd.Status = device.CommandStatusSent
	if err := s.repo.UpdateCommandStatus(r.Context(), cmd.ID, device.CommandStatusSent, nil); err != nil {
		s.logger.Error("failed to mark command sent", "command_id", cmd.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, cmd)
}

// handleListCommands returns recent commands for a device, newest first.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	commands, err := s.repo.ListCommands(r.Context(), deviceID, limit)
	if err != nil {
		s.logger.Error("failed to list commands", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	if commands == nil {
		commands = []device.Command{}
	}
	writeJSON(w, http.StatusOK, commands)
}
