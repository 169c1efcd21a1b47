package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/beamline/signage-server-go/internal/errors"
	"github.com/beamline/signage-server-go/internal/middleware"
	"github.com/beamline/signage-server-go/internal/model"
	"github.com/beamline/signage-server-go/internal/service"
)

type DeviceHandler struct {
	deviceService     *service.DeviceService
	assignmentService *service.AssignmentService
	playbackService   *service.PlaybackService
}

func NewDeviceHandler(
	deviceService *service.DeviceService,
	assignmentService *service.AssignmentService,
	playbackService *service.PlaybackService,
) *DeviceHandler {
	return &DeviceHandler{
		deviceService:     deviceService,
		assignmentService: assignmentService,
		playbackService:   playbackService,
	}
}

// Routes for authenticated operators managing their screens.
func (h *DeviceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{deviceID}", h.Get)
	r.Delete("/{deviceID}", h.Delete)
	r.Put("/{deviceID}/playlist", h.AssignPlaylist)
	r.Delete("/{deviceID}/playlist", h.ClearPlaylist)
	r.Get("/{deviceID}/playback", h.PlaybackStatus)
	r.Post("/{deviceID}/playback/auto-advance", h.SetAutoAdvance)
	r.Post("/{deviceID}/playback/{command}", h.PlaybackCommand)

	return r
}

// GET /v1/devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())

	devices, err := h.deviceService.ListByOwner(r.Context(), account.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list devices")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list devices"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

// GET /v1/devices/{deviceID}
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	deviceID := chi.URLParam(r, "deviceID")

	device, err := h.deviceService.Get(r.Context(), deviceID, account.ID)
	if err != nil {
		h.handleError(w, err, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, device)
}

// DELETE /v1/devices/{deviceID}
func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	deviceID := chi.URLParam(r, "deviceID")

	if err := h.deviceService.Delete(r.Context(), deviceID, account.ID); err != nil {
		h.handleError(w, err, "failed to delete device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

type assignRequest struct {
	PlaylistID string `json:"playlistId"`
}

// PUT /v1/devices/{deviceID}/playlist
func (h *DeviceHandler) AssignPlaylist(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	deviceID := chi.URLParam(r, "deviceID")

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.PlaylistID == "" {
		writeError(w, apperrors.MissingRequired("playlistId"))
		return
	}

	device, err := h.assignmentService.Assign(r.Context(), deviceID, &req.PlaylistID, account.ID)
	if err != nil {
		h.handleError(w, err, "failed to assign playlist")
		return
	}

	writeJSON(w, http.StatusOK, device)
}

// DELETE /v1/devices/{deviceID}/playlist
func (h *DeviceHandler) ClearPlaylist(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	deviceID := chi.URLParam(r, "deviceID")

	device, err := h.assignmentService.Assign(r.Context(), deviceID, nil, account.ID)
	if err != nil {
		h.handleError(w, err, "failed to clear playlist")
		return
	}

	writeJSON(w, http.StatusOK, device)
}

// GET /v1/devices/{deviceID}/playback
func (h *DeviceHandler) PlaybackStatus(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	deviceID := chi.URLParam(r, "deviceID")

	status, err := h.playbackService.Status(r.Context(), deviceID, account.ID)
	if err != nil {
		h.handleError(w, err, "failed to get playback status")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// POST /v1/devices/{deviceID}/playback/{command}
func (h *DeviceHandler) PlaybackCommand(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	deviceID := chi.URLParam(r, "deviceID")
	command := chi.URLParam(r, "command")

	status, err := h.playbackService.Command(r.Context(), deviceID, account.ID, command)
	if err != nil {
		h.handleError(w, err, "failed to apply playback command")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

type autoAdvanceRequest struct {
	Enabled bool `json:"enabled"`
}

// POST /v1/devices/{deviceID}/playback/auto-advance
func (h *DeviceHandler) SetAutoAdvance(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	deviceID := chi.URLParam(r, "deviceID")

	var req autoAdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	status, err := h.playbackService.SetAutoAdvance(r.Context(), deviceID, account.ID, req.Enabled)
	if err != nil {
		h.handleError(w, err, "failed to toggle auto-advance")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *DeviceHandler) handleError(w http.ResponseWriter, err error, msg string) {
	if apperrors.IsAppError(err) {
		writeError(w, err)
		return
	}
	log.Error().Err(err).Msg(msg)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

func formatDevice(d *model.Device) map[string]any {
	return map[string]any{
		"id":         d.ID,
		"name":       d.Name,
		"status":     d.Status,
		"lastSeenAt": formatTime(d.LastSeenAt),
		"playlistId": d.AssignedPlaylistID,
	}
}
