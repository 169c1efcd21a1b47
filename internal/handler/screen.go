package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/beamline/signage-server-go/internal/errors"
	"github.com/beamline/signage-server-go/internal/middleware"
	"github.com/beamline/signage-server-go/internal/service"
)

// ScreenHandler serves the device-facing API: everything here is
// authenticated by the device token issued at pairing.
type ScreenHandler struct {
	deviceService   *service.DeviceService
	playbackService *service.PlaybackService
}

func NewScreenHandler(
	deviceService *service.DeviceService,
	playbackService *service.PlaybackService,
) *ScreenHandler {
	return &ScreenHandler{
		deviceService:   deviceService,
		playbackService: playbackService,
	}
}

func (h *ScreenHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/heartbeat", h.Heartbeat)
	r.Get("/self", h.Self)
	r.Post("/playback/resume", h.ResumePlayback)
	r.Get("/playback", h.PlaybackStatus)

	return r
}

// POST /v1/device/heartbeat
func (h *ScreenHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	device := middleware.GetDevice(r.Context())

	if err := h.deviceService.Heartbeat(r.Context(), device.ID); err != nil {
		log.Error().Err(err).Str("deviceId", device.ID).Msg("failed to record heartbeat")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to record heartbeat"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// GET /v1/device/self
func (h *ScreenHandler) Self(w http.ResponseWriter, r *http.Request) {
	device := middleware.GetDevice(r.Context())
	writeJSON(w, http.StatusOK, formatDevice(device))
}

// POST /v1/device/playback/resume rebuilds the playback session from
// the stored assignment after a reconnect or server restart.
func (h *ScreenHandler) ResumePlayback(w http.ResponseWriter, r *http.Request) {
	device := middleware.GetDevice(r.Context())

	status, err := h.playbackService.Resume(r.Context(), device.ID)
	if err != nil {
		if apperrors.IsAppError(err) {
			writeError(w, err)
			return
		}
		log.Error().Err(err).Str("deviceId", device.ID).Msg("failed to resume playback")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to resume playback"})
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// GET /v1/device/playback
func (h *ScreenHandler) PlaybackStatus(w http.ResponseWriter, r *http.Request) {
	device := middleware.GetDevice(r.Context())

	status, err := h.playbackService.Status(r.Context(), device.ID, "")
	if err != nil {
		if apperrors.IsAppError(err) {
			writeError(w, err)
			return
		}
		log.Error().Err(err).Str("deviceId", device.ID).Msg("failed to get playback status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, status)
}
