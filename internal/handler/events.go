package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/beamline/signage-server-go/internal/middleware"
	"github.com/beamline/signage-server-go/internal/model"
	"github.com/beamline/signage-server-go/internal/service"
	"github.com/beamline/signage-server-go/internal/sse"
)

// EventsHandler streams control-plane events (assignments, playback
// commands) over SSE, to the device itself and to operators watching
// a device's channel.
type EventsHandler struct {
	broker        *sse.Broker
	deviceService *service.DeviceService
}

func NewEventsHandler(broker *sse.Broker, deviceService *service.DeviceService) *EventsHandler {
	return &EventsHandler{broker: broker, deviceService: deviceService}
}

// ServeHTTP is the device-facing stream, authenticated by device token.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	device := middleware.GetDevice(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	h.stream(w, r, device)
}

// WatchDevice lets an authenticated operator observe a device's event
// channel. Ownership is checked the same way as every other device read.
func (h *EventsHandler) WatchDevice(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	device, err := h.deviceService.Get(r.Context(), chi.URLParam(r, "deviceID"), account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.stream(w, r, device)
}

func (h *EventsHandler) stream(w http.ResponseWriter, r *http.Request, device *model.Device) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(device.ID)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("deviceId", device.ID).
		Msg("sse connection established")

	ctx := r.Context()

	// Opening event carries the stored assignment so a reconnecting
	// device can recover its playlist without polling.
	var assignedPlaylistID string
	if device.AssignedPlaylistID != nil {
		assignedPlaylistID = *device.AssignedPlaylistID
	}
	if err := h.sendEvent(w, flusher, "connected", map[string]any{
		"deviceId":   device.ID,
		"playlistId": assignedPlaylistID,
	}); err != nil {
		log.Error().Err(err).Str("deviceId", device.ID).Msg("failed to send connected event")
		return
	}

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("deviceId", device.ID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("deviceId", device.ID).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("deviceId", device.ID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
