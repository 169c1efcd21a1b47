package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/beamline/signage-server-go/internal/service"
)

type OpsHandler struct {
	statsService *service.StatsService
}

func NewOpsHandler(statsService *service.StatsService) *OpsHandler {
	return &OpsHandler{statsService: statsService}
}

func (h *OpsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/stats", h.Stats)

	return r
}

// GET /ops/stats
func (h *OpsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Collect(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to collect stats")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to collect stats"})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
