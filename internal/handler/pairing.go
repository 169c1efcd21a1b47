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

type PairingHandler struct {
	pairingService *service.PairingService
}

func NewPairingHandler(pairingService *service.PairingService) *PairingHandler {
	return &PairingHandler{pairingService: pairingService}
}

// Routes for authenticated operators issuing and inspecting codes.
func (h *PairingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/codes", h.IssueCode)
	r.Get("/codes", h.ListCodes)

	return r
}

// POST /v1/pairing/codes
func (h *PairingHandler) IssueCode(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())

	code, err := h.pairingService.IssueCode(r.Context(), account.ID)
	if err != nil {
		if apperrors.IsAppError(err) {
			writeError(w, err)
			return
		}
		log.Error().Err(err).Msg("failed to issue pairing code")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to issue pairing code"})
		return
	}

	writeJSON(w, http.StatusCreated, code)
}

// GET /v1/pairing/codes
func (h *PairingHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())

	codes, err := h.pairingService.ListActiveCodes(r.Context(), account.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list pairing codes")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list pairing codes"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"codes": codes})
}

type pairRequest struct {
	Code  string            `json:"code"`
	Claim model.DeviceClaim `json:"claim"`
}

// POST /v1/pair is unauthenticated: this is how a device earns its
// credential. Guarded by the IP rate limiter.
func (h *PairingHandler) Pair(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.Code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}

	result, err := h.pairingService.Redeem(r.Context(), req.Code, req.Claim)
	if err != nil {
		if apperrors.IsAppError(err) {
			writeError(w, err)
			return
		}
		log.Error().Err(err).Msg("failed to redeem pairing code")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to redeem pairing code"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}
