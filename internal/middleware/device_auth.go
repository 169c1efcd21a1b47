package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/beamline/signage-server-go/internal/model"
	"github.com/beamline/signage-server-go/internal/repository"
	"github.com/beamline/signage-server-go/internal/util"
)

const DeviceContextKey contextKey = "device"

func GetDevice(ctx context.Context) *model.Device {
	if device, ok := ctx.Value(DeviceContextKey).(*model.Device); ok {
		return device
	}
	return nil
}

// DeviceAuthMiddleware authenticates paired screens by the token issued
// at redemption. Tokens are compared by SHA-256 hash, same as account
// tokens.
type DeviceAuthMiddleware struct {
	deviceRepo repository.DeviceRepository
}

func NewDeviceAuthMiddleware(deviceRepo repository.DeviceRepository) *DeviceAuthMiddleware {
	return &DeviceAuthMiddleware{deviceRepo: deviceRepo}
}

func (m *DeviceAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing device token",
			})
			return
		}

		tokenHash := util.HashToken(token)
		device, err := m.deviceRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("device auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if device == nil {
			log.Warn().Msg("device auth middleware: invalid token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid device token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), DeviceContextKey, device)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
