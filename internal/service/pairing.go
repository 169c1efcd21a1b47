package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/beamline/signage-server-go/internal/audit"
	"github.com/beamline/signage-server-go/internal/database"
	apperrors "github.com/beamline/signage-server-go/internal/errors"
	"github.com/beamline/signage-server-go/internal/model"
	"github.com/beamline/signage-server-go/internal/playback"
	"github.com/beamline/signage-server-go/internal/repository"
	"github.com/beamline/signage-server-go/internal/util"
)

const (
	// No O/I/0/1: codes are read off a screen and typed by hand.
	pairingCodeChars       = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	maxActiveCodesPerOwner = 5
	codeGenAttempts        = 10
	defaultDeviceName      = "Unnamed screen"
)

// TxRunner runs a function inside a database transaction. *database.DB
// satisfies it; tests substitute a pass-through.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

var _ TxRunner = (*database.DB)(nil)

// RedeemResult carries the claimed device and its credential. The token
// is returned exactly once, at redemption; only its hash is stored.
type RedeemResult struct {
	Device      *model.Device `json:"device"`
	DeviceToken string        `json:"deviceToken"`
}

type PairingService struct {
	db         TxRunner
	codeRepo   repository.PairingCodeRepository
	deviceRepo repository.DeviceRepository
	ttl        time.Duration
	clock      playback.Clock
}

func NewPairingService(
	db TxRunner,
	codeRepo repository.PairingCodeRepository,
	deviceRepo repository.DeviceRepository,
	ttl time.Duration,
	clock playback.Clock,
) *PairingService {
	if clock == nil {
		clock = playback.SystemClock()
	}
	return &PairingService{
		db:         db,
		codeRepo:   codeRepo,
		deviceRepo: deviceRepo,
		ttl:        ttl,
		clock:      clock,
	}
}

// IssueCode creates a pairing code for ownerID. Codes are short, so a
// random draw can collide with a live code; collisions surface as
// unique violations and are retried with a fresh draw.
func (s *PairingService) IssueCode(ctx context.Context, ownerID string) (*model.PairingCode, error) {
	now := s.clock.Now()

	activeCount, err := s.codeRepo.CountActiveByOwnerID(ctx, ownerID, now)
	if err != nil {
		return nil, fmt.Errorf("count active codes: %w", err)
	}
	if activeCount >= maxActiveCodesPerOwner {
		return nil, apperrors.TooManyActiveCodes(maxActiveCodesPerOwner)
	}

	for attempts := 0; attempts < codeGenAttempts; attempts++ {
		code := generateRandomCode()

		pc, err := s.codeRepo.Create(ctx, model.CreatePairingCodeParams{
			Code:      code,
			OwnerID:   ownerID,
			IssuedAt:  now,
			ExpiresAt: now.Add(s.ttl),
		})
		if err != nil {
			if repository.IsUniqueViolation(err) {
				continue
			}
			return nil, fmt.Errorf("create pairing code: %w", err)
		}

		log.Info().
			Str("code", util.MaskCode(code)).
			Str("ownerId", ownerID).
			Time("expiresAt", pc.ExpiresAt).
			Msg("pairing code issued")

		audit.Log(ctx, audit.Event{
			Type:    audit.EventCodeIssued,
			OwnerID: ownerID,
		})

		return pc, nil
	}

	return nil, apperrors.Internal("could not generate a unique pairing code")
}

func (s *PairingService) ListActiveCodes(ctx context.Context, ownerID string) ([]model.PairingCode, error) {
	return s.codeRepo.FindActiveByOwnerID(ctx, ownerID, s.clock.Now())
}

// Redeem claims a pairing code for a device. The redemption itself is a
// single conditional update keyed by the code, so two devices racing on
// one code cannot both win; the loser observes CODE_ALREADY_REDEEMED.
// Code redemption and device creation commit together.
func (s *PairingService) Redeem(ctx context.Context, code string, claim model.DeviceClaim) (*RedeemResult, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, apperrors.MissingRequired("code")
	}

	now := s.clock.Now()

	deviceID := uuid.NewString()
	if claim.DeviceID != nil && util.IsValidUUID(*claim.DeviceID) {
		// A re-pairing screen keeps its identity instead of minting a
		// duplicate.
		deviceID = *claim.DeviceID
	}

	name := strings.TrimSpace(claim.Name)
	if name == "" {
		name = defaultDeviceName
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate device token: %w", err)
	}

	var device *model.Device
	txErr := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		codeRepo := s.codeRepo
		deviceRepo := s.deviceRepo
		if tx != nil {
			codeRepo = codeRepo.WithTx(tx)
			deviceRepo = deviceRepo.WithTx(tx)
		}

		pc, err := codeRepo.RedeemPending(ctx, normalized, deviceID, now)
		if err != nil {
			return fmt.Errorf("redeem pairing code: %w", err)
		}
		if pc == nil {
			return s.classifyFailedRedeem(ctx, codeRepo, normalized, now)
		}

		device, err = deviceRepo.Upsert(ctx, model.UpsertDeviceParams{
			ID:           deviceID,
			OwnerID:      pc.OwnerID,
			Name:         name,
			TokenHash:    util.HashToken(token),
			ScreenWidth:  claim.ScreenWidth,
			ScreenHeight: claim.ScreenHeight,
		})
		if err != nil {
			return fmt.Errorf("upsert device: %w", err)
		}
		return nil
	})
	if txErr != nil {
		if apperrors.IsAppError(txErr) {
			log.Warn().
				Str("code", util.MaskCode(normalized)).
				Str("reason", string(apperrors.GetCode(txErr))).
				Msg("pairing code rejected")
			audit.Log(ctx, audit.Event{
				Type:    audit.EventCodeRejected,
				Details: map[string]interface{}{"reason": string(apperrors.GetCode(txErr))},
			})
		}
		return nil, txErr
	}

	log.Info().
		Str("code", util.MaskCode(normalized)).
		Str("deviceId", device.ID).
		Str("ownerId", device.OwnerID).
		Msg("pairing code redeemed")

	audit.Log(ctx, audit.Event{
		Type:     audit.EventCodeRedeemed,
		OwnerID:  device.OwnerID,
		DeviceID: device.ID,
	})

	return &RedeemResult{Device: device, DeviceToken: token}, nil
}

// classifyFailedRedeem decides which terminal state blocked a
// redemption. Redeemed wins over expired: a code that was used and has
// since passed its expiry is still "already redeemed" to the caller.
func (s *PairingService) classifyFailedRedeem(
	ctx context.Context,
	codeRepo repository.PairingCodeRepository,
	code string,
	now time.Time,
) error {
	pc, err := codeRepo.FindByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("look up pairing code: %w", err)
	}
	if pc == nil {
		return apperrors.PairingCodeNotFound()
	}
	if pc.Redeemed() {
		return apperrors.PairingCodeAlreadyRedeemed()
	}
	if pc.Expired(now) {
		return apperrors.PairingCodeExpired()
	}
	// The conditional update found nothing but the row looks pending;
	// treat as a race that the caller should retry via a fresh code.
	return apperrors.PairingCodeNotFound()
}

func generateRandomCode() string {
	chars := []byte(pairingCodeChars)
	part1 := make([]byte, 4)
	part2 := make([]byte, 4)

	for i := 0; i < 4; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		part1[i] = chars[n.Int64()]
	}
	for i := 0; i < 4; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		part2[i] = chars[n.Int64()]
	}

	return fmt.Sprintf("%s-%s", string(part1), string(part2))
}
