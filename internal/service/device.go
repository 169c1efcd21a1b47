package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/beamline/signage-server-go/internal/audit"
	apperrors "github.com/beamline/signage-server-go/internal/errors"
	"github.com/beamline/signage-server-go/internal/model"
	"github.com/beamline/signage-server-go/internal/playback"
	"github.com/beamline/signage-server-go/internal/repository"
)

type DeviceService struct {
	deviceRepo repository.DeviceRepository
	manager    *playback.Manager
	timeout    time.Duration
	clock      playback.Clock
}

func NewDeviceService(
	deviceRepo repository.DeviceRepository,
	manager *playback.Manager,
	timeout time.Duration,
	clock playback.Clock,
) *DeviceService {
	if clock == nil {
		clock = playback.SystemClock()
	}
	return &DeviceService{
		deviceRepo: deviceRepo,
		manager:    manager,
		timeout:    timeout,
		clock:      clock,
	}
}

// Get returns a device with its liveness computed from the last
// heartbeat, never from the stored status column.
func (s *DeviceService) Get(ctx context.Context, deviceID, ownerID string) (*model.Device, error) {
	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	if device == nil || device.OwnerID != ownerID {
		return nil, apperrors.NotFound("Device")
	}
	device.Status = device.EffectiveStatus(s.clock.Now(), s.timeout)
	return device, nil
}

func (s *DeviceService) ListByOwner(ctx context.Context, ownerID string) ([]model.Device, error) {
	devices, err := s.deviceRepo.ListByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	now := s.clock.Now()
	for i := range devices {
		devices[i].Status = devices[i].EffectiveStatus(now, s.timeout)
	}
	return devices, nil
}

// Heartbeat records that a device is reachable. Out-of-order heartbeats
// are absorbed: the repository only applies timestamps newer than the
// stored one.
func (s *DeviceService) Heartbeat(ctx context.Context, deviceID string) error {
	now := s.clock.Now()
	applied, err := s.deviceRepo.Touch(ctx, deviceID, now)
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	if !applied {
		log.Debug().Str("deviceId", deviceID).Msg("stale heartbeat discarded")
	}
	return nil
}

// Delete removes a device and cancels its playback runner so no
// background work leaks.
func (s *DeviceService) Delete(ctx context.Context, deviceID, ownerID string) error {
	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("find device: %w", err)
	}
	if device == nil || device.OwnerID != ownerID {
		return apperrors.NotFound("Device")
	}

	s.manager.StopSession(deviceID)

	if err := s.deviceRepo.Delete(ctx, deviceID); err != nil {
		return fmt.Errorf("delete device: %w", err)
	}

	log.Info().Str("deviceId", deviceID).Str("ownerId", ownerID).Msg("device deleted")
	audit.Log(ctx, audit.Event{
		Type:     audit.EventDeviceDeleted,
		OwnerID:  ownerID,
		DeviceID: deviceID,
	})
	return nil
}

// SweepOffline flips the advisory status column for devices that have
// gone silent. Point-in-time reads do not depend on this running.
func (s *DeviceService) SweepOffline(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.timeout)
	return s.deviceRepo.MarkOfflineStale(ctx, cutoff)
}
