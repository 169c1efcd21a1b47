package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/beamline/signage-server-go/internal/audit"
	apperrors "github.com/beamline/signage-server-go/internal/errors"
	"github.com/beamline/signage-server-go/internal/model"
	"github.com/beamline/signage-server-go/internal/playback"
	"github.com/beamline/signage-server-go/internal/repository"
	"github.com/beamline/signage-server-go/internal/sse"
)

// AssignmentService binds playlists to devices. Every change first
// tears down the running playback session, then writes the assignment,
// then starts the new session. Changes to the same device are
// serialized by a per-device lock spanning all three steps, so an
// observer can never see the new assignment paired with a session
// still iterating the old snapshot.
type AssignmentService struct {
	deviceRepo   repository.DeviceRepository
	playlistRepo repository.PlaylistRepository
	manager      *playback.Manager
	broker       *sse.Broker
	clock        playback.Clock

	mu          sync.Mutex
	deviceLocks map[string]*sync.Mutex
}

func NewAssignmentService(
	deviceRepo repository.DeviceRepository,
	playlistRepo repository.PlaylistRepository,
	manager *playback.Manager,
	broker *sse.Broker,
	clock playback.Clock,
) *AssignmentService {
	if clock == nil {
		clock = playback.SystemClock()
	}
	return &AssignmentService{
		deviceRepo:   deviceRepo,
		playlistRepo: playlistRepo,
		manager:      manager,
		broker:       broker,
		clock:        clock,
		deviceLocks:  make(map[string]*sync.Mutex),
	}
}

// deviceLock returns the mutex serializing assignment changes for a
// device. Locks are never reclaimed; the map grows with the device
// population, which is bounded.
func (s *AssignmentService) deviceLock(deviceID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.deviceLocks[deviceID]
	if !ok {
		l = &sync.Mutex{}
		s.deviceLocks[deviceID] = l
	}
	return l
}

// Assign attaches playlistID to the device, or clears the assignment
// when playlistID is nil. Both the device and the playlist must belong
// to requestingOwnerID; cross-tenant assignment is an error, never a
// silent no-op.
func (s *AssignmentService) Assign(ctx context.Context, deviceID string, playlistID *string, requestingOwnerID string) (*model.Device, error) {
	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	if device == nil {
		return nil, apperrors.NotFound("Device")
	}
	if device.OwnerID != requestingOwnerID {
		return nil, apperrors.UnauthorizedAssignment()
	}

	if playlistID == nil {
		return s.clear(ctx, device)
	}

	playlist, err := s.playlistRepo.FindByIDWithItems(ctx, *playlistID)
	if err != nil {
		return nil, fmt.Errorf("find playlist: %w", err)
	}
	if playlist == nil {
		return nil, apperrors.NotFound("Playlist")
	}
	if playlist.OwnerID != requestingOwnerID {
		return nil, apperrors.UnauthorizedAssignment()
	}
	if len(playlist.Items) == 0 {
		return nil, apperrors.PlaylistEmpty()
	}

	lock := s.deviceLock(device.ID)
	lock.Lock()

	// Invalidate before the write becomes visible.
	s.manager.StopSession(device.ID)

	if err := s.deviceRepo.SetAssignedPlaylist(ctx, device.ID, playlistID, s.clock.Now()); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("set assigned playlist: %w", err)
	}
	device.AssignedPlaylistID = playlistID

	items, opts := playback.Snapshot(playlist)
	s.manager.StartSession(device.ID, playlist.ID, items, opts)
	lock.Unlock()

	if err := s.broker.PublishJSON(ctx, device.ID, sse.EventPlaylistAssigned, map[string]any{
		"playlistId": playlist.ID,
	}); err != nil {
		log.Warn().Err(err).Str("deviceId", device.ID).Msg("failed to publish assignment event")
	}

	log.Info().
		Str("deviceId", device.ID).
		Str("playlistId", playlist.ID).
		Str("ownerId", requestingOwnerID).
		Msg("playlist assigned")

	audit.Log(ctx, audit.Event{
		Type:     audit.EventAssignmentChanged,
		OwnerID:  requestingOwnerID,
		DeviceID: device.ID,
		Details:  map[string]interface{}{"playlistId": playlist.ID},
	})

	return device, nil
}

func (s *AssignmentService) clear(ctx context.Context, device *model.Device) (*model.Device, error) {
	lock := s.deviceLock(device.ID)
	lock.Lock()

	s.manager.StopSession(device.ID)

	if err := s.deviceRepo.SetAssignedPlaylist(ctx, device.ID, nil, s.clock.Now()); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("clear assigned playlist: %w", err)
	}
	device.AssignedPlaylistID = nil
	lock.Unlock()

	if err := s.broker.PublishJSON(ctx, device.ID, sse.EventPlaylistCleared, map[string]any{}); err != nil {
		log.Warn().Err(err).Str("deviceId", device.ID).Msg("failed to publish unassignment event")
	}

	log.Info().
		Str("deviceId", device.ID).
		Str("ownerId", device.OwnerID).
		Msg("playlist cleared")

	audit.Log(ctx, audit.Event{
		Type:     audit.EventAssignmentChanged,
		OwnerID:  device.OwnerID,
		DeviceID: device.ID,
		Details:  map[string]interface{}{"playlistId": nil},
	})

	return device, nil
}
