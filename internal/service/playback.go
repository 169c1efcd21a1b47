package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/beamline/signage-server-go/internal/errors"
	"github.com/beamline/signage-server-go/internal/model"
	"github.com/beamline/signage-server-go/internal/playback"
	"github.com/beamline/signage-server-go/internal/repository"
	"github.com/beamline/signage-server-go/internal/sse"
)

// PlaybackStatusResult is what dashboards and devices poll.
type PlaybackStatusResult struct {
	DeviceID   string          `json:"deviceId"`
	PlaylistID *string         `json:"playlistId,omitempty"`
	Playback   playback.Status `json:"playback"`
}

// PlaybackService routes operator/remote commands into per-device
// schedulers and exposes their observable state.
type PlaybackService struct {
	deviceRepo   repository.DeviceRepository
	playlistRepo repository.PlaylistRepository
	manager      *playback.Manager
	broker       *sse.Broker
}

func NewPlaybackService(
	deviceRepo repository.DeviceRepository,
	playlistRepo repository.PlaylistRepository,
	manager *playback.Manager,
	broker *sse.Broker,
) *PlaybackService {
	return &PlaybackService{
		deviceRepo:   deviceRepo,
		playlistRepo: playlistRepo,
		manager:      manager,
		broker:       broker,
	}
}

// Command applies a playback command on behalf of ownerID. A device
// with an assignment but no live session (say, after a server restart)
// gets its session rebuilt first, so "play" always works on an
// assigned device.
func (s *PlaybackService) Command(ctx context.Context, deviceID, ownerID, command string) (*PlaybackStatusResult, error) {
	device, err := s.ownedDevice(ctx, deviceID, ownerID)
	if err != nil {
		return nil, err
	}

	cmd, ok := playback.ParseCommand(command)
	if !ok {
		return nil, apperrors.InvalidCommand(command)
	}

	if !s.manager.Command(device.ID, cmd) {
		if err := s.ensureSession(ctx, device); err != nil {
			return nil, err
		}
		s.manager.Command(device.ID, cmd)
	}

	if err := s.broker.PublishJSON(ctx, device.ID, sse.EventPlaybackCommand, map[string]any{
		"command": string(cmd),
	}); err != nil {
		log.Warn().Err(err).Str("deviceId", device.ID).Msg("failed to publish playback command")
	}

	return s.status(device), nil
}

// SetAutoAdvance toggles dwell mode on the device's session without
// discarding the current countdown.
func (s *PlaybackService) SetAutoAdvance(ctx context.Context, deviceID, ownerID string, enabled bool) (*PlaybackStatusResult, error) {
	device, err := s.ownedDevice(ctx, deviceID, ownerID)
	if err != nil {
		return nil, err
	}
	if !s.manager.SetAutoAdvance(device.ID, enabled) {
		return nil, apperrors.NoPlaybackSession()
	}
	return s.status(device), nil
}

// Status reports the device's current scheduler state. A device without
// a session reports idle rather than an error.
func (s *PlaybackService) Status(ctx context.Context, deviceID, ownerID string) (*PlaybackStatusResult, error) {
	device, err := s.ownedDevice(ctx, deviceID, ownerID)
	if err != nil {
		return nil, err
	}
	return s.status(device), nil
}

// Resume rebuilds the playback session from the stored assignment.
// Devices call this when they reconnect.
func (s *PlaybackService) Resume(ctx context.Context, deviceID string) (*PlaybackStatusResult, error) {
	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	if device == nil {
		return nil, apperrors.NotFound("Device")
	}
	if device.AssignedPlaylistID != nil {
		if _, _, ok := s.manager.Status(device.ID); !ok {
			if err := s.ensureSession(ctx, device); err != nil {
				return nil, err
			}
		}
	}
	return s.status(device), nil
}

func (s *PlaybackService) ownedDevice(ctx context.Context, deviceID, ownerID string) (*model.Device, error) {
	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	if device == nil || (ownerID != "" && device.OwnerID != ownerID) {
		return nil, apperrors.NotFound("Device")
	}
	return device, nil
}

func (s *PlaybackService) ensureSession(ctx context.Context, device *model.Device) error {
	if device.AssignedPlaylistID == nil {
		return apperrors.NoPlaybackSession()
	}

	playlist, err := s.playlistRepo.FindByIDWithItems(ctx, *device.AssignedPlaylistID)
	if err != nil {
		return fmt.Errorf("find playlist: %w", err)
	}
	if playlist == nil {
		return apperrors.NotFound("Playlist")
	}
	if len(playlist.Items) == 0 {
		return apperrors.PlaylistEmpty()
	}

	items, opts := playback.Snapshot(playlist)
	s.manager.StartSession(device.ID, playlist.ID, items, opts)
	return nil
}

func (s *PlaybackService) status(device *model.Device) *PlaybackStatusResult {
	result := &PlaybackStatusResult{
		DeviceID:   device.ID,
		PlaylistID: device.AssignedPlaylistID,
	}

	if st, playlistID, ok := s.manager.Status(device.ID); ok {
		result.Playback = st
		if playlistID != "" {
			result.PlaylistID = &playlistID
		}
	} else {
		result.Playback = playback.Status{State: playback.StateIdle, Position: -1}
	}

	return result
}
