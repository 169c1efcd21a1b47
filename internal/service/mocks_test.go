package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/beamline/signage-server-go/internal/database"
	"github.com/beamline/signage-server-go/internal/model"
	"github.com/beamline/signage-server-go/internal/repository"
)

// passthroughTx satisfies TxRunner without a database: the callback runs
// with a nil transaction and the repos keep using their mocks.
type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type mockPairingCodeRepo struct {
	mock.Mock
}

func (m *mockPairingCodeRepo) FindByCode(ctx context.Context, code string) (*model.PairingCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingCode), args.Error(1)
}

func (m *mockPairingCodeRepo) FindActiveByOwnerID(ctx context.Context, ownerID string, now time.Time) ([]model.PairingCode, error) {
	args := m.Called(ctx, ownerID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PairingCode), args.Error(1)
}

func (m *mockPairingCodeRepo) CountActiveByOwnerID(ctx context.Context, ownerID string, now time.Time) (int, error) {
	args := m.Called(ctx, ownerID, now)
	return args.Int(0), args.Error(1)
}

func (m *mockPairingCodeRepo) Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingCode), args.Error(1)
}

func (m *mockPairingCodeRepo) RedeemPending(ctx context.Context, code string, deviceID string, now time.Time) (*model.PairingCode, error) {
	args := m.Called(ctx, code, deviceID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingCode), args.Error(1)
}

func (m *mockPairingCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPairingCodeRepo) CountActive(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func (m *mockPairingCodeRepo) WithTx(tx *sqlx.Tx) repository.PairingCodeRepository {
	return m
}

type mockDeviceRepo struct {
	mock.Mock
}

func (m *mockDeviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Device, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) ListByOwnerID(ctx context.Context, ownerID string) ([]model.Device, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Device), args.Error(1)
}

func (m *mockDeviceRepo) Upsert(ctx context.Context, params model.UpsertDeviceParams) (*model.Device, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) Touch(ctx context.Context, id string, now time.Time) (bool, error) {
	args := m.Called(ctx, id, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockDeviceRepo) SetAssignedPlaylist(ctx context.Context, id string, playlistID *string, now time.Time) error {
	args := m.Called(ctx, id, playlistID, now)
	return args.Error(0)
}

func (m *mockDeviceRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockDeviceRepo) MarkOfflineStale(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockDeviceRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockDeviceRepo) CountSeenSince(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

func (m *mockDeviceRepo) WithTx(tx *sqlx.Tx) repository.DeviceRepository {
	return m
}

type mockPlaylistRepo struct {
	mock.Mock
}

func (m *mockPlaylistRepo) FindByID(ctx context.Context, id string) (*model.Playlist, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Playlist), args.Error(1)
}

func (m *mockPlaylistRepo) FindByIDWithItems(ctx context.Context, id string) (*model.Playlist, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Playlist), args.Error(1)
}

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Account, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
