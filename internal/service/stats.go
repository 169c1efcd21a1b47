package service

import (
	"context"
	"fmt"
	"time"

	"github.com/beamline/signage-server-go/internal/playback"
	"github.com/beamline/signage-server-go/internal/repository"
	"github.com/beamline/signage-server-go/internal/sse"
)

// Stats is the read-only operational snapshot served to operators.
type Stats struct {
	Accounts        int `json:"accounts"`
	Devices         int `json:"devices"`
	DevicesOnline   int `json:"devicesOnline"`
	ActiveCodes     int `json:"activeCodes"`
	RunningSessions int `json:"runningSessions"`
	ConnectedSSE    int `json:"connectedSseClients"`
}

type StatsService struct {
	accountRepo repository.AccountRepository
	deviceRepo  repository.DeviceRepository
	codeRepo    repository.PairingCodeRepository
	manager     *playback.Manager
	broker      *sse.Broker
	timeout     time.Duration
	clock       playback.Clock
}

func NewStatsService(
	accountRepo repository.AccountRepository,
	deviceRepo repository.DeviceRepository,
	codeRepo repository.PairingCodeRepository,
	manager *playback.Manager,
	broker *sse.Broker,
	timeout time.Duration,
	clock playback.Clock,
) *StatsService {
	if clock == nil {
		clock = playback.SystemClock()
	}
	return &StatsService{
		accountRepo: accountRepo,
		deviceRepo:  deviceRepo,
		codeRepo:    codeRepo,
		manager:     manager,
		broker:      broker,
		timeout:     timeout,
		clock:       clock,
	}
}

func (s *StatsService) Collect(ctx context.Context) (*Stats, error) {
	now := s.clock.Now()

	accounts, err := s.accountRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count accounts: %w", err)
	}
	devices, err := s.deviceRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count devices: %w", err)
	}
	online, err := s.deviceRepo.CountSeenSince(ctx, now.Add(-s.timeout))
	if err != nil {
		return nil, fmt.Errorf("count online devices: %w", err)
	}
	activeCodes, err := s.codeRepo.CountActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("count active codes: %w", err)
	}

	return &Stats{
		Accounts:        accounts,
		Devices:         devices,
		DevicesOnline:   online,
		ActiveCodes:     activeCodes,
		RunningSessions: s.manager.SessionCount(),
		ConnectedSSE:    s.broker.TotalClients(),
	}, nil
}
