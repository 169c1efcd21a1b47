package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/beamline/signage-server-go/internal/playback"
	"github.com/beamline/signage-server-go/internal/repository"
)

// CleanupJob periodically drops stale pairing codes and sweeps the
// advisory device status column. Correctness never depends on it:
// redemption checks expiry itself and liveness is derived on read.
type CleanupJob struct {
	pairingCodeRepo repository.PairingCodeRepository
	deviceRepo      repository.DeviceRepository
	livenessTimeout time.Duration
	clock           playback.Clock
	interval        time.Duration
	done            chan struct{}
}

func NewCleanupJob(
	pairingCodeRepo repository.PairingCodeRepository,
	deviceRepo repository.DeviceRepository,
	livenessTimeout time.Duration,
	clock playback.Clock,
	interval time.Duration,
) *CleanupJob {
	if clock == nil {
		clock = playback.SystemClock()
	}
	return &CleanupJob{
		pairingCodeRepo: pairingCodeRepo,
		deviceRepo:      deviceRepo,
		livenessTimeout: livenessTimeout,
		clock:           clock,
		interval:        interval,
		done:            make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := j.clock.Now()

	j.runCleanup(ctx, "pairing codes", func(ctx context.Context) (int64, error) {
		return j.pairingCodeRepo.DeleteExpired(ctx, now)
	})
	j.runCleanup(ctx, "stale devices", func(ctx context.Context) (int64, error) {
		return j.deviceRepo.MarkOfflineStale(ctx, now.Add(-j.livenessTimeout))
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
