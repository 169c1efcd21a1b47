package playback

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Manager owns the server-side playback runners, one per device. Each
// runner is a single goroutine ticking that device's scheduler, so a
// session's cursor can never be advanced from two places at once.
type Manager struct {
	mu      sync.Mutex
	runners map[string]*runner
	clock   Clock
	tick    time.Duration
	closed  bool
}

type runner struct {
	deviceID   string
	playlistID string
	sched      *Scheduler
	done       chan struct{}
}

func NewManager(clock Clock, tick time.Duration) *Manager {
	if clock == nil {
		clock = SystemClock()
	}
	return &Manager{
		runners: make(map[string]*runner),
		clock:   clock,
		tick:    tick,
	}
}

// StartSession begins playing a playlist snapshot on a device,
// replacing any running session. The old runner is fully stopped before
// the new scheduler becomes observable.
func (m *Manager) StartSession(deviceID, playlistID string, items []Item, opts Options) {
	sched := NewScheduler(rand.New(rand.NewSource(m.clock.Now().UnixNano())))
	sched.Load(items, opts, m.clock.Now())

	r := &runner{
		deviceID:   deviceID,
		playlistID: playlistID,
		sched:      sched,
		done:       make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if old, ok := m.runners[deviceID]; ok {
		close(old.done)
	}
	m.runners[deviceID] = r
	m.mu.Unlock()

	go m.run(r)

	log.Info().
		Str("deviceId", deviceID).
		Str("playlistId", playlistID).
		Int("items", len(items)).
		Msg("playback session started")
}

// StopSession tears down a device's session and cancels its runner.
// Called when the assignment changes, the playlist is cleared, or the
// device is deleted.
func (m *Manager) StopSession(deviceID string) {
	m.mu.Lock()
	r, ok := m.runners[deviceID]
	if ok {
		delete(m.runners, deviceID)
	}
	m.mu.Unlock()

	if ok {
		close(r.done)
		log.Info().Str("deviceId", deviceID).Msg("playback session stopped")
	}
}

// Command applies an operator/remote playback command to a device's
// scheduler. Returns false when the device has no session.
func (m *Manager) Command(deviceID string, cmd Command) bool {
	r := m.get(deviceID)
	if r == nil {
		return false
	}
	r.sched.Apply(cmd, m.clock.Now())
	return true
}

// SetAutoAdvance toggles dwell mode on a device's running session.
func (m *Manager) SetAutoAdvance(deviceID string, enabled bool) bool {
	r := m.get(deviceID)
	if r == nil {
		return false
	}
	r.sched.SetAutoAdvance(enabled, m.clock.Now())
	return true
}

// Status reports a device's observable playback state. ok is false when
// no session exists.
func (m *Manager) Status(deviceID string) (Status, string, bool) {
	r := m.get(deviceID)
	if r == nil {
		return Status{}, "", false
	}
	return r.sched.Status(m.clock.Now()), r.playlistID, true
}

func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runners)
}

// Close stops every runner. The manager cannot be reused afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	runners := m.runners
	m.runners = make(map[string]*runner)
	m.mu.Unlock()

	for _, r := range runners {
		close(r.done)
	}
}

func (m *Manager) get(deviceID string) *runner {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runners[deviceID]
}

func (m *Manager) run(r *runner) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sched.Tick(m.clock.Now())
		}
	}
}
