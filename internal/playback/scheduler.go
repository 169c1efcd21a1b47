package playback

import (
	"math/rand"
	"sync"
	"time"

	"github.com/beamline/signage-server-go/internal/model"
)

type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

type Command string

const (
	CommandPlay     Command = "play"
	CommandPause    Command = "pause"
	CommandResume   Command = "resume"
	CommandStop     Command = "stop"
	CommandNext     Command = "next"
	CommandPrevious Command = "previous"
	CommandRestart  Command = "restart"
)

func ParseCommand(s string) (Command, bool) {
	switch Command(s) {
	case CommandPlay, CommandPause, CommandResume, CommandStop, CommandNext, CommandPrevious, CommandRestart:
		return Command(s), true
	}
	return "", false
}

// Fallback display durations for media without an intrinsic length.
const (
	defaultItemDuration   = 8 * time.Second
	defaultSlidesDuration = 10 * time.Second
)

// Item is one entry of a playlist snapshot. The snapshot is taken when
// playback starts; later playlist edits do not affect a running session.
type Item struct {
	Position        int
	MediaID         string
	MediaType       model.MediaType
	URL             string
	NaturalDuration time.Duration // zero when unknown
	Override        time.Duration // zero when not set
	Transition      model.Transition
}

func (it Item) playable() bool {
	return it.URL != "" && it.MediaType.Valid()
}

// duration resolves the display time for the item: explicit override,
// then the media's natural duration for time-based media, then a
// type default.
func (it Item) duration() time.Duration {
	if it.Override > 0 {
		return it.Override
	}
	if it.NaturalDuration > 0 && (it.MediaType == model.MediaTypeVideo || it.MediaType == model.MediaTypeAudio) {
		return it.NaturalDuration
	}
	if it.MediaType == model.MediaTypeSlides {
		return defaultSlidesDuration
	}
	return defaultItemDuration
}

type Options struct {
	Loop              bool
	Shuffle           bool
	AutoAdvance       bool
	DefaultTransition model.Transition
}

// Status is the observable scheduler state for renderers and dashboards.
type Status struct {
	State        State            `json:"state"`
	Cursor       int              `json:"cursor"`
	Position     int              `json:"position"`
	MediaID      string           `json:"mediaId,omitempty"`
	MediaURL     string           `json:"mediaUrl,omitempty"`
	MediaType    model.MediaType  `json:"mediaType,omitempty"`
	Transition   model.Transition `json:"transition,omitempty"`
	RemainingMs  int64            `json:"remainingMs"`
	AutoAdvance  bool             `json:"autoAdvance"`
	ContentError bool             `json:"contentError"`
	PlayedCount  int64            `json:"playedCount"`
}

// Scheduler sequences a playlist snapshot for one device. It never
// reads the wall clock itself; callers pass time into every mutating
// method, which keeps the machine deterministic under test and lets a
// single clock source drive all devices.
type Scheduler struct {
	mu sync.Mutex

	items []Item
	opts  Options

	state        State
	order        []int
	cursor       int
	remaining    time.Duration
	lastTick     time.Time
	contentError bool
	playedCount  int64

	rng *rand.Rand
}

func NewScheduler(rng *rand.Rand) *Scheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scheduler{
		state: StateIdle,
		rng:   rng,
	}
}

// Load snapshots the playlist and starts playing from position 0.
// An empty item list leaves the scheduler idle.
func (s *Scheduler) Load(items []Item, opts Options, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make([]Item, len(items))
	copy(s.items, items)
	s.opts = opts
	s.cursor = 0
	s.remaining = 0
	s.contentError = false
	s.playedCount = 0
	s.lastTick = now

	if len(s.items) == 0 {
		s.state = StateIdle
		s.order = nil
		return
	}

	s.state = StatePlaying
	s.rollOrderLocked()
	s.enterLocked()
}

// Tick advances real time. Elapsed time is measured against the
// previous tick; one tick may advance the cursor across several short
// items. Safe to call in any state.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := now.Sub(s.lastTick)
	if elapsed <= 0 {
		// A regressed clock must not drag lastTick backwards, or the
		// next forward tick would double-count the interval.
		return
	}
	s.lastTick = now

	if s.state != StatePlaying {
		return
	}
	if !s.opts.AutoAdvance {
		// Dwell mode: the item holds and the countdown is suspended,
		// not discarded.
		return
	}

	s.remaining -= elapsed
	for s.state == StatePlaying && s.remaining <= 0 {
		deficit := -s.remaining
		s.advanceLocked()
		if s.state != StatePlaying {
			break
		}
		s.remaining -= deficit
	}
}

func (s *Scheduler) Play(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StatePaused:
		s.state = StatePlaying
		s.lastTick = now
	case StateStopped, StateIdle:
		if len(s.items) == 0 {
			return
		}
		s.state = StatePlaying
		s.cursor = 0
		s.playedCount = 0
		s.contentError = false
		s.lastTick = now
		s.rollOrderLocked()
		s.enterLocked()
	}
}

func (s *Scheduler) Pause(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePlaying {
		return
	}
	if s.opts.AutoAdvance {
		if elapsed := now.Sub(s.lastTick); elapsed > 0 {
			s.remaining -= elapsed
			if s.remaining < 0 {
				s.remaining = 0
			}
		}
	}
	s.lastTick = now
	s.state = StatePaused
}

func (s *Scheduler) Resume(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePaused {
		return
	}
	s.state = StatePlaying
	s.lastTick = now
}

// Stop clears the session. A subsequent Play restarts from position 0
// with a fresh play order.
func (s *Scheduler) Stop(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateStopped
	s.cursor = 0
	s.remaining = 0
	s.order = nil
	s.lastTick = now
}

func (s *Scheduler) Next(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 || (s.state != StatePlaying && s.state != StatePaused) {
		return
	}
	s.lastTick = now
	s.advanceLocked()
}

// Previous steps back one slot in the current play order, clamped at
// the start.
func (s *Scheduler) Previous(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 || (s.state != StatePlaying && s.state != StatePaused) {
		return
	}
	s.lastTick = now
	if s.cursor > 0 {
		s.cursor--
	}
	s.enterLocked()
}

func (s *Scheduler) Restart(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return
	}
	s.state = StatePlaying
	s.cursor = 0
	s.playedCount = 0
	s.contentError = false
	s.lastTick = now
	s.rollOrderLocked()
	s.enterLocked()
}

// SetAutoAdvance toggles automatic advancement. Turning it off freezes
// the current countdown; turning it back on resumes with the remaining
// time intact.
func (s *Scheduler) SetAutoAdvance(enabled bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.AutoAdvance == enabled {
		return
	}
	if !enabled && s.state == StatePlaying {
		if elapsed := now.Sub(s.lastTick); elapsed > 0 {
			s.remaining -= elapsed
			if s.remaining < 0 {
				s.remaining = 0
			}
		}
	}
	s.lastTick = now
	s.opts.AutoAdvance = enabled
}

func (s *Scheduler) Apply(cmd Command, now time.Time) {
	switch cmd {
	case CommandPlay:
		s.Play(now)
	case CommandPause:
		s.Pause(now)
	case CommandResume:
		s.Resume(now)
	case CommandStop:
		s.Stop(now)
	case CommandNext:
		s.Next(now)
	case CommandPrevious:
		s.Previous(now)
	case CommandRestart:
		s.Restart(now)
	}
}

// Status reports the observable state at instant now without mutating
// the machine.
func (s *Scheduler) Status(now time.Time) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:        s.state,
		Cursor:       s.cursor,
		Position:     -1,
		AutoAdvance:  s.opts.AutoAdvance,
		ContentError: s.contentError,
		PlayedCount:  s.playedCount,
	}

	if len(s.order) == 0 || s.cursor >= len(s.order) {
		return st
	}

	it := s.items[s.order[s.cursor]]
	st.Position = it.Position
	st.MediaID = it.MediaID
	st.MediaURL = it.URL
	st.MediaType = it.MediaType
	st.Transition = it.Transition

	remaining := s.remaining
	if s.state == StatePlaying && s.opts.AutoAdvance {
		if elapsed := now.Sub(s.lastTick); elapsed > 0 {
			remaining -= elapsed
		}
	}
	if remaining < 0 {
		remaining = 0
	}
	st.RemainingMs = remaining.Milliseconds()

	return st
}

// rollOrderLocked draws the play order for the next pass. Shuffled
// playlists get a fresh permutation on every loop boundary.
func (s *Scheduler) rollOrderLocked() {
	n := len(s.items)
	if s.opts.Shuffle {
		s.order = s.rng.Perm(n)
		return
	}
	s.order = make([]int, n)
	for i := range s.order {
		s.order[i] = i
	}
}

// advanceLocked moves the cursor one slot forward, wrapping or stopping
// at the end of the play order.
func (s *Scheduler) advanceLocked() {
	s.cursor++
	if s.cursor >= len(s.order) {
		if !s.opts.Loop {
			// Hold the last item on screen.
			s.cursor = len(s.order) - 1
			s.state = StateStopped
			s.remaining = 0
			return
		}
		s.rollOrderLocked()
		s.cursor = 0
	}
	s.enterLocked()
}

// enterLocked activates the item under the cursor, skipping entries
// whose media cannot be resolved. If a full pass finds nothing playable
// the scheduler goes idle with a content error instead of spinning.
func (s *Scheduler) enterLocked() {
	for attempts := 0; attempts < len(s.order); attempts++ {
		it := s.items[s.order[s.cursor]]
		if it.playable() {
			s.remaining = it.duration()
			s.playedCount++
			return
		}

		s.cursor++
		if s.cursor >= len(s.order) {
			if !s.opts.Loop {
				s.cursor = len(s.order) - 1
				s.remaining = 0
				if s.playedCount == 0 {
					// Nothing in the whole list resolved.
					s.state = StateIdle
					s.contentError = true
				} else {
					s.state = StateStopped
				}
				return
			}
			s.rollOrderLocked()
			s.cursor = 0
		}
	}

	s.state = StateIdle
	s.contentError = true
	s.remaining = 0
}
