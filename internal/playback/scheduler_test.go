package playback

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/beamline/signage-server-go/internal/model"
)

func imageItem(pos int) Item {
	return Item{
		Position:  pos,
		MediaID:   "media-" + string(rune('a'+pos)),
		MediaType: model.MediaTypeImage,
		URL:       "https://cdn.example.com/img.png",
	}
}

func testItems(n int) []Item {
	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, imageItem(i))
	}
	return items
}

func seededScheduler() *Scheduler {
	return NewScheduler(rand.New(rand.NewSource(42)))
}

func TestItemDuration(t *testing.T) {
	t.Run("explicit override wins over everything", func(t *testing.T) {
		it := Item{
			MediaType:       model.MediaTypeVideo,
			NaturalDuration: 30 * time.Second,
			Override:        5 * time.Second,
		}
		assert.Equal(t, 5*time.Second, it.duration())
	})

	t.Run("video uses natural duration", func(t *testing.T) {
		it := Item{MediaType: model.MediaTypeVideo, NaturalDuration: 42 * time.Second}
		assert.Equal(t, 42*time.Second, it.duration())
	})

	t.Run("audio uses natural duration", func(t *testing.T) {
		it := Item{MediaType: model.MediaTypeAudio, NaturalDuration: 90 * time.Second}
		assert.Equal(t, 90*time.Second, it.duration())
	})

	t.Run("image ignores natural duration", func(t *testing.T) {
		it := Item{MediaType: model.MediaTypeImage, NaturalDuration: 42 * time.Second}
		assert.Equal(t, defaultItemDuration, it.duration())
	})

	t.Run("image without duration falls back to default", func(t *testing.T) {
		it := Item{MediaType: model.MediaTypeImage}
		assert.Equal(t, 8*time.Second, it.duration())
	})

	t.Run("document falls back to default", func(t *testing.T) {
		it := Item{MediaType: model.MediaTypeDocument}
		assert.Equal(t, 8*time.Second, it.duration())
	})

	t.Run("slides use slides default", func(t *testing.T) {
		it := Item{MediaType: model.MediaTypeSlides}
		assert.Equal(t, 10*time.Second, it.duration())
	})

	t.Run("video without natural duration falls back to default", func(t *testing.T) {
		it := Item{MediaType: model.MediaTypeVideo}
		assert.Equal(t, defaultItemDuration, it.duration())
	})
}

func TestSchedulerLoad(t *testing.T) {
	t.Run("empty playlist stays idle", func(t *testing.T) {
		s := seededScheduler()
		now := time.Now()

		s.Load(nil, Options{AutoAdvance: true}, now)

		st := s.Status(now)
		assert.Equal(t, StateIdle, st.State)
		assert.Equal(t, -1, st.Position)
		assert.False(t, st.ContentError)
	})

	t.Run("starts playing from position 0", func(t *testing.T) {
		s := seededScheduler()
		now := time.Now()

		s.Load(testItems(3), Options{AutoAdvance: true}, now)

		st := s.Status(now)
		assert.Equal(t, StatePlaying, st.State)
		assert.Equal(t, 0, st.Position)
		assert.Equal(t, int64(8000), st.RemainingMs)
		assert.Equal(t, int64(1), st.PlayedCount)
	})

	t.Run("reload resets a previous session", func(t *testing.T) {
		s := seededScheduler()
		now := time.Now()

		s.Load(testItems(3), Options{AutoAdvance: true}, now)
		s.Next(now)
		s.Load(testItems(2), Options{AutoAdvance: true}, now)

		st := s.Status(now)
		assert.Equal(t, StatePlaying, st.State)
		assert.Equal(t, 0, st.Position)
		assert.Equal(t, int64(1), st.PlayedCount)
	})
}

func TestSchedulerTick(t *testing.T) {
	t.Run("advances when the item's time is up", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(3), Options{AutoAdvance: true, Loop: true}, t0)

		s.Tick(t0.Add(8 * time.Second))

		st := s.Status(t0.Add(8 * time.Second))
		assert.Equal(t, StatePlaying, st.State)
		assert.Equal(t, 1, st.Position)
	})

	t.Run("does not advance before the item's time is up", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(3), Options{AutoAdvance: true, Loop: true}, t0)

		s.Tick(t0.Add(7 * time.Second))

		st := s.Status(t0.Add(7 * time.Second))
		assert.Equal(t, 0, st.Position)
		assert.Equal(t, int64(1000), st.RemainingMs)
	})

	t.Run("one large tick advances across several items", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(4), Options{AutoAdvance: true, Loop: true}, t0)

		// 20s of 8s items: two full items plus 4s into the third.
		s.Tick(t0.Add(20 * time.Second))

		st := s.Status(t0.Add(20 * time.Second))
		assert.Equal(t, 2, st.Position)
		assert.Equal(t, int64(4000), st.RemainingMs)
	})

	t.Run("status interpolates remaining time between ticks", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: true}, t0)

		st := s.Status(t0.Add(3 * time.Second))
		assert.Equal(t, 0, st.Position)
		assert.Equal(t, int64(5000), st.RemainingMs)
	})

	t.Run("ignores a tick that goes backwards", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: true}, t0)

		s.Tick(t0.Add(-5 * time.Second))

		st := s.Status(t0.Add(-5 * time.Second))
		assert.Equal(t, StatePlaying, st.State)
		assert.Equal(t, 0, st.Position)
	})

	t.Run("backwards tick does not stretch the next interval", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: true}, t0)

		s.Tick(t0.Add(-5 * time.Second))
		s.Tick(t0.Add(4 * time.Second))

		// Only 4s of real time passed since load; a regressed clock
		// in between must not count as elapsed playback.
		st := s.Status(t0.Add(4 * time.Second))
		assert.Equal(t, 0, st.Position)
		assert.Equal(t, int64(4000), st.RemainingMs)
	})
}

func TestSchedulerLoop(t *testing.T) {
	t.Run("wraps to the start when loop is enabled", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: true}, t0)

		s.Tick(t0.Add(16 * time.Second))

		st := s.Status(t0.Add(16 * time.Second))
		assert.Equal(t, StatePlaying, st.State)
		assert.Equal(t, 0, st.Position)
		assert.Equal(t, int64(3), st.PlayedCount)
	})

	t.Run("stops and holds the last item when loop is disabled", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: false}, t0)

		s.Tick(t0.Add(30 * time.Second))

		st := s.Status(t0.Add(30 * time.Second))
		assert.Equal(t, StateStopped, st.State)
		assert.Equal(t, 1, st.Position)
		assert.Equal(t, int64(0), st.RemainingMs)
	})

	t.Run("play after end restarts from position 0", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: false}, t0)
		s.Tick(t0.Add(30 * time.Second))

		s.Play(t0.Add(31 * time.Second))

		st := s.Status(t0.Add(31 * time.Second))
		assert.Equal(t, StatePlaying, st.State)
		assert.Equal(t, 0, st.Position)
	})
}

func TestSchedulerShuffle(t *testing.T) {
	t.Run("every pass is a full permutation", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		n := 5
		s.Load(testItems(n), Options{AutoAdvance: true, Loop: true, Shuffle: true}, t0)

		now := t0
		for pass := 0; pass < 10; pass++ {
			seen := make(map[int]bool)
			for i := 0; i < n; i++ {
				st := s.Status(now)
				seen[st.Position] = true
				now = now.Add(8 * time.Second)
				s.Tick(now)
			}
			assert.Len(t, seen, n, "pass %d should visit every item exactly once", pass)
		}
	})

	t.Run("reshuffles on loop boundaries", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		n := 6
		s.Load(testItems(n), Options{AutoAdvance: true, Loop: true, Shuffle: true}, t0)

		now := t0
		passes := make([][]int, 0, 30)
		for pass := 0; pass < 30; pass++ {
			order := make([]int, 0, n)
			for i := 0; i < n; i++ {
				order = append(order, s.Status(now).Position)
				now = now.Add(8 * time.Second)
				s.Tick(now)
			}
			passes = append(passes, order)
		}

		distinct := make(map[string]bool)
		for _, p := range passes {
			key := ""
			for _, idx := range p {
				key += string(rune('0' + idx))
			}
			distinct[key] = true
		}
		// 30 draws of 720 permutations repeating every time is
		// effectively impossible with a working reshuffle.
		assert.Greater(t, len(distinct), 1, "play order should change between loops")
	})

	t.Run("unshuffled order is stored position order", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(3), Options{AutoAdvance: true, Loop: true}, t0)

		now := t0
		got := make([]int, 0, 6)
		for i := 0; i < 6; i++ {
			got = append(got, s.Status(now).Position)
			now = now.Add(8 * time.Second)
			s.Tick(now)
		}
		assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, got)
	})
}

func TestSchedulerPauseResume(t *testing.T) {
	t.Run("pause freezes the countdown", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: true}, t0)

		s.Pause(t0.Add(3 * time.Second))

		st := s.Status(t0.Add(60 * time.Second))
		assert.Equal(t, StatePaused, st.State)
		assert.Equal(t, 0, st.Position)
		assert.Equal(t, int64(5000), st.RemainingMs)
	})

	t.Run("ticks while paused are no-ops", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: true}, t0)
		s.Pause(t0.Add(2 * time.Second))

		s.Tick(t0.Add(30 * time.Second))

		st := s.Status(t0.Add(30 * time.Second))
		assert.Equal(t, StatePaused, st.State)
		assert.Equal(t, 0, st.Position)
	})

	t.Run("resume continues with the remaining time", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: true}, t0)
		s.Pause(t0.Add(3 * time.Second))

		s.Resume(t0.Add(60 * time.Second))
		s.Tick(t0.Add(64 * time.Second))

		st := s.Status(t0.Add(64 * time.Second))
		assert.Equal(t, StatePlaying, st.State)
		assert.Equal(t, 0, st.Position)
		assert.Equal(t, int64(1000), st.RemainingMs)
	})

	t.Run("resume when not paused is a no-op", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: true}, t0)

		s.Resume(t0.Add(time.Second))

		st := s.Status(t0.Add(time.Second))
		assert.Equal(t, StatePlaying, st.State)
	})
}

func TestSchedulerNextPrevious(t *testing.T) {
	t.Run("next skips to the following item", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(3), Options{AutoAdvance: true, Loop: true}, t0)

		s.Next(t0.Add(time.Second))

		st := s.Status(t0.Add(time.Second))
		assert.Equal(t, 1, st.Position)
		assert.Equal(t, int64(8000), st.RemainingMs)
	})

	t.Run("previous steps back one item", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(3), Options{AutoAdvance: true, Loop: true}, t0)
		s.Next(t0.Add(time.Second))

		s.Previous(t0.Add(2 * time.Second))

		st := s.Status(t0.Add(2 * time.Second))
		assert.Equal(t, 0, st.Position)
	})

	t.Run("previous clamps at the first item", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(3), Options{AutoAdvance: true, Loop: true}, t0)

		s.Previous(t0.Add(time.Second))

		st := s.Status(t0.Add(time.Second))
		assert.Equal(t, 0, st.Position)
	})

	t.Run("previous restarts the item countdown", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(3), Options{AutoAdvance: true, Loop: true}, t0)
		s.Tick(t0.Add(5 * time.Second))

		s.Previous(t0.Add(5 * time.Second))

		st := s.Status(t0.Add(5 * time.Second))
		assert.Equal(t, 0, st.Position)
		assert.Equal(t, int64(8000), st.RemainingMs)
	})

	t.Run("next works while paused", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(3), Options{AutoAdvance: true, Loop: true}, t0)
		s.Pause(t0.Add(time.Second))

		s.Next(t0.Add(2 * time.Second))

		st := s.Status(t0.Add(2 * time.Second))
		assert.Equal(t, StatePaused, st.State)
		assert.Equal(t, 1, st.Position)
	})

	t.Run("next past the end stops a non-looping playlist", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: false}, t0)
		s.Next(t0.Add(time.Second))

		s.Next(t0.Add(2 * time.Second))

		st := s.Status(t0.Add(2 * time.Second))
		assert.Equal(t, StateStopped, st.State)
		assert.Equal(t, 1, st.Position)
	})
}

func TestSchedulerStop(t *testing.T) {
	t.Run("stop clears the session", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(3), Options{AutoAdvance: true, Loop: true}, t0)

		s.Stop(t0.Add(time.Second))

		st := s.Status(t0.Add(time.Second))
		assert.Equal(t, StateStopped, st.State)
		assert.Equal(t, -1, st.Position)
	})

	t.Run("restart plays from position 0 with a fresh order", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(3), Options{AutoAdvance: true, Loop: true}, t0)
		s.Next(t0.Add(time.Second))

		s.Restart(t0.Add(2 * time.Second))

		st := s.Status(t0.Add(2 * time.Second))
		assert.Equal(t, StatePlaying, st.State)
		assert.Equal(t, 0, st.Position)
		assert.Equal(t, int64(8000), st.RemainingMs)
	})

	t.Run("play after stop starts a fresh played counter", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: true}, t0)
		s.Tick(t0.Add(16 * time.Second))
		s.Stop(t0.Add(17 * time.Second))

		s.Play(t0.Add(18 * time.Second))

		st := s.Status(t0.Add(18 * time.Second))
		assert.Equal(t, StatePlaying, st.State)
		assert.Equal(t, int64(1), st.PlayedCount)
	})

	t.Run("restart resets the played counter", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: true}, t0)
		s.Tick(t0.Add(16 * time.Second))

		s.Restart(t0.Add(17 * time.Second))

		st := s.Status(t0.Add(17 * time.Second))
		assert.Equal(t, int64(1), st.PlayedCount)
	})
}

func TestSchedulerDwell(t *testing.T) {
	t.Run("auto-advance off holds the current item", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(3), Options{AutoAdvance: false, Loop: true}, t0)

		s.Tick(t0.Add(5 * time.Minute))

		st := s.Status(t0.Add(5 * time.Minute))
		assert.Equal(t, StatePlaying, st.State)
		assert.Equal(t, 0, st.Position)
		assert.False(t, st.AutoAdvance)
	})

	t.Run("next still advances in dwell mode", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(3), Options{AutoAdvance: false, Loop: true}, t0)

		s.Next(t0.Add(time.Second))

		st := s.Status(t0.Add(time.Second))
		assert.Equal(t, 1, st.Position)
	})

	t.Run("toggling auto-advance off suspends the countdown", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: true}, t0)
		s.Tick(t0.Add(3 * time.Second))

		s.SetAutoAdvance(false, t0.Add(3*time.Second))
		s.Tick(t0.Add(10 * time.Minute))

		st := s.Status(t0.Add(10 * time.Minute))
		assert.Equal(t, 0, st.Position)
		assert.Equal(t, int64(5000), st.RemainingMs)
	})

	t.Run("toggling auto-advance back on resumes the countdown", func(t *testing.T) {
		s := seededScheduler()
		t0 := time.Now()
		s.Load(testItems(2), Options{AutoAdvance: true, Loop: true}, t0)
		s.Tick(t0.Add(3 * time.Second))
		s.SetAutoAdvance(false, t0.Add(3*time.Second))

		s.SetAutoAdvance(true, t0.Add(10*time.Minute))
		s.Tick(t0.Add(10*time.Minute + 5*time.Second))

		st := s.Status(t0.Add(10*time.Minute + 5*time.Second))
		assert.Equal(t, 1, st.Position)
	})
}

func TestSchedulerBrokenItems(t *testing.T) {
	t.Run("skips an item with no media", func(t *testing.T) {
		items := []Item{
			imageItem(0),
			{Position: 1, MediaID: "media-b"}, // no URL
			imageItem(2),
		}
		s := seededScheduler()
		t0 := time.Now()
		s.Load(items, Options{AutoAdvance: true, Loop: true}, t0)

		s.Tick(t0.Add(8 * time.Second))

		st := s.Status(t0.Add(8 * time.Second))
		assert.Equal(t, StatePlaying, st.State)
		assert.Equal(t, 2, st.Position)
		assert.False(t, st.ContentError)
	})

	t.Run("skips a broken item at the head on load", func(t *testing.T) {
		items := []Item{
			{Position: 0, MediaID: "media-a"},
			imageItem(1),
		}
		s := seededScheduler()
		t0 := time.Now()
		s.Load(items, Options{AutoAdvance: true, Loop: true}, t0)

		st := s.Status(t0)
		assert.Equal(t, StatePlaying, st.State)
		assert.Equal(t, 1, st.Position)
	})

	t.Run("all items broken goes idle with content error", func(t *testing.T) {
		items := []Item{
			{Position: 0, MediaID: "media-a"},
			{Position: 1, MediaID: "media-b"},
		}
		s := seededScheduler()
		t0 := time.Now()
		s.Load(items, Options{AutoAdvance: true, Loop: true}, t0)

		st := s.Status(t0)
		assert.Equal(t, StateIdle, st.State)
		assert.True(t, st.ContentError)
	})

	t.Run("all items broken without loop goes idle too", func(t *testing.T) {
		items := []Item{
			{Position: 0, MediaID: "media-a"},
			{Position: 1, MediaID: "media-b"},
		}
		s := seededScheduler()
		t0 := time.Now()
		s.Load(items, Options{AutoAdvance: true, Loop: false}, t0)

		st := s.Status(t0)
		assert.Equal(t, StateIdle, st.State)
		assert.True(t, st.ContentError)
	})
}

func TestParseCommand(t *testing.T) {
	t.Run("accepts known commands", func(t *testing.T) {
		for _, raw := range []string{"play", "pause", "resume", "stop", "next", "previous", "restart"} {
			cmd, ok := ParseCommand(raw)
			assert.True(t, ok, "command %q should parse", raw)
			assert.Equal(t, Command(raw), cmd)
		}
	})

	t.Run("rejects unknown commands", func(t *testing.T) {
		for _, raw := range []string{"", "PLAY", "rewind", "skip"} {
			_, ok := ParseCommand(raw)
			assert.False(t, ok, "command %q should not parse", raw)
		}
	})
}

func TestSnapshot(t *testing.T) {
	t.Run("resolves overrides and default transition", func(t *testing.T) {
		override := 15
		fade := model.TransitionFade
		durationMs := int64(42_000)
		pl := &model.Playlist{
			LoopEnabled:       true,
			Shuffle:           false,
			AutoAdvance:       true,
			DefaultTransition: model.TransitionSlide,
			Items: []model.PlaylistItem{
				{
					Position:        0,
					MediaID:         "m-1",
					DurationSeconds: &override,
					Media: &model.MediaRecord{
						ID:   "m-1",
						Type: model.MediaTypeImage,
						URL:  "https://cdn.example.com/a.png",
					},
				},
				{
					Position:   1,
					MediaID:    "m-2",
					Transition: &fade,
					Media: &model.MediaRecord{
						ID:                "m-2",
						Type:              model.MediaTypeVideo,
						URL:               "https://cdn.example.com/b.mp4",
						NaturalDurationMs: &durationMs,
					},
				},
			},
		}

		items, opts := Snapshot(pl)

		assert.Len(t, items, 2)
		assert.True(t, opts.Loop)
		assert.True(t, opts.AutoAdvance)

		assert.Equal(t, 15*time.Second, items[0].Override)
		assert.Equal(t, model.TransitionSlide, items[0].Transition)

		assert.Equal(t, time.Duration(0), items[1].Override)
		assert.Equal(t, 42*time.Second, items[1].NaturalDuration)
		assert.Equal(t, model.TransitionFade, items[1].Transition)
	})

	t.Run("item without loaded media snapshots as unplayable", func(t *testing.T) {
		pl := &model.Playlist{
			DefaultTransition: model.TransitionNone,
			Items: []model.PlaylistItem{
				{Position: 0, MediaID: "m-gone"},
			},
		}

		items, _ := Snapshot(pl)

		assert.Len(t, items, 1)
		assert.False(t, items[0].playable())
	})
}
