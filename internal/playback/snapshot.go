package playback

import (
	"time"

	"github.com/beamline/signage-server-go/internal/model"
)

// Snapshot converts a loaded playlist into the scheduler's item list
// and options. Items keep their stored position order; transitions are
// resolved against the playlist default here so the scheduler never
// consults the playlist again.
func Snapshot(pl *model.Playlist) ([]Item, Options) {
	opts := Options{
		Loop:              pl.LoopEnabled,
		Shuffle:           pl.Shuffle,
		AutoAdvance:       pl.AutoAdvance,
		DefaultTransition: pl.DefaultTransition,
	}

	items := make([]Item, 0, len(pl.Items))
	for _, pi := range pl.Items {
		it := Item{
			Position:   pi.Position,
			MediaID:    pi.MediaID,
			Transition: opts.DefaultTransition,
		}
		if pi.Transition != nil {
			it.Transition = *pi.Transition
		}
		if pi.DurationSeconds != nil && *pi.DurationSeconds > 0 {
			it.Override = time.Duration(*pi.DurationSeconds) * time.Second
		}
		if pi.Media != nil {
			it.MediaType = pi.Media.Type
			it.URL = pi.Media.URL
			if pi.Media.NaturalDurationMs != nil && *pi.Media.NaturalDurationMs > 0 {
				it.NaturalDuration = time.Duration(*pi.Media.NaturalDurationMs) * time.Millisecond
			}
		}
		items = append(items, it)
	}

	return items, opts
}
