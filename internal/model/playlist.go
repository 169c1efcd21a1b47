package model

import "time"

// Playlist is consumed read-only by the playback core; authoring lives
// elsewhere.
type Playlist struct {
	ID                string     `db:"id" json:"id"`
	OwnerID           string     `db:"owner_id" json:"ownerId"`
	Name              string     `db:"name" json:"name"`
	LoopEnabled       bool       `db:"loop_enabled" json:"loopEnabled"`
	Shuffle           bool       `db:"shuffle" json:"shuffle"`
	AutoAdvance       bool       `db:"auto_advance" json:"autoAdvance"`
	DefaultTransition Transition `db:"default_transition" json:"defaultTransition"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`

	Items []PlaylistItem `db:"-" json:"items,omitempty"`
}

// PlaylistItem positions are unique per playlist and define play order
// when shuffle is off. DurationSeconds overrides the media's natural
// duration when set.
type PlaylistItem struct {
	ID              string      `db:"id" json:"id"`
	PlaylistID      string      `db:"playlist_id" json:"playlistId"`
	Position        int         `db:"position" json:"position"`
	MediaID         string      `db:"media_id" json:"mediaId"`
	DurationSeconds *int        `db:"duration_seconds" json:"durationSeconds,omitempty"`
	Transition      *Transition `db:"transition" json:"transition,omitempty"`

	Media *MediaRecord `db:"-" json:"media,omitempty"`
}
