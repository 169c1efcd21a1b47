package model

import "time"

// MediaRecord is an opaque catalog entry. NaturalDurationMs is only
// meaningful for time-based media (video/audio).
type MediaRecord struct {
	ID                string    `db:"id" json:"id"`
	OwnerID           string    `db:"owner_id" json:"ownerId"`
	Type              MediaType `db:"type" json:"type"`
	URL               string    `db:"url" json:"url"`
	NaturalDurationMs *int64    `db:"natural_duration_ms" json:"naturalDurationMs,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
}
