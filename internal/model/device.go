package model

import "time"

// Device is a claimed screen. The stored status column is advisory
// bookkeeping written by the offline sweep; callers must derive the
// effective status from LastSeenAt, see EffectiveStatus.
type Device struct {
	ID                 string       `db:"id" json:"id"`
	OwnerID            string       `db:"owner_id" json:"ownerId"`
	Name               string       `db:"name" json:"name"`
	TokenHash          string       `db:"token_hash" json:"-"`
	Status             DeviceStatus `db:"status" json:"status"`
	LastSeenAt         *time.Time   `db:"last_seen_at" json:"lastSeenAt,omitempty"`
	AssignedPlaylistID *string      `db:"assigned_playlist_id" json:"assignedPlaylistId,omitempty"`
	ScreenWidth        *int         `db:"screen_width" json:"screenWidth,omitempty"`
	ScreenHeight       *int         `db:"screen_height" json:"screenHeight,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updatedAt"`
}

// EffectiveStatus computes liveness from the last heartbeat. A device
// that has never heartbeated, or whose last heartbeat is older than the
// timeout, is offline. The result is a pure function of stored state
// and the supplied clock reading.
func (d *Device) EffectiveStatus(now time.Time, timeout time.Duration) DeviceStatus {
	if d.LastSeenAt == nil {
		return DeviceStatusOffline
	}
	if now.Sub(*d.LastSeenAt) < timeout {
		return DeviceStatusOnline
	}
	return DeviceStatusOffline
}

// DeviceClaim is what a device presents when redeeming a pairing code.
// DeviceID is set when a previously paired screen re-pairs and wants to
// keep its identity.
type DeviceClaim struct {
	DeviceID     *string `json:"deviceId,omitempty"`
	Name         string  `json:"name"`
	ScreenWidth  *int    `json:"screenWidth,omitempty"`
	ScreenHeight *int    `json:"screenHeight,omitempty"`
}

type UpsertDeviceParams struct {
	ID           string
	OwnerID      string
	Name         string
	TokenHash    string
	ScreenWidth  *int
	ScreenHeight *int
}
