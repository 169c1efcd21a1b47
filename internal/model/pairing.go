package model

import "time"

// PairingCode is a short-lived one-time code that binds an unclaimed
// display device to the account that issued it. A code is pending until
// it is redeemed or its expiry passes; neither transition is reversible.
type PairingCode struct {
	Code             string     `db:"code" json:"code"`
	OwnerID          string     `db:"owner_id" json:"ownerId"`
	IssuedAt         time.Time  `db:"issued_at" json:"issuedAt"`
	ExpiresAt        time.Time  `db:"expires_at" json:"expiresAt"`
	RedeemedAt       *time.Time `db:"redeemed_at" json:"redeemedAt,omitempty"`
	RedeemedDeviceID *string    `db:"redeemed_device_id" json:"redeemedDeviceId,omitempty"`
}

func (c *PairingCode) Redeemed() bool {
	return c.RedeemedAt != nil
}

func (c *PairingCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

type CreatePairingCodeParams struct {
	Code      string
	OwnerID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
