package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Devices are expected to heartbeat on this cadence.
const DeviceHeartbeatInterval = 30 * time.Second

// Resolution of the server-side playback runners. One tick may advance
// the cursor across several short items.
const PlaybackTickInterval = 500 * time.Millisecond

// Default rate limiting
const (
	DefaultRateLimitPerMin = 60
	PairRateLimitPerIP     = 10
	PairRateLimitWindow    = time.Minute
)
