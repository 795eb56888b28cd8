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
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background sweep over the waiting pool
const SweepInterval = 1 * time.Minute

// Best-effort transcript writes get their own deadline, detached from the
// relay path.
const TranscriptWriteTimeout = 5 * time.Second

// Ledger writes during leave/disconnect cleanup are retried this many times
// before giving up with a log-level signal.
const SessionEndRetries = 3

// Per-connection outbound event buffer
const ClientEventBuffer = 100
