package config

import "time"

// SyncConfig tunes the device-sync outbox: queue depth, retry budget
// and the backoff window between delivery attempts.  Defaults match the
// broker consumer's reconnect window (1s doubling up to 30s).
type SyncConfig struct {
    OutboxSize   int
    MaxAttempts  int
    BaseBackoff  time.Duration
    MaxBackoff   time.Duration
    CallTimeout  time.Duration
    MergeTimeout time.Duration // bound on one MergeAndSync round-trip
}

// LoadSyncConfig reads environment variables to build a SyncConfig.
// Defaults are used when variables are not set.
func LoadSyncConfig() SyncConfig {
    return SyncConfig{
        OutboxSize:   atoi(getenv("SYNC_OUTBOX_SIZE", "256")),
        MaxAttempts:  atoi(getenv("SYNC_MAX_ATTEMPTS", "5")),
        BaseBackoff:  parseDur(getenv("SYNC_BASE_BACKOFF", "1s")),
        MaxBackoff:   parseDur(getenv("SYNC_MAX_BACKOFF", "30s")),
        CallTimeout:  parseDur(getenv("SYNC_CALL_TIMEOUT", "10s")),
        MergeTimeout: parseDur(getenv("SYNC_MERGE_TIMEOUT", "30s")),
    }
}
