package types

import "time"

// SyncResult summarizes one reconciliation run of the model data directory.
type SyncResult struct {
	// Skipped is true when the source directory was absent or empty.
	Skipped     bool  `json:"skipped"`
	FilesSeen   int   `json:"files_seen"`
	FilesCopied int   `json:"files_copied"`
	BytesCopied int64 `json:"bytes_copied"`
}

// RestartEvent records one restart issued by the watch supervisor.
type RestartEvent struct {
	At       time.Time `json:"at"`
	Baseline time.Time `json:"baseline"`
	Err      string    `json:"err,omitempty"`
}

// StatusResponse is the payload of GET /statusz on the supervisor's own
// status endpoint. It reports supervisor state, not managed-process health.
type StatusResponse struct {
	ProcessName string        `json:"process_name"`
	WatchPath   string        `json:"watch_path"`
	Baseline    time.Time     `json:"baseline"`
	Restarts    int           `json:"restarts"`
	LastRestart *RestartEvent `json:"last_restart,omitempty"`
	LastSync    *SyncResult   `json:"last_sync,omitempty"`
}
