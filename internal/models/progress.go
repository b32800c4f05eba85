package models

import "time"

// Progress is a coalesced snapshot of an indexing session's counters, emitted
// at a bounded rate plus on every state transition.
type Progress struct {
	SessionID      string        `json:"session_id"`
	State          string        `json:"state"`
	Discovered     int64         `json:"discovered"`
	Processed      int64         `json:"processed"`
	Errored        int64         `json:"errored"`
	BytesProcessed int64         `json:"bytes_processed"`
	CurrentFile    string        `json:"current_file"`
	Elapsed        time.Duration `json:"elapsed"`
	FilesPerSec    float64       `json:"files_per_sec"`
}
