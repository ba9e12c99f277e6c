package history

import "time"

// Status is the outcome of one arrangement.
type Status string

const (
	// StatusMoved means the entry now lives in the destination folder.
	StatusMoved Status = "moved"
	// StatusFailed means the move was attempted and failed.
	StatusFailed Status = "failed"
	// StatusSkipped means the entry never settled or disappeared first.
	StatusSkipped Status = "skipped"
)

// Entry is one row of the moves table.
type Entry struct {
	ID            int64         `json:"id"`
	CorrelationID string        `json:"correlation_id"`
	Source        string        `json:"source"`
	Target        string        `json:"target,omitempty"`
	Device        string        `json:"device,omitempty"`
	IsDir         bool          `json:"is_dir"`
	Bytes         int64         `json:"bytes"`
	CrossDevice   bool          `json:"cross_device"`
	Wait          time.Duration `json:"wait"`
	Status        Status        `json:"status"`
	Error         string        `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	FinishedAt    time.Time     `json:"finished_at,omitempty"`
}

// Summary aggregates the moves table.
type Summary struct {
	Total     int       `json:"total"`
	Moved     int       `json:"moved"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Bytes     int64     `json:"bytes"`
	LastMoved time.Time `json:"last_moved,omitempty"`
}
