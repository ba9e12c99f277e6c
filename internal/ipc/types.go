package ipc

import (
	"time"

	"deskdrop/internal/arranger"
	"deskdrop/internal/devices"
	"deskdrop/internal/history"
)

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and arranger status information.
type StatusResponse struct {
	Running        bool            `json:"running"`
	Paused         bool            `json:"paused"`
	StartedAt      time.Time       `json:"started_at"`
	PID            int             `json:"pid"`
	WatchDir       string          `json:"watch_dir"`
	Destination    string          `json:"destination"`
	Device         string          `json:"device"`
	DeviceCount    int             `json:"device_count"`
	MonitorRunning bool            `json:"monitor_running"`
	InFlight       []string        `json:"in_flight"`
	Moved          int             `json:"moved"`
	Failed         int             `json:"failed"`
	Skipped        int             `json:"skipped"`
	LastTarget     string          `json:"last_target"`
	LastAt         time.Time       `json:"last_at"`
	History        history.Summary `json:"history"`
	HistoryError   string          `json:"history_error"`
	HistoryDBPath  string          `json:"history_db_path"`
	LockPath       string          `json:"lock_path"`
	LogPath        string          `json:"log_path"`
}

// PauseRequest stops new desktop entries from being arranged.
type PauseRequest struct{}

// PauseResponse reports whether the state changed.
type PauseResponse struct {
	Changed bool `json:"changed"`
}

// ResumeRequest re-enables arranging.
type ResumeRequest struct{}

// ResumeResponse reports whether the state changed.
type ResumeResponse struct {
	Changed bool `json:"changed"`
}

// ArrangeRequest arranges one path immediately.
type ArrangeRequest struct {
	Path string `json:"path"`
}

// ArrangeResponse carries the arrangement outcome.
type ArrangeResponse struct {
	Outcome arranger.Outcome `json:"outcome"`
}

// HistoryRequest lists recent arrangements; Limit <= 0 returns all.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse contains history entries, newest first.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

// DevicesRequest lists mounted removable drives.
type DevicesRequest struct{}

// DevicesResponse contains the drives and the tracker's view.
type DevicesResponse struct {
	Devices []devices.Device `json:"devices"`
	Count   int              `json:"count"`
	Current string           `json:"current"`
}

// StopRequest shuts the daemon down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
