package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"deskdrop/internal/daemonctl"
	"deskdrop/internal/ipc"
	"deskdrop/internal/preflight"
)

func renderStatus(snapshot daemonctl.Snapshot, colorize bool, now time.Time) []string {
	status := snapshot.Status
	if status == nil {
		status = &ipc.StatusResponse{}
	}

	var lines []string
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	lines = append(lines, daemonLines(status, colorize, now)...)
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Readiness", colorize)...)
	lines = append(lines, readinessLines(snapshot.Checks, colorize)...)
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Activity", colorize)...)
	lines = append(lines, activityLines(status, colorize, now)...)
	return lines
}

func daemonLines(status *ipc.StatusResponse, colorize bool, now time.Time) []string {
	if !status.Running {
		return []string{
			renderStatusLine("Daemon", statusWarn, "Not running (start with `deskdrop start`)", colorize),
			renderStatusLine("Watch folder", statusInfo, status.WatchDir, colorize),
		}
	}

	detail := "Running"
	if status.PID > 0 {
		detail += fmt.Sprintf(" (pid %d", status.PID)
		if !status.StartedAt.IsZero() {
			detail += ", up " + strings.TrimSuffix(humanize.RelTime(status.StartedAt, now, "", ""), " ")
		}
		detail += ")"
	}
	lines := []string{renderStatusLine("Daemon", statusOK, detail, colorize)}

	if status.Paused {
		lines = append(lines, renderStatusLine("Arranging", statusWarn, "Paused (resume with `deskdrop resume`)", colorize))
	} else {
		lines = append(lines, renderStatusLine("Arranging", statusOK, "Active", colorize))
	}
	lines = append(lines, renderStatusLine("Watch folder", statusInfo, status.WatchDir, colorize))

	if status.MonitorRunning {
		lines = append(lines, renderStatusLine("Drive monitor", statusOK, "Listening for udev events", colorize))
	} else {
		lines = append(lines, renderStatusLine("Drive monitor", statusWarn, "Not running; entries go to the fallback folder", colorize))
	}

	drives := strconv.Itoa(status.DeviceCount)
	if status.Device != "" && status.DeviceCount > 0 {
		drives += " (latest: " + status.Device + ")"
	}
	lines = append(lines, renderStatusLine("Connected drives", statusInfo, drives, colorize))
	lines = append(lines, renderStatusLine("Destination", statusInfo, status.Destination, colorize))

	if len(status.InFlight) > 0 {
		lines = append(lines, renderStatusLine("Settling", statusInfo, strings.Join(status.InFlight, ", "), colorize))
	}
	if status.LogPath != "" {
		lines = append(lines, renderStatusLine("Log", statusInfo, status.LogPath, colorize))
	}
	return lines
}

func readinessLines(checks []preflight.Result, colorize bool) []string {
	if len(checks) == 0 {
		return []string{renderStatusLine("Checks", statusInfo, "None", colorize)}
	}
	lines := make([]string, 0, len(checks))
	for _, check := range checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	return lines
}

func activityLines(status *ipc.StatusResponse, colorize bool, now time.Time) []string {
	if status.HistoryError != "" {
		return []string{renderStatusLine("History", statusError, status.HistoryError, colorize)}
	}
	summary := status.History
	lines := []string{
		renderStatusLine("Moved", statusInfo, fmt.Sprintf("%d (%s)", summary.Moved, humanize.IBytes(uint64(max(summary.Bytes, 0)))), colorize),
	}
	failedKind := statusInfo
	if summary.Failed > 0 {
		failedKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Failed", failedKind, strconv.Itoa(summary.Failed), colorize))
	lines = append(lines, renderStatusLine("Skipped", statusInfo, strconv.Itoa(summary.Skipped), colorize))

	last := "Never"
	if !summary.LastMoved.IsZero() {
		last = humanize.RelTime(summary.LastMoved, now, "ago", "from now")
	}
	lines = append(lines, renderStatusLine("Last move", statusInfo, last, colorize))
	return lines
}
