package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"golang.org/x/sys/unix"

	"deskdrop/internal/config"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckNetlink verifies that a udev netlink socket can be opened.
func CheckNetlink() Result {
	const name = "Drive detection"
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("netlink unavailable (%v)", err)}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: "udev netlink reachable"}
}

// CheckNtfy verifies that the ntfy topic URL answers.
func CheckNtfy(ctx context.Context, topic string) Result {
	const name = "ntfy"

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Result{Name: name, Detail: "missing topic"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, topic, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid topic url (%v)", err)}
	}
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: "access denied (check topic permissions)"}
	case resp.StatusCode >= 500:
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	default:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	}
}

// CheckSystemDeps evaluates the helper binaries the config relies on. Both
// the daemon and the CLI status command use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(cfg *config.Config) []BinaryStatus {
	var requirements []Requirement
	if cfg.Notify.Desktop {
		requirements = append(requirements, Requirement{
			Name:        "notify-send",
			Command:     "notify-send",
			Description: "Required for desktop notifications",
		})
	}
	if cfg.Notify.OpenDestination {
		requirements = append(requirements, Requirement{
			Name:        "xdg-open",
			Command:     "xdg-open",
			Description: "Opens the destination folder after a move",
			Optional:    true,
		})
	}
	return CheckBinaries(requirements)
}
