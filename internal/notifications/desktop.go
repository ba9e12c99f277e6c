package notifications

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// desktopSender shows freedesktop notifications through notify-send. The
// bubble of a finished move replaces its "moving" bubble.
type desktopSender struct {
	command string

	mu  sync.Mutex
	ids map[string]string
}

func newDesktopSender(command string) *desktopSender {
	return &desktopSender{command: command, ids: make(map[string]string)}
}

func (d *desktopSender) send(ctx context.Context, msg message) error {
	args := []string{"--app-name=deskdrop", "--icon=folder", "--print-id"}
	switch msg.priority {
	case "high":
		args = append(args, "--urgency=critical")
	case "low":
		args = append(args, "--urgency=low")
	}
	if msg.expire > 0 {
		args = append(args, "--expire-time="+strconv.FormatInt(msg.expire.Milliseconds(), 10))
	}

	d.mu.Lock()
	id, replacing := d.ids[msg.key]
	d.mu.Unlock()
	if replacing {
		args = append(args, "--replace-id="+id)
	}
	args = append(args, "--", msg.title, msg.body)

	out, err := exec.CommandContext(ctx, d.command, args...).Output()
	if err != nil {
		return fmt.Errorf("%s: %w", d.command, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if msg.final {
		delete(d.ids, msg.key)
		return nil
	}
	if newID := strings.TrimSpace(string(out)); newID != "" {
		if _, err := strconv.ParseUint(newID, 10, 32); err == nil {
			d.ids[msg.key] = newID
		}
	}
	return nil
}
