package notifications

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"deskdrop/internal/config"
	"deskdrop/internal/mover"
)

const userAgent = "deskdrop/0.1.0"

// Service defines the notification surface used by the arranger.
type Service interface {
	NotifyMoveStarted(ctx context.Context, src, destDir string) error
	NotifyMoveCompleted(ctx context.Context, result mover.Result) error
	NotifyMoveFailed(ctx context.Context, src string, err error) error
	TestNotification(ctx context.Context) error
}

// message is the backend-neutral form of a notification.
type message struct {
	// key groups the messages of one arrangement so a backend can replace
	// the earlier bubble.
	key      string
	final    bool
	title    string
	body     string
	tags     []string
	priority string
	expire   time.Duration
}

type sender interface {
	send(ctx context.Context, msg message) error
}

// NewService builds a notification service for the enabled backends. When
// none is enabled a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	var senders []sender
	if cfg.Notify.Desktop {
		senders = append(senders, newDesktopSender("notify-send"))
	}
	if topic := strings.TrimSpace(cfg.Notify.NtfyTopic); topic != "" {
		timeout := time.Duration(cfg.Notify.RequestTimeout) * time.Second
		senders = append(senders, newNtfySender(topic, timeout))
	}
	if len(senders) == 0 {
		return noopService{}
	}
	return &service{senders: senders, display: cfg.DisplayDuration()}
}

type service struct {
	senders []sender
	display time.Duration
}

func (s *service) NotifyMoveStarted(ctx context.Context, src, destDir string) error {
	return s.dispatch(ctx, message{
		key:   src,
		title: "deskdrop - Moving",
		body:  fmt.Sprintf("%s → %s", filepath.Base(src), filepath.Base(destDir)),
		tags:  []string{"deskdrop", "move", "started"},
	})
}

func (s *service) NotifyMoveCompleted(ctx context.Context, result mover.Result) error {
	name := filepath.Base(result.Target)
	if result.Bytes > 0 {
		name = fmt.Sprintf("%s (%s)", name, humanize.IBytes(uint64(result.Bytes)))
	}
	return s.dispatch(ctx, message{
		key:    result.Source,
		final:  true,
		title:  "deskdrop - Moved",
		body:   fmt.Sprintf("%s moved to %s", name, filepath.Dir(result.Target)),
		tags:   []string{"deskdrop", "move", "completed"},
		expire: s.display,
	})
}

func (s *service) NotifyMoveFailed(ctx context.Context, src string, err error) error {
	reason := "unknown error"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	return s.dispatch(ctx, message{
		key:      src,
		final:    true,
		title:    "deskdrop - Move failed",
		body:     fmt.Sprintf("%s: %s", filepath.Base(src), reason),
		tags:     []string{"deskdrop", "move", "error"},
		priority: "high",
		expire:   s.display,
	})
}

func (s *service) TestNotification(ctx context.Context) error {
	return s.dispatch(ctx, message{
		key:      "test",
		final:    true,
		title:    "deskdrop - Test",
		body:     "Notification system test",
		tags:     []string{"deskdrop", "test"},
		priority: "low",
		expire:   s.display,
	})
}

func (s *service) dispatch(ctx context.Context, msg message) error {
	var errs []error
	for _, snd := range s.senders {
		if err := snd.send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) NotifyMoveStarted(context.Context, string, string) error { return nil }
func (noopService) NotifyMoveCompleted(context.Context, mover.Result) error { return nil }
func (noopService) NotifyMoveFailed(context.Context, string, error) error   { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }

// NewNop returns a Service that discards every notification.
func NewNop() Service { return noopService{} }
