// Package opener shows a folder in the user's file manager.
package opener

import (
	"fmt"
	"os"

	"github.com/skratchdot/open-golang/open"

	"deskdrop/internal/config"
)

// Opener opens a folder for the user.
type Opener interface {
	Open(path string) error
}

// New returns a file-manager opener, or a no-op one when
// notify.open_destination is off.
func New(cfg *config.Config) Opener {
	if cfg == nil || !cfg.Notify.OpenDestination {
		return Nop{}
	}
	return FileManager{}
}

// FileManager opens folders with the platform handler (xdg-open, open, or
// explorer). It does not wait for the file manager to exit.
type FileManager struct {
	// App, when set, is used instead of the default handler.
	App string
}

func (f FileManager) Open(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("open %s: not a directory", path)
	}
	if f.App != "" {
		err = open.StartWith(path, f.App)
	} else {
		err = open.Start(path)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	return nil
}

// Nop ignores open requests.
type Nop struct{}

func (Nop) Open(string) error { return nil }

// Func adapts a function to Opener.
type Func func(path string) error

func (f Func) Open(path string) error { return f(path) }
