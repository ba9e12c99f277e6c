package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kardianos/service"

	"deskdrop/internal/logging"
)

// Name is the service name registered with the platform service manager.
const Name = "deskdrop"

// stopTimeout bounds how long Stop waits for the runner to return.
const stopTimeout = 15 * time.Second

// Runner runs the daemon until ctx is cancelled.
type Runner func(ctx context.Context) error

// Manager controls the deskdrop service.
type Manager struct {
	svc     service.Service
	program *program
}

type program struct {
	run    Runner
	logger *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan error
	stopping bool
}

func (p *program) Start(service.Service) error {
	if p.run == nil {
		return errors.New("service has no runner")
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.stopping = false
	p.mu.Unlock()

	go func() {
		err := p.run(ctx)
		done <- err

		p.mu.Lock()
		stopping := p.stopping
		p.mu.Unlock()
		if stopping {
			return
		}
		// The daemon ended on its own (IPC stop or a fatal error); end the
		// service process so the service manager sees it.
		if err != nil {
			p.logger.Error("service runner failed", logging.Error(err))
			os.Exit(1)
		}
		os.Exit(0)
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.stopping = true
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-time.After(stopTimeout):
		return fmt.Errorf("daemon did not stop within %s", stopTimeout)
	}
}

// Config builds the platform service definition. configPath, when set, is
// passed to `deskdrop run`.
func Config(executable, configPath string) *service.Config {
	args := []string{"service", "run"}
	if strings.TrimSpace(configPath) != "" {
		args = append(args, "--config", configPath)
	}
	return &service.Config{
		Name:        Name,
		DisplayName: "deskdrop",
		Description: "Moves new desktop files into folders named after the last connected drive",
		Executable:  executable,
		Arguments:   args,
		Option: service.KeyValue{
			"UserService": true,
			"Restart":     "on-failure",
			"RunAtLoad":   true,
			"KeepAlive":   false,
		},
	}
}

// NewManager wires run into a platform service.
func NewManager(configPath string, run Runner, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable path: %w", err)
	}
	prg := &program{run: run, logger: logging.NewComponentLogger(logger, "service")}
	svc, err := service.New(prg, Config(execPath, configPath))
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return &Manager{svc: svc, program: prg}, nil
}

// Install registers the service for automatic start.
func (m *Manager) Install() error {
	if err := m.svc.Install(); err != nil {
		return fmt.Errorf("install service: %w", err)
	}
	return nil
}

// Uninstall removes the service definition.
func (m *Manager) Uninstall() error {
	if err := m.svc.Uninstall(); err != nil {
		return fmt.Errorf("uninstall service: %w", err)
	}
	return nil
}

// Start asks the service manager to start deskdrop.
func (m *Manager) Start() error {
	return m.svc.Start()
}

// Stop asks the service manager to stop deskdrop.
func (m *Manager) Stop() error {
	return m.svc.Stop()
}

// Restart asks the service manager to restart deskdrop.
func (m *Manager) Restart() error {
	return m.svc.Restart()
}

// Status returns a human readable service state.
func (m *Manager) Status() (string, error) {
	status, err := m.svc.Status()
	if err != nil {
		if errors.Is(err, service.ErrNotInstalled) {
			return "Not installed", nil
		}
		return StatusName(service.StatusUnknown), err
	}
	return StatusName(status), nil
}

// Run blocks while the service manager drives Start and Stop.
func (m *Manager) Run() error {
	return m.svc.Run()
}

// Platform names the detected service system, e.g. "linux-systemd".
func (m *Manager) Platform() string {
	return m.svc.Platform()
}

// StatusName renders a service.Status.
func StatusName(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Running"
	case service.StatusStopped:
		return "Stopped"
	case service.StatusUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Status(%d)", int(status))
	}
}
