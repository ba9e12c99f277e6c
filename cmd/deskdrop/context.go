package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"deskdrop/internal/config"
	"deskdrop/internal/ipc"
)

// errDaemonOffline marks dial failures that mean no daemon is listening.
var errDaemonOffline = errors.New("daemon not running")

// commandContext carries the persistent flags and the lazily loaded config
// shared by all subcommands.
type commandContext struct {
	socketFlag *string
	configFlag *string

	once       sync.Once
	cfg        *config.Config
	configPath string
	configSeen bool
	err        error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{socketFlag: socketFlag, configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.once.Do(func() {
		cfg, path, exists, err := config.Load(c.configFlagValue())
		if err == nil {
			err = cfg.EnsureDirectories()
		}
		if err != nil {
			c.err = err
			return
		}
		c.cfg, c.configPath, c.configSeen = cfg, path, exists
	})
	return c.cfg, c.err
}

// configValue returns the loaded config, or nil when loading failed.
func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// launchConfigPath is the config path handed to child processes, empty
// when defaults are in use.
func (c *commandContext) launchConfigPath() string {
	if _, err := c.ensureConfig(); err != nil || !c.configSeen {
		return ""
	}
	return c.configPath
}

func (c *commandContext) configFlagValue() string {
	return flagValue(c.configFlag)
}

func (c *commandContext) socketPath() string {
	if socket := flagValue(c.socketFlag); socket != "" {
		return socket
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	defaults := config.Default()
	return defaults.SocketPath()
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return wrapDialError(err, socket)
	}
	defer client.Close()
	return fn(client)
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to daemon: no socket at %s; start it with `deskdrop start`: %w", socket, errDaemonOffline)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: %s refused the connection; start it with `deskdrop start`: %w", socket, errDaemonOffline)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}
