package devices

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"deskdrop/internal/config"
	"deskdrop/internal/logging"
)

// Sink receives drive connect and disconnect notifications.
type Sink interface {
	Inserted(Device)
	Removed(Device)
}

// Monitor listens for udev netlink events about removable filesystems and
// reports them to a Sink once per physical disk.
type Monitor struct {
	logger  *slog.Logger
	sink    Sink
	buses   []string
	aliases map[string]string

	mu       sync.Mutex
	conn     *netlink.UEventConn
	quit     chan struct{}
	running  bool
	attached map[string]int
}

// NewMonitor creates a monitor for the buses configured in cfg. It returns
// nil when device tracking is disabled.
func NewMonitor(cfg *config.Config, sink Sink, logger *slog.Logger) *Monitor {
	if cfg == nil || !cfg.Devices.Enabled || sink == nil {
		return nil
	}
	return &Monitor{
		logger:   logging.NewComponentLogger(logger, "device-monitor"),
		sink:     sink,
		buses:    append([]string(nil), cfg.Devices.Buses...),
		aliases:  cfg.Devices.Aliases,
		attached: make(map[string]int),
	}
}

// Start begins listening for udev netlink events. A netlink connection
// failure is logged and otherwise ignored: entries then go to the fallback
// folder.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; drives will not be detected", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open NETLINK_KOBJECT_UEVENT sockets"),
			logging.String(logging.FieldImpact, "all entries are filed under the fallback folder"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("device monitor started",
		logging.String(logging.FieldEventType, "device_monitor_started"),
		logging.String("buses", strings.Join(m.buses, ",")),
	)
	return nil
}

// Stop shuts down the netlink listener.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("device monitor stopped",
		logging.String(logging.FieldEventType, "device_monitor_stopped"),
	)
}

// Running reports whether the netlink listener is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Seed registers drives that were attached before the monitor started.
func (m *Monitor) Seed(devs []Device) {
	if m == nil {
		return
	}
	for _, dev := range devs {
		m.attach(dev.WithAliases(m.aliases))
	}
}

// drainGrace is how long a stopped monitor keeps discarding late events.
const drainGrace = time.Second

func (m *Monitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent, 16)
	errs := make(chan error, 4)
	monitorQuit := conn.Monitor(queue, errs, m.matcher())
	stop := func() {
		close(monitorQuit)
		go drain(queue, errs, drainGrace)
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-quit:
			stop()
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "drive changes may be missed"),
			)
		}
	}
}

// drain discards whatever the netlink reader still sends after it was told
// to quit, so it never blocks on a send. It returns once nothing has arrived
// for grace and reports how many values it dropped.
func drain(queue <-chan netlink.UEvent, errs <-chan error, grace time.Duration) int {
	dropped := 0
	timer := time.NewTimer(grace)
	defer timer.Stop()
	for {
		select {
		case <-queue:
		case <-errs:
		case <-timer.C:
			return dropped
		}
		dropped++
		timer.Reset(grace)
	}
}

// matcher selects add/remove events for block devices on the configured
// buses that carry a filesystem.
func (m *Monitor) matcher() netlink.Matcher {
	action := "^(add|remove)$"
	quoted := make([]string, 0, len(m.buses))
	for _, bus := range m.buses {
		quoted = append(quoted, regexp.QuoteMeta(bus))
	}
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":   "^block$",
			"DEVTYPE":     "^(disk|partition)$",
			"ID_BUS":      "^(" + strings.Join(quoted, "|") + ")$",
			"ID_FS_USAGE": "^filesystem$",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(uevent netlink.UEvent) {
	dev := fromUdevEnv(uevent.Env).WithAliases(m.aliases)
	if dev.Disk == "" {
		m.logger.Debug("ignoring event without device path",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	switch uevent.Action {
	case netlink.ADD:
		if m.attach(dev) {
			m.logger.Info("removable drive connected",
				logging.String(logging.FieldEventType, "device_inserted"),
				logging.String(logging.FieldDevice, dev.DisplayName()),
				logging.String("node", dev.Node),
			)
		}
	case netlink.REMOVE:
		if m.detach(dev) {
			m.logger.Info("removable drive disconnected",
				logging.String(logging.FieldEventType, "device_removed"),
				logging.String(logging.FieldDevice, dev.DisplayName()),
				logging.String("node", dev.Node),
			)
		}
	}
}

// attach reports whether dev is the first filesystem seen on its disk.
func (m *Monitor) attach(dev Device) bool {
	m.mu.Lock()
	m.attached[dev.Disk]++
	first := m.attached[dev.Disk] == 1
	m.mu.Unlock()
	if first {
		m.sink.Inserted(dev)
	}
	return first
}

// detach reports whether dev was the last filesystem on its disk.
func (m *Monitor) detach(dev Device) bool {
	m.mu.Lock()
	n, ok := m.attached[dev.Disk]
	if !ok {
		m.mu.Unlock()
		return false
	}
	last := n <= 1
	if last {
		delete(m.attached, dev.Disk)
	} else {
		m.attached[dev.Disk] = n - 1
	}
	m.mu.Unlock()
	if last {
		m.sink.Removed(dev)
	}
	return last
}
