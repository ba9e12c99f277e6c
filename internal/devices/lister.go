package devices

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"

	"deskdrop/internal/config"
)

// Lister enumerates mounted removable drives.
type Lister struct {
	SysRoot string
	DevRoot string
	Buses   []string
	Aliases map[string]string

	partitions func(ctx context.Context) ([]disk.PartitionStat, error)
}

// NewLister returns a Lister reading the live /sys and /dev trees.
func NewLister(cfg *config.Config) *Lister {
	l := &Lister{SysRoot: "/sys", DevRoot: "/dev", Buses: []string{"usb"}}
	if cfg != nil {
		l.Buses = append([]string(nil), cfg.Devices.Buses...)
		l.Aliases = cfg.Devices.Aliases
	}
	return l
}

// List returns one Device per mounted partition that sits on a removable disk
// or on one of the configured buses. Results are ordered by device node.
func (l *Lister) List(ctx context.Context) ([]Device, error) {
	partitions := l.partitions
	if partitions == nil {
		partitions = func(ctx context.Context) ([]disk.PartitionStat, error) {
			return disk.PartitionsWithContext(ctx, false)
		}
	}
	stats, err := partitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	seen := make(map[string]struct{}, len(stats))
	var devices []Device
	for _, stat := range stats {
		if !strings.HasPrefix(stat.Device, "/dev/") {
			continue
		}
		if _, dup := seen[stat.Device]; dup {
			continue
		}
		seen[stat.Device] = struct{}{}

		name := filepath.Base(stat.Device)
		sysPath, err := filepath.EvalSymlinks(filepath.Join(l.SysRoot, "class", "block", name))
		if err != nil {
			continue
		}
		diskName := name
		if fileExists(filepath.Join(sysPath, "partition")) {
			diskName = filepath.Base(filepath.Dir(sysPath))
		}
		bus, removable := l.classify(sysPath, diskName)
		if !removable {
			continue
		}
		dev := Device{
			Node:       stat.Device,
			Disk:       diskName,
			Label:      l.labelFor(stat.Device),
			Vendor:     readSysAttr(filepath.Join(l.SysRoot, "block", diskName, "device", "vendor")),
			Model:      readSysAttr(filepath.Join(l.SysRoot, "block", diskName, "device", "model")),
			UUID:       l.uuidFor(stat.Device),
			Bus:        bus,
			MountPoint: stat.Mountpoint,
		}
		if dev.Label == "" && stat.Mountpoint != "" && isMediaMount(stat.Mountpoint) {
			dev.Label = filepath.Base(stat.Mountpoint)
		}
		devices = append(devices, dev.WithAliases(l.Aliases))
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Node < devices[j].Node })
	return devices, nil
}

// classify reports the bus of the device and whether it should be tracked.
func (l *Lister) classify(sysPath, diskName string) (string, bool) {
	bus := ""
	for _, candidate := range l.Buses {
		if strings.Contains(sysPath, "/"+candidate) {
			bus = candidate
			break
		}
	}
	if bus != "" {
		return bus, true
	}
	return "", readSysAttr(filepath.Join(l.SysRoot, "block", diskName, "removable")) == "1"
}

func (l *Lister) labelFor(node string) string {
	return decodeUdevString(linkNameFor(filepath.Join(l.DevRoot, "disk", "by-label"), node, l.DevRoot))
}

func (l *Lister) uuidFor(node string) string {
	return linkNameFor(filepath.Join(l.DevRoot, "disk", "by-uuid"), node, l.DevRoot)
}

// linkNameFor returns the name of the symlink in dir that resolves to node.
func linkNameFor(dir, node, devRoot string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	want := filepath.Base(node)
	for _, entry := range entries {
		linkPath := filepath.Join(dir, entry.Name())
		target, err := os.Readlink(linkPath)
		if err != nil {
			continue
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(linkPath), target)
		}
		target = filepath.Clean(target)
		if target == node || target == filepath.Join(devRoot, want) {
			return entry.Name()
		}
	}
	return ""
}

func isMediaMount(mountPoint string) bool {
	for _, prefix := range []string{"/media/", "/run/media/", "/mnt/"} {
		if strings.HasPrefix(mountPoint, prefix) {
			return true
		}
	}
	return false
}

func readSysAttr(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
