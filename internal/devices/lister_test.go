package devices

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
)

func writeSysFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func symlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
}

func TestListerFiltersRemovable(t *testing.T) {
	root := t.TempDir()
	sys := filepath.Join(root, "sys")
	dev := filepath.Join(root, "dev")

	// USB stick with a labelled partition.
	usbPart := filepath.Join(sys, "devices", "pci0000:00", "usb1", "1-2", "block", "sdb", "sdb1")
	writeSysFile(t, filepath.Join(usbPart, "partition"), "1")
	symlink(t, usbPart, filepath.Join(sys, "class", "block", "sdb1"))
	writeSysFile(t, filepath.Join(sys, "block", "sdb", "device", "model"), "Cruzer Blade")
	writeSysFile(t, filepath.Join(sys, "block", "sdb", "device", "vendor"), "SanDisk")
	writeSysFile(t, filepath.Join(sys, "block", "sdb", "removable"), "0")
	symlink(t, "../../sdb1", filepath.Join(dev, "disk", "by-label", `MY\x20USB`))
	symlink(t, "../../sdb1", filepath.Join(dev, "disk", "by-uuid", "1A2B-3C4D"))

	// Internal SATA disk.
	sataPart := filepath.Join(sys, "devices", "pci0000:00", "ata1", "block", "sda", "sda2")
	writeSysFile(t, filepath.Join(sataPart, "partition"), "2")
	symlink(t, sataPart, filepath.Join(sys, "class", "block", "sda2"))
	writeSysFile(t, filepath.Join(sys, "block", "sda", "removable"), "0")

	// SD card reader flagged removable, mounted under /media.
	mmcPart := filepath.Join(sys, "devices", "platform", "mmc0", "block", "mmcblk0", "mmcblk0p1")
	writeSysFile(t, filepath.Join(mmcPart, "partition"), "1")
	symlink(t, mmcPart, filepath.Join(sys, "class", "block", "mmcblk0p1"))
	writeSysFile(t, filepath.Join(sys, "block", "mmcblk0", "removable"), "1")

	l := &Lister{
		SysRoot: sys,
		DevRoot: dev,
		Buses:   []string{"usb"},
		partitions: func(context.Context) ([]disk.PartitionStat, error) {
			return []disk.PartitionStat{
				{Device: "/dev/sda2", Mountpoint: "/"},
				{Device: "/dev/sdb1", Mountpoint: "/media/me/MY USB"},
				{Device: "/dev/sdb1", Mountpoint: "/mnt/again"},
				{Device: "/dev/mmcblk0p1", Mountpoint: "/media/me/CAMERA"},
				{Device: "tmpfs", Mountpoint: "/tmp"},
			}, nil
		},
	}

	devices, err := l.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2: %+v", len(devices), devices)
	}

	mmc, usb := devices[0], devices[1]
	if mmc.Node != "/dev/mmcblk0p1" || mmc.Disk != "mmcblk0" || mmc.Bus != "" {
		t.Fatalf("unexpected mmc device: %+v", mmc)
	}
	if mmc.DisplayName() != "CAMERA" {
		t.Fatalf("mmc display name = %q", mmc.DisplayName())
	}
	if usb.Disk != "sdb" || usb.Bus != "usb" {
		t.Fatalf("unexpected usb device: %+v", usb)
	}
	if usb.Label != "MY USB" || usb.UUID != "1A2B-3C4D" || usb.Model != "Cruzer Blade" {
		t.Fatalf("unexpected usb attributes: %+v", usb)
	}
}
