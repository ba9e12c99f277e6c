package devices

import "testing"

func TestTrackerInsertRemove(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.Current(); ok {
		t.Fatal("empty tracker should have no current device")
	}

	first := Device{Node: "/dev/sdb1", Label: "FIRST"}
	second := Device{Node: "/dev/sdc1", Label: "SECOND"}

	tr.Inserted(first)
	tr.Inserted(second)
	if got := tr.Count(); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}
	if dev, ok := tr.Current(); !ok || dev.Label != "SECOND" {
		t.Fatalf("current = %+v, %v", dev, ok)
	}

	tr.Removed(second)
	dev, ok := tr.Current()
	if !ok {
		t.Fatal("expected a current device while one remains connected")
	}
	if dev.Label != "SECOND" {
		t.Fatalf("remove should not change remembered device, got %q", dev.Label)
	}

	tr.Removed(first)
	if _, ok := tr.Current(); ok {
		t.Fatal("no device should be current after all are removed")
	}
}

func TestTrackerCountNeverNegative(t *testing.T) {
	tr := NewTracker()
	tr.Removed(Device{})
	tr.Removed(Device{})
	if got := tr.Count(); got != 0 {
		t.Fatalf("count = %d, want 0", got)
	}
	tr.Inserted(Device{Label: "A"})
	if got := tr.Count(); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}
