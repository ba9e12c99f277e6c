package devices

import "sync"

// Tracker records how many removable drives are connected and which one was
// connected last.
type Tracker struct {
	mu      sync.RWMutex
	count   int
	current Device
	seen    bool
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Inserted counts a newly connected drive and makes it current.
func (t *Tracker) Inserted(dev Device) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	t.current = dev
	t.seen = true
}

// Removed uncounts a drive. The remembered current drive is kept, so after
// removing the newest of two drives its name is still used while the other
// remains connected.
func (t *Tracker) Removed(Device) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count > 0 {
		t.count--
	}
}

// Current returns the most recently connected drive while at least one drive
// is connected.
func (t *Tracker) Current() (Device, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.count == 0 || !t.seen {
		return Device{}, false
	}
	return t.current, true
}

// Count returns the number of connected drives.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}
