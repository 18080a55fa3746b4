package scheduling

import (
	"fmt"
	"sync"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

// dayLocks serializes check-then-book sequences per (professional, site, date)
// so two concurrent bookings for the same day cannot both pass the conflict
// check. The partial unique index on the appointments table remains the
// storage-level backstop.
type dayLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDayLocks() *dayLocks {
	return &dayLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

func dayKey(professionalID string, siteID types.ClinicSite, date string) string {
	return fmt.Sprintf("%s|%s|%s", professionalID, siteID, date)
}

// Lock acquires the mutex for the tuple and returns its unlock function.
func (d *dayLocks) Lock(professionalID string, siteID types.ClinicSite, date string) func() {
	key := dayKey(professionalID, siteID, date)

	d.mu.Lock()
	lock, exists := d.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		d.locks[key] = lock
	}
	d.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
