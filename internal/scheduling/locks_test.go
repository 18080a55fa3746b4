package scheduling

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

func TestDayLocks_SerializesSameTuple(t *testing.T) {
	locks := newDayLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("prof-1", types.SiteCentro, "2026-09-01")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestDayLocks_DifferentTuplesDoNotBlock(t *testing.T) {
	locks := newDayLocks()

	unlockA := locks.Lock("prof-1", types.SiteCentro, "2026-09-01")
	defer unlockA()

	// Same professional, different day and site must be acquirable while A is held.
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("prof-1", types.SiteCentro, "2026-09-02")
		unlockB()
		unlockC := locks.Lock("prof-1", types.SiteNorte, "2026-09-01")
		unlockC()
		close(done)
	}()

	<-done
}
