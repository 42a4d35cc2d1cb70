package fsm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestEngine_ConcurrentExternalTriggers(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		mu      sync.Mutex
		entries int
	)
	l := newLamp(t, WithObserver(ObserverFunc(func(Transition) {
		mu.Lock()
		entries++
		mu.Unlock()
	})))
	l.redirect = true

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			target := lampOn
			if w%2 == 0 {
				target = lampCheck
			}
			for range perWorker {
				assert.NoError(t, l.eng.TriggerExternal(target, nil))
				_ = l.eng.CurrentState()
			}
		}()
	}
	wg.Wait()

	// Check chains to Off, so even workers produce two entries per trigger.
	want := (workers/2)*perWorker + (workers/2)*perWorker*2
	assert.Equal(t, want, entries)
	assert.Len(t, l.entered, want)
	assert.Contains(t, []State{lampOn, lampOff}, l.eng.CurrentState())
}
