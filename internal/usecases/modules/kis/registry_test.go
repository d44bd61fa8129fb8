package kis

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrySubscribeFirstWatcher(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Subscribe("005930"))
	assert.False(t, r.Subscribe("005930"))
	assert.Equal(t, uint(2), r.WatcherCount("005930"))

	assert.True(t, r.Subscribe("000660"))
	assert.Equal(t, uint(1), r.WatcherCount("000660"))
}

func TestRegistryUnsubscribeClamped(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("005930")
	r.Subscribe("005930")

	assert.Equal(t, uint(1), r.Unsubscribe("005930"))
	assert.Equal(t, uint(0), r.Unsubscribe("005930"))
	assert.Equal(t, uint(0), r.Unsubscribe("005930"))
	assert.Equal(t, uint(0), r.WatcherCount("005930"))

	assert.Equal(t, uint(0), r.Unsubscribe("never-seen"))
}

func TestRegistryResubscribeAfterZero(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("005930")
	r.Unsubscribe("005930")

	assert.True(t, r.Subscribe("005930"))
}

func TestRegistryActiveCodes(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.ActiveCodes())

	r.Subscribe("005930")
	r.Subscribe("000660")
	r.Subscribe("000660")
	assert.ElementsMatch(t, []string{"005930", "000660"}, r.ActiveCodes())

	r.Unsubscribe("005930")
	assert.ElementsMatch(t, []string{"000660"}, r.ActiveCodes())
}

func TestRegistryConcurrentSubscribeSingleFirst(t *testing.T) {
	r := NewRegistry()
	const workers = 64

	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Subscribe("005930") {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, firsts)
	assert.Equal(t, uint(workers), r.WatcherCount("005930"))
}
