package provision

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("8943108888000000001")
			counter++
			km.Unlock("8943108888000000001")
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Fatalf("expected all lock entries released, got %d", len(km.locks))
	}
}

func TestKeyedMutexDistinctKeysDoNotContend(t *testing.T) {
	km := newKeyedMutex()

	km.Lock("8943108888000000001")
	done := make(chan struct{})
	go func() {
		km.Lock("8943108888000000002")
		km.Unlock("8943108888000000002")
		close(done)
	}()
	<-done
	km.Unlock("8943108888000000001")
}
