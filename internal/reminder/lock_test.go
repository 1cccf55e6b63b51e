package reminder

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedMutex_SameKeyBlocks(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("user-1")

	acquired := make(chan struct{})
	go func() {
		release := k.Lock("user-1")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock on the same key should block")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock should proceed after unlock")
	}
}

func TestKeyedMutex_DifferentKeysIndependent(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("user-1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		k.Lock("user-2")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Lock on a different key should not block")
	}
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "user-a"
			if i%2 == 0 {
				key = "user-b"
			}
			k.Lock(key)()
		}(i)
	}
	wg.Wait()

	if got := k.size(); got != 0 {
		t.Errorf("size() = %d, want 0", got)
	}
}
