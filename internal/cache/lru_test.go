package cache

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	// "b" is now least recently used and should be evicted.
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCacheTTLExpiry(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)
	c.Set("k", "v")

	if _, ok := c.Get("k"); !ok {
		t.Fatal("value should be present before TTL")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("value should have expired")
	}
}

func TestLRUCacheClear(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", c.Size())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("cleared entry should be gone")
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)

	time.Sleep(20 * time.Millisecond)
	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() after cleanup = %d, want 0", c.Size())
	}
}

func TestLoaderCachesResult(t *testing.T) {
	loader := NewLoader(NewLRUCache[int](10, time.Minute))

	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := loader.GetOrLoad("key", load)
		if err != nil {
			t.Fatalf("GetOrLoad: %v", err)
		}
		if v != 42 {
			t.Fatalf("GetOrLoad = %d, want 42", v)
		}
	}
	if calls != 1 {
		t.Errorf("load ran %d times, want 1", calls)
	}
}

func TestLoaderDoesNotCacheErrors(t *testing.T) {
	loader := NewLoader(NewLRUCache[int](10, time.Minute))

	calls := 0
	failing := func() (int, error) {
		calls++
		return 0, errors.New("upstream down")
	}

	if _, err := loader.GetOrLoad("key", failing); err == nil {
		t.Fatal("expected error")
	}
	if _, err := loader.GetOrLoad("key", failing); err == nil {
		t.Fatal("expected error on retry")
	}
	if calls != 2 {
		t.Errorf("load ran %d times, want 2 (errors must not be cached)", calls)
	}
}

func TestLoaderCollapsesConcurrentMisses(t *testing.T) {
	loader := NewLoader(NewLRUCache[int](10, time.Minute))

	var mu sync.Mutex
	calls := 0
	gate := make(chan struct{})
	slow := func() (int, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-gate
		return 7, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := loader.GetOrLoad("key", slow); err != nil || v != 7 {
				t.Errorf("GetOrLoad = %d, %v; want 7, nil", v, err)
			}
		}()
	}

	// Give every goroutine time to reach the flight, then release it.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("load ran %d times, want 1", calls)
	}
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	c := NewLRUCache[int](10, 5*time.Millisecond)
	c.Set("a", 1)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(10 * time.Millisecond)
	defer m.Stop()

	time.Sleep(40 * time.Millisecond)
	if c.Size() != 0 {
		t.Errorf("expired entry should have been cleaned, size = %d", c.Size())
	}
}
