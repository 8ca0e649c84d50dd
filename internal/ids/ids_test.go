package ids

import (
	"sync"
	"testing"
)

func TestNewIsUniqueAndOrdered(t *testing.T) {
	const n = 1000
	seen := make(map[string]bool, n)
	prev := ""
	for i := 0; i < n; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("unexpected ulid length: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
		if prev != "" && id <= prev {
			t.Fatalf("ids not monotonically increasing: %q after %q", id, prev)
		}
		prev = id
	}
}

func TestNewConcurrent(t *testing.T) {
	const workers, per = 8, 200
	var (
		mu  sync.Mutex
		all = make(map[string]bool, workers*per)
		wg  sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]string, 0, per)
			for i := 0; i < per; i++ {
				ids = append(ids, New())
			}
			mu.Lock()
			for _, id := range ids {
				all[id] = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(all) != workers*per {
		t.Fatalf("collisions under concurrency: %d unique of %d", len(all), workers*per)
	}
}
