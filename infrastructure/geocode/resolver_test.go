package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolveUsesCityFallbackChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":{"town":"Brandenburg an der Havel","country":"Germany"}}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, "pixvault-test")
	r.minInterval = 0

	place, err := r.Resolve(context.Background(), 52.41, 12.55)
	if err != nil {
		t.Fatal(err)
	}

	if !place.Resolved {
		t.Error("expected resolved place")
	}
	if place.City != "Brandenburg an der Havel" {
		t.Errorf("city = %q, fallback chain skipped town", place.City)
	}
	if place.Country != "Germany" {
		t.Errorf("country = %q", place.Country)
	}
}

func TestResolveCachesByRoundedCoordinates(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"address":{"city":"Berlin","country":"Germany"}}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, "pixvault-test")
	r.minInterval = 0
	ctx := context.Background()

	// These differ only past the third decimal place.
	if _, err := r.Resolve(ctx, 52.52031, 13.40454); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve(ctx, 52.52049, 13.40449); err != nil {
		t.Fatal(err)
	}

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}

	// A clearly different coordinate misses the cache.
	if _, err := r.Resolve(ctx, 48.1374, 11.5755); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("provider called %d times, want 2", n)
	}
}

func TestResolveCachesNegativeResults(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, "pixvault-test")
	r.minInterval = 0
	ctx := context.Background()

	place, err := r.Resolve(ctx, 0.001, 0.001)
	if err != nil {
		t.Fatal(err)
	}
	if place.Resolved {
		t.Error("ocean coordinate resolved unexpectedly")
	}

	if _, err := r.Resolve(ctx, 0.001, 0.001); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("negative result not cached, %d calls", n)
	}
}

func TestResolveSpacesConcurrentMisses(t *testing.T) {
	var mu sync.Mutex
	var arrivals []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		w.Write([]byte(`{"address":{"city":"Berlin","country":"Germany"}}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, "pixvault-test")
	r.minInterval = 100 * time.Millisecond

	coords := [][2]float64{{52.5, 13.4}, {48.1, 11.5}, {50.9, 6.9}}
	var wg sync.WaitGroup
	for _, c := range coords {
		wg.Add(1)
		go func(lat, lon float64) {
			defer wg.Done()
			if _, err := r.Resolve(context.Background(), lat, lon); err != nil {
				t.Error(err)
			}
		}(c[0], c[1])
	}
	wg.Wait()

	if len(arrivals) != 3 {
		t.Fatalf("provider called %d times, want 3", len(arrivals))
	}
	sort.Slice(arrivals, func(i, j int) bool { return arrivals[i].Before(arrivals[j]) })
	for i := 1; i < len(arrivals); i++ {
		// Allow a small margin for handler scheduling ahead of the
		// slot timestamp.
		if gap := arrivals[i].Sub(arrivals[i-1]); gap < 80*time.Millisecond {
			t.Errorf("requests %d and %d only %v apart, want >= interval", i-1, i, gap)
		}
	}
}

func TestResolveServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, "pixvault-test")
	r.minInterval = 0

	if _, err := r.Resolve(context.Background(), 52.5, 13.4); err == nil {
		t.Fatal("expected error for 503")
	}

	// Errors are not cached; the next call reaches the server again.
	if _, err := r.Resolve(context.Background(), 52.5, 13.4); err == nil {
		t.Fatal("expected error on retry")
	}
}

func TestCacheKeyRounding(t *testing.T) {
	if cacheKey(52.52031, 13.40454) != cacheKey(52.52049, 13.40449) {
		t.Error("nearby coordinates map to different keys")
	}
	if cacheKey(52.520, 13.404) == cacheKey(52.521, 13.404) {
		t.Error("distinct coordinates collided")
	}
}
