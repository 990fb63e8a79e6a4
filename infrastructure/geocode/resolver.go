// Package geocode resolves GPS coordinates to place names through the
// Nominatim reverse API. Lookups are cached process-wide on rounded
// coordinates and throttled to one request per second, which is what
// the public endpoint permits.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"pixvault/pkg/logger"
)

const defaultEndpoint = "https://nominatim.openstreetmap.org/reverse"

// Place is a resolved location. Empty fields mean the provider had no
// answer; Resolved distinguishes a negative answer from a miss.
type Place struct {
	City     string
	Country  string
	Resolved bool
}

// Resolver is safe for concurrent use.
type Resolver struct {
	endpoint  string
	userAgent string
	client    *http.Client

	mu    sync.Mutex
	cache map[string]Place
	last  time.Time
	// minInterval spaces outbound requests; cache hits skip it.
	minInterval time.Duration
}

func NewResolver(endpoint, userAgent string) *Resolver {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Resolver{
		endpoint:    endpoint,
		userAgent:   userAgent,
		client:      &http.Client{Timeout: 10 * time.Second},
		cache:       make(map[string]Place),
		minInterval: time.Second,
	}
}

// cacheKey rounds to three decimal places, roughly 110 m, so nearby
// shots share an entry.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.3f,%.3f", math.Round(lat*1000)/1000, math.Round(lon*1000)/1000)
}

// Resolve returns the place for a coordinate pair. Negative results
// are cached too so a remote miss is not retried per asset.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) (Place, error) {
	key := cacheKey(lat, lon)

	r.mu.Lock()
	// Re-derive the wait every pass: another caller may have claimed a
	// slot while this one slept, which pushes last forward again. The
	// loop exits only once this caller owns a fresh interval.
	for {
		if place, ok := r.cache[key]; ok {
			r.mu.Unlock()
			return place, nil
		}
		wait := r.minInterval - time.Since(r.last)
		if wait <= 0 {
			break
		}
		r.mu.Unlock()
		select {
		case <-ctx.Done():
			return Place{}, ctx.Err()
		case <-time.After(wait):
		}
		r.mu.Lock()
	}
	r.last = time.Now()
	r.mu.Unlock()

	place, err := r.lookup(ctx, lat, lon)
	if err != nil {
		return Place{}, err
	}

	r.mu.Lock()
	r.cache[key] = place
	r.mu.Unlock()

	logger.Geocode("resolve", "Resolved coordinates", map[string]interface{}{
		"key":     key,
		"city":    place.City,
		"country": place.Country,
	})

	return place, nil
}

type nominatimResponse struct {
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		Suburb       string `json:"suburb"`
		Country      string `json:"country"`
	} `json:"address"`
	Error string `json:"error"`
}

func (r *Resolver) lookup(ctx context.Context, lat, lon float64) (Place, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("format", "jsonv2")
	q.Set("zoom", "14")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Place{}, fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return Place{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("geocode request: status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Place{}, fmt.Errorf("decode geocode response: %w", err)
	}

	// "Unable to geocode" comes back as 200 with an error field. Cache
	// it as a negative answer rather than failing the stage.
	if body.Error != "" {
		return Place{Resolved: false}, nil
	}

	place := Place{
		City:     firstNonEmpty(body.Address.City, body.Address.Town, body.Address.Village, body.Address.Municipality, body.Address.Suburb),
		Country:  body.Address.Country,
		Resolved: true,
	}
	return place, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
