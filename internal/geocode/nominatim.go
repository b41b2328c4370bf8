package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/fieldvisit/backend/internal/geo"
)

// NominatimGeocoder resolves free-text queries against the public Nominatim
// API. Results are cached per query and requests are throttled to the usage
// policy's one request per second. The zero value is ready to use.
type NominatimGeocoder struct {
	BaseURL     string
	UserAgent   string
	MinInterval time.Duration
	Client      *http.Client

	mu     sync.Mutex
	lastAt time.Time
	cache  map[string]fix
}

// fix is one resolved geocoding result.
type fix struct {
	Point       geo.Point
	DisplayName string
	Confidence  float64
}

type searchItem struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) (float64, float64, string, float64, error) {
	if cached, ok := g.lookup(query); ok {
		return cached.Point.Lat, cached.Point.Lng, cached.DisplayName, cached.Confidence, nil
	}
	g.throttle()

	result, err := g.search(ctx, query)
	if err != nil {
		return 0, 0, "", 0, err
	}

	g.mu.Lock()
	g.cache[query] = result
	g.mu.Unlock()
	return result.Point.Lat, result.Point.Lng, result.DisplayName, result.Confidence, nil
}

func (g *NominatimGeocoder) lookup(query string) (fix, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cache == nil {
		g.cache = map[string]fix{}
	}
	cached, ok := g.cache[query]
	return cached, ok
}

// throttle blocks until MinInterval has passed since the previous request.
func (g *NominatimGeocoder) throttle() {
	interval := g.MinInterval
	if interval <= 0 {
		interval = time.Second
	}
	g.mu.Lock()
	wait := time.Until(g.lastAt.Add(interval))
	if wait > 0 {
		g.mu.Unlock()
		time.Sleep(wait)
		g.mu.Lock()
	}
	g.lastAt = time.Now()
	g.mu.Unlock()
}

func (g *NominatimGeocoder) search(ctx context.Context, query string) (fix, error) {
	base := g.BaseURL
	if base == "" {
		base = "https://nominatim.openstreetmap.org"
	}
	agent := g.UserAgent
	if agent == "" {
		agent = "fieldvisit-backend"
	}
	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/search?"+params.Encode(), nil)
	if err != nil {
		return fix{}, err
	}
	req.Header.Set("User-Agent", agent)

	resp, err := client.Do(req)
	if err != nil {
		return fix{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fix{}, fmt.Errorf("nominatim http error: %s", resp.Status)
	}

	var items []searchItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return fix{}, err
	}
	return parseSearchItems(items)
}

func parseSearchItems(items []searchItem) (fix, error) {
	if len(items) == 0 {
		return fix{}, ErrNotFound
	}
	lat, err := strconv.ParseFloat(items[0].Lat, 64)
	if err != nil {
		return fix{}, fmt.Errorf("nominatim lat %q: %w", items[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(items[0].Lon, 64)
	if err != nil {
		return fix{}, fmt.Errorf("nominatim lon %q: %w", items[0].Lon, err)
	}
	p := geo.Point{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return fix{}, err
	}
	return fix{
		Point:       p,
		DisplayName: items[0].DisplayName,
		Confidence:  items[0].Importance,
	}, nil
}
