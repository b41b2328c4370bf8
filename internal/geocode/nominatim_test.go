package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fieldvisit/backend/internal/geo"
)

func TestParseSearchItems(t *testing.T) {
	items := []searchItem{
		{
			Lat:         "-12.0464",
			Lon:         "-77.0428",
			DisplayName: "Lima, Peru",
			Importance:  0.68,
		},
	}
	res, err := parseSearchItems(items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Point.Lat != -12.0464 || res.Point.Lng != -77.0428 {
		t.Fatalf("unexpected coordinates: %+v", res)
	}
	if res.DisplayName != "Lima, Peru" {
		t.Fatalf("unexpected display name: %s", res.DisplayName)
	}
	if res.Confidence != 0.68 {
		t.Fatalf("unexpected confidence: %f", res.Confidence)
	}
}

func TestParseSearchItemsEmpty(t *testing.T) {
	if _, err := parseSearchItems(nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseSearchItemsOutOfRange(t *testing.T) {
	items := []searchItem{{Lat: "95.0", Lon: "-77.0", DisplayName: "bogus"}}
	if _, err := parseSearchItems(items); !errors.Is(err, geo.ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
}

func TestGeocodeCachesPerQuery(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[{"lat":"-12.0464","lon":"-77.0428","display_name":"Lima, Peru","importance":0.68}]`))
	}))
	defer srv.Close()

	g := &NominatimGeocoder{BaseURL: srv.URL, MinInterval: time.Millisecond}
	for i := 0; i < 3; i++ {
		lat, lng, name, _, err := g.Geocode(context.Background(), "Peru, Lima")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lat != -12.0464 || lng != -77.0428 || name != "Lima, Peru" {
			t.Fatalf("unexpected result: %f %f %s", lat, lng, name)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 upstream call for repeated query, got %d", calls)
	}
}

func TestGeocodeNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := &NominatimGeocoder{BaseURL: srv.URL, MinInterval: time.Millisecond}
	if _, _, _, _, err := g.Geocode(context.Background(), "nowhere"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
