package geocode

import (
	"testing"

	"github.com/fieldvisit/backend/internal/models"
)

func TestBuildStoreQuery(t *testing.T) {
	store := models.Store{Zone: "Lima Norte", Address: "Av. Tupac Amaru 123"}
	got := BuildStoreQuery("Peru", store)
	want := "Peru, Lima Norte, Av. Tupac Amaru 123"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildStoreQuerySkipsBlankParts(t *testing.T) {
	store := models.Store{Zone: "  ", Address: "Jr. Union 456"}
	got := BuildStoreQuery("Peru", store)
	if got != "Peru, Jr. Union 456" {
		t.Fatalf("blank zone must be skipped, got %q", got)
	}

	if got := BuildStoreQuery("", models.Store{}); got != "" {
		t.Fatalf("expected empty query, got %q", got)
	}
}

func TestShouldGeocode(t *testing.T) {
	lat, lng := -12.0464, -77.0428
	full := models.Store{Lat: &lat, Lng: &lng}
	if ShouldGeocode(full, false) {
		t.Fatalf("store with coordinates must not be geocoded")
	}
	if !ShouldGeocode(full, true) {
		t.Fatalf("force must geocode regardless of coordinates")
	}
	if !ShouldGeocode(models.Store{Lat: &lat}, false) {
		t.Fatalf("store missing lng must be geocoded")
	}
	if !ShouldGeocode(models.Store{}, false) {
		t.Fatalf("store missing both coordinates must be geocoded")
	}
}
