package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/fieldvisit/backend/internal/models"
)

var ErrNotFound = errors.New("geocode not found")

type Geocoder interface {
	Geocode(ctx context.Context, query string) (lat float64, lng float64, displayName string, confidence float64, err error)
}

// BuildStoreQuery assembles a free-text geocoding query from the country
// default plus the store's zone and street address.
func BuildStoreQuery(country string, store models.Store) string {
	country = strings.TrimSpace(country)
	zone := strings.TrimSpace(store.Zone)
	address := strings.TrimSpace(store.Address)
	parts := []string{}
	if country != "" {
		parts = append(parts, country)
	}
	if zone != "" {
		parts = append(parts, zone)
	}
	if address != "" {
		parts = append(parts, address)
	}
	return strings.Join(parts, ", ")
}

// ShouldGeocode reports whether a store needs coordinate backfill.
func ShouldGeocode(store models.Store, force bool) bool {
	if force {
		return true
	}
	return store.Lat == nil || store.Lng == nil
}
