package routing

import (
	"context"
	"fmt"
	"math"

	"walknav/backend/internal/model"
)

const earthRadiusMeters = 6371000

// Provider yields the walking distance in meters between two points. The
// production distance comes from the client's mapping service; StraightLine
// covers requests that arrive without one.
type Provider interface {
	Distance(ctx context.Context, origin, destination model.LatLng) (float64, error)
}

type StraightLine struct{}

func (StraightLine) Distance(_ context.Context, origin, destination model.LatLng) (float64, error) {
	if err := ValidateLatLng(origin); err != nil {
		return 0, fmt.Errorf("origin: %w", err)
	}
	if err := ValidateLatLng(destination); err != nil {
		return 0, fmt.Errorf("destination: %w", err)
	}
	return HaversineMeters(origin, destination), nil
}

func HaversineMeters(a, b model.LatLng) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func ValidateLatLng(p model.LatLng) error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}
