// Package estimator turns a walker's history into a recommended speed for the
// next route. Everything here is pure; callers pass the clock in.
package estimator

import (
	"math"
	"time"

	"walknav/backend/internal/model"
)

const (
	RecentWindow = 10
	MinSamples   = 3
)

var paceMultipliers = map[string]float64{
	model.PaceSlow:   0.8,
	model.PaceNormal: 1.0,
	model.PaceFast:   1.2,
}

// RecommendedSpeed returns meters per minute. Histories with fewer than
// MinSamples records in the recent window fall back to the base speed, as does
// a non-positive mean accuracy.
func RecommendedSpeed(profile model.UserProfile, now time.Time) float64 {
	base := profile.BaseWalkingSpeed
	recent := recentWindow(profile.WalkingHistory, RecentWindow)
	if len(recent) < MinSamples {
		return base
	}

	averageAccuracy := meanAccuracy(recent)
	if averageAccuracy <= 0 {
		return base
	}

	speed := base / averageAccuracy * TimeOfDayFactor(now.Hour())
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return base
	}
	return speed
}

// TimeOfDayFactor slows the estimate during commute hours.
func TimeOfDayFactor(hour int) float64 {
	switch {
	case hour >= 7 && hour <= 9:
		return 0.9
	case hour >= 17 && hour <= 19:
		return 0.85
	default:
		return 1.0
	}
}

func PaceMultiplier(pace string) float64 {
	if multiplier, ok := paceMultipliers[pace]; ok {
		return multiplier
	}
	return 1.0
}

// EstimatedMinutes is the route time the mapping layer would show, rounded
// half up.
func EstimatedMinutes(distanceMeters, speedMetersPerMinute float64) int {
	if distanceMeters <= 0 || speedMetersPerMinute <= 0 {
		return 0
	}
	return int(math.Floor(distanceMeters/speedMetersPerMinute + 0.5))
}

type Plan struct {
	Distance       float64 `json:"distance"`
	Pace           string  `json:"pace"`
	PaceMultiplier float64 `json:"paceMultiplier"`
	Speed          float64 `json:"speed"`
	EstimatedTime  int     `json:"estimatedTime"`
}

// PlanRoute combines the learned speed with the chosen pace. An empty pace
// uses the profile's preferred one.
func PlanRoute(profile model.UserProfile, pace string, distanceMeters float64, now time.Time) Plan {
	if pace == "" {
		pace = profile.PreferredPace
	}
	multiplier := PaceMultiplier(pace)
	speed := RecommendedSpeed(profile, now) * multiplier
	return Plan{
		Distance:       distanceMeters,
		Pace:           pace,
		PaceMultiplier: multiplier,
		Speed:          speed,
		EstimatedTime:  EstimatedMinutes(distanceMeters, speed),
	}
}

func recentWindow(history []model.WalkingRecord, size int) []model.WalkingRecord {
	if len(history) <= size {
		return history
	}
	return history[len(history)-size:]
}

func meanAccuracy(records []model.WalkingRecord) float64 {
	sum := 0.0
	for _, record := range records {
		sum += record.Accuracy
	}
	return sum / float64(len(records))
}
