package model

import "time"

const (
	PaceSlow   = "slow"
	PaceNormal = "normal"
	PaceFast   = "fast"

	CategoryHome     = "home"
	CategoryWork     = "work"
	CategoryGym      = "gym"
	CategoryFavorite = "favorite"
)

const (
	DefaultBaseWalkingSpeed = 80.0
	MinBaseWalkingSpeed     = 30.0
	MaxBaseWalkingSpeed     = 120.0

	MaxWalkingHistory = 50
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Route is informational only; nothing in the speed model reads it.
type Route struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	StartCoords LatLng `json:"startCoords"`
	EndCoords   LatLng `json:"endCoords"`
}

type WalkingRecord struct {
	ID            string    `json:"id"`
	EstimatedTime int       `json:"estimatedTime"`
	ActualTime    int       `json:"actualTime"`
	Distance      float64   `json:"distance"`
	Route         Route     `json:"route"`
	Timestamp     time.Time `json:"timestamp"`
	Accuracy      float64   `json:"accuracy"`
}

type SavedLocation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	Coordinates LatLng `json:"coordinates"`
	Category    string `json:"category"`
}

type UserProfile struct {
	BaseWalkingSpeed  float64         `json:"baseWalkingSpeed"`
	PreferredPace     string          `json:"preferredPace"`
	WalkingHistory    []WalkingRecord `json:"walkingHistory"`
	FavoriteLocations []SavedLocation `json:"favoriteLocations"`
}

func DefaultProfile() UserProfile {
	return UserProfile{
		BaseWalkingSpeed:  DefaultBaseWalkingSpeed,
		PreferredPace:     PaceNormal,
		WalkingHistory:    []WalkingRecord{},
		FavoriteLocations: []SavedLocation{},
	}
}

// Clone returns a copy that shares no slices with p.
func (p UserProfile) Clone() UserProfile {
	out := p
	out.WalkingHistory = make([]WalkingRecord, len(p.WalkingHistory))
	copy(out.WalkingHistory, p.WalkingHistory)
	out.FavoriteLocations = make([]SavedLocation, len(p.FavoriteLocations))
	copy(out.FavoriteLocations, p.FavoriteLocations)
	return out
}

func IsValidPace(pace string) bool {
	return pace == PaceSlow || pace == PaceNormal || pace == PaceFast
}

func IsValidCategory(category string) bool {
	switch category {
	case CategoryHome, CategoryWork, CategoryGym, CategoryFavorite:
		return true
	}
	return false
}

type Stats struct {
	TotalWalks      int     `json:"totalWalks"`
	AverageAccuracy float64 `json:"averageAccuracy"`
	RecentAccuracy  float64 `json:"recentAccuracy"`
	IsImproving     bool    `json:"isImproving"`
}
