package profile

import (
	"encoding/json"
	"fmt"

	"walknav/backend/internal/model"
)

func Encode(profile model.UserProfile) (string, error) {
	raw, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("encode profile: %w", err)
	}
	return string(raw), nil
}

// Decode parses a stored profile and fills in anything an older or partial
// payload left out.
func Decode(raw string) (model.UserProfile, error) {
	var profile model.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return model.UserProfile{}, fmt.Errorf("decode profile: %w", err)
	}

	if profile.BaseWalkingSpeed <= 0 {
		profile.BaseWalkingSpeed = model.DefaultBaseWalkingSpeed
	}
	if !model.IsValidPace(profile.PreferredPace) {
		profile.PreferredPace = model.PaceNormal
	}
	if profile.WalkingHistory == nil {
		profile.WalkingHistory = []model.WalkingRecord{}
	}
	if profile.FavoriteLocations == nil {
		profile.FavoriteLocations = []model.SavedLocation{}
	}
	profile.WalkingHistory = trimHistory(profile.WalkingHistory)

	return profile, nil
}
