// Package profile owns a single user's walking profile and keeps it in step
// with a key-value store.
//
// A Store is not safe for concurrent mutation; callers serialize Append,
// AddFavorite, RemoveFavorite and UpdatePreferences per user.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"walknav/backend/internal/model"
	"walknav/backend/internal/storage"
)

const KeyPrefix = "navAppUserData"

var ErrInvalidPreferences = errors.New("invalid preferences")

// Key is the storage key holding userID's profile.
func Key(userID string) string {
	return KeyPrefix + ":" + userID
}

type Store struct {
	kv      storage.KV
	key     string
	logger  *slog.Logger
	newID   func() string
	profile model.UserProfile
}

func NewStore(kv storage.KV, key string, logger *slog.Logger) *Store {
	return &Store{
		kv:      kv,
		key:     key,
		logger:  logger.With("profile_key", key),
		newID:   uuid.NewString,
		profile: model.DefaultProfile(),
	}
}

// Load replaces the in-memory profile with the stored one. Missing or
// malformed data yields the default profile and a nil error. A failed read
// also leaves the default in place but returns the error, so callers can
// refuse to write that default over data they could not see.
func (s *Store) Load(ctx context.Context) (model.UserProfile, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	switch {
	case err != nil:
		s.logger.Warn("profile read failed", "error", err)
		s.profile = model.DefaultProfile()
		return s.profile.Clone(), fmt.Errorf("load profile: %w", err)
	case !ok:
		s.profile = model.DefaultProfile()
	default:
		parsed, parseErr := Decode(raw)
		if parseErr != nil {
			s.logger.Warn("stored profile is malformed, using default", "error", parseErr)
			s.profile = model.DefaultProfile()
		} else {
			s.profile = parsed
		}
	}
	return s.profile.Clone(), nil
}

func (s *Store) Profile() model.UserProfile {
	return s.profile.Clone()
}

// Save makes profile current and writes it in full. The in-memory copy is
// updated even when the write fails.
func (s *Store) Save(ctx context.Context, profile model.UserProfile) error {
	s.profile = profile.Clone()

	raw, err := Encode(s.profile)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// Append stores record under a fresh id and evicts the oldest entries beyond
// model.MaxWalkingHistory.
func (s *Store) Append(ctx context.Context, record model.WalkingRecord) model.WalkingRecord {
	record.ID = s.newID()

	next := s.profile.Clone()
	next.WalkingHistory = append(next.WalkingHistory, record)
	next.WalkingHistory = trimHistory(next.WalkingHistory)

	s.commit(ctx, next)
	return record
}

// AddFavorite inserts location, or replaces the entry with the same id.
func (s *Store) AddFavorite(ctx context.Context, location model.SavedLocation) model.SavedLocation {
	if location.ID == "" {
		location.ID = s.newID()
	}

	next := s.profile.Clone()
	replaced := false
	for i := range next.FavoriteLocations {
		if next.FavoriteLocations[i].ID == location.ID {
			next.FavoriteLocations[i] = location
			replaced = true
			break
		}
	}
	if !replaced {
		next.FavoriteLocations = append(next.FavoriteLocations, location)
	}

	s.commit(ctx, next)
	return location
}

// RemoveFavorite reports whether a location with id existed.
func (s *Store) RemoveFavorite(ctx context.Context, id string) bool {
	next := s.profile.Clone()
	kept := next.FavoriteLocations[:0]
	removed := false
	for _, location := range next.FavoriteLocations {
		if location.ID == id {
			removed = true
			continue
		}
		kept = append(kept, location)
	}
	next.FavoriteLocations = kept

	s.commit(ctx, next)
	return removed
}

func (s *Store) UpdatePreferences(ctx context.Context, baseWalkingSpeed float64, pace string) (model.UserProfile, error) {
	if baseWalkingSpeed < model.MinBaseWalkingSpeed || baseWalkingSpeed > model.MaxBaseWalkingSpeed {
		return s.Profile(), fmt.Errorf("%w: base walking speed %.1f outside [%.0f, %.0f]",
			ErrInvalidPreferences, baseWalkingSpeed, model.MinBaseWalkingSpeed, model.MaxBaseWalkingSpeed)
	}
	if !model.IsValidPace(pace) {
		return s.Profile(), fmt.Errorf("%w: unknown pace %q", ErrInvalidPreferences, pace)
	}

	next := s.profile.Clone()
	next.BaseWalkingSpeed = baseWalkingSpeed
	next.PreferredPace = pace

	s.commit(ctx, next)
	return s.Profile(), nil
}

func (s *Store) commit(ctx context.Context, next model.UserProfile) {
	if err := s.Save(ctx, next); err != nil {
		s.logger.Error("profile write failed, keeping in-memory copy", "error", err)
	}
}

func trimHistory(history []model.WalkingRecord) []model.WalkingRecord {
	if len(history) <= model.MaxWalkingHistory {
		return history
	}
	return history[len(history)-model.MaxWalkingHistory:]
}
