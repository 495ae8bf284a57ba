package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"walknav/backend/internal/arrival"
	apperrors "walknav/backend/internal/errors"
	"walknav/backend/internal/estimator"
	"walknav/backend/internal/model"
	"walknav/backend/internal/profile"
	"walknav/backend/internal/routing"
	"walknav/backend/internal/stats"
	"walknav/backend/internal/storage"
)

const (
	defaultHistoryLimit = model.MaxWalkingHistory
	defaultMaxSessions  = 1024
	sessionIdleTTL      = 30 * time.Minute
	maxTimestampYear    = 9999
)

var validationCodes = map[string]string{
	"BaseWalkingSpeed": "invalid_speed",
	"PreferredPace":    "invalid_pace",
	"Pace":             "invalid_pace",
	"Name":             "invalid_location",
	"Address":          "invalid_location",
	"Lat":              "invalid_location",
	"Lng":              "invalid_location",
	"Category":         "invalid_location",
	"EstimatedTime":    "invalid_time",
	"Distance":         "invalid_distance",
	"AdjustMinutes":    "invalid_time",
}

// WalkService serves walking profiles per user. Each user's profile.Store is
// loaded on first use and every operation on it runs under that user's lock.
//
// Profiles are cached in process, so a storage backend must not be shared by
// more than one running instance. Idle sessions are evicted once more than
// maxSessions users are cached.
type WalkService struct {
	kv          storage.KV
	provider    routing.Provider
	location    *time.Location
	logger      *slog.Logger
	validate    *validator.Validate
	now         func() time.Time
	maxSessions int

	mu       sync.Mutex
	sessions map[string]*walkSession
}

type walkSession struct {
	mu       sync.Mutex
	store    *profile.Store
	recorder *arrival.Recorder

	// guarded by WalkService.mu
	refs     int
	lastUsed time.Time
}

type SpeedView struct {
	RecommendedSpeed float64 `json:"recommendedSpeed"`
	BaseWalkingSpeed float64 `json:"baseWalkingSpeed"`
	PreferredPace    string  `json:"preferredPace"`
	PaceMultiplier   float64 `json:"paceMultiplier"`
	TimeOfDayFactor  float64 `json:"timeOfDayFactor"`
	SampleSize       int     `json:"sampleSize"`
	Personalized     bool    `json:"personalized"`
}

type UpdateSettingsInput struct {
	BaseWalkingSpeed float64 `validate:"gte=30,lte=120"`
	PreferredPace    string  `validate:"oneof=slow normal fast"`
}

type EstimateInput struct {
	Origin      *model.LatLng
	Destination *model.LatLng
	Distance    *float64
	Pace        string `validate:"omitempty,oneof=slow normal fast"`
}

type ArrivalInput struct {
	EstimatedTime     int     `validate:"gte=0"`
	Distance          float64 `validate:"gte=0"`
	Route             model.Route
	StartTime         time.Time
	ActualArrivalTime time.Time
	AdjustMinutes     int `validate:"gte=-1440,lte=1440"`
}

type FavoriteInput struct {
	ID       string
	Name     string  `validate:"required,max=100"`
	Address  string  `validate:"max=300"`
	Lat      float64 `validate:"gte=-90,lte=90"`
	Lng      float64 `validate:"gte=-180,lte=180"`
	Category string  `validate:"oneof=home work gym favorite"`
}

func NewWalkService(kv storage.KV, provider routing.Provider, location *time.Location, logger *slog.Logger) *WalkService {
	if location == nil {
		location = time.Local
	}
	return &WalkService{
		kv:          kv,
		provider:    provider,
		location:    location,
		logger:      logger,
		validate:    validator.New(),
		now:         time.Now,
		maxSessions: defaultMaxSessions,
		sessions:    make(map[string]*walkSession),
	}
}

// SetClock replaces the wall clock used for arrivals and the commute factor.
func (s *WalkService) SetClock(now func() time.Time) {
	s.now = now
}

// InitProfile writes the default profile for a new user. Failures are
// logged only; Load falls back to the same default.
func (s *WalkService) InitProfile(ctx context.Context, userID string) {
	session, release, apiErr := s.acquire(ctx, userID)
	if apiErr != nil {
		s.logger.Error("initialize profile", "user_id", userID, "error", apiErr)
		return
	}
	defer release()

	if err := session.store.Save(ctx, model.DefaultProfile()); err != nil {
		s.logger.Error("initialize profile", "user_id", userID, "error", err)
	}
}

func (s *WalkService) GetProfile(ctx context.Context, userID string) (*model.UserProfile, *apperrors.APIError) {
	session, release, apiErr := s.acquire(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	defer release()

	current := session.store.Profile()
	return &current, nil
}

func (s *WalkService) UpdateSettings(ctx context.Context, userID string, input UpdateSettingsInput) (*model.UserProfile, *apperrors.APIError) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperrors.Validation(err, validationCodes)
	}

	session, release, apiErr := s.acquire(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	defer release()

	updated, err := session.store.UpdatePreferences(ctx, input.BaseWalkingSpeed, input.PreferredPace)
	if errors.Is(err, profile.ErrInvalidPreferences) {
		return nil, apperrors.BadRequest("invalid_settings", err.Error())
	}
	if err != nil {
		return nil, apperrors.Internal("failed to update settings")
	}
	return &updated, nil
}

func (s *WalkService) RecommendedSpeed(ctx context.Context, userID string) (*SpeedView, *apperrors.APIError) {
	current, apiErr := s.snapshot(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	now := s.now().In(s.location)
	sampleSize := len(current.WalkingHistory)
	if sampleSize > estimator.RecentWindow {
		sampleSize = estimator.RecentWindow
	}

	return &SpeedView{
		RecommendedSpeed: estimator.RecommendedSpeed(current, now),
		BaseWalkingSpeed: current.BaseWalkingSpeed,
		PreferredPace:    current.PreferredPace,
		PaceMultiplier:   estimator.PaceMultiplier(current.PreferredPace),
		TimeOfDayFactor:  estimator.TimeOfDayFactor(now.Hour()),
		SampleSize:       sampleSize,
		Personalized:     sampleSize >= estimator.MinSamples,
	}, nil
}

func (s *WalkService) Estimate(ctx context.Context, userID string, input EstimateInput) (*estimator.Plan, *apperrors.APIError) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperrors.Validation(err, validationCodes)
	}

	distance, apiErr := s.resolveDistance(ctx, input)
	if apiErr != nil {
		return nil, apiErr
	}

	current, apiErr := s.snapshot(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	plan := estimator.PlanRoute(current, input.Pace, distance, s.now().In(s.location))
	return &plan, nil
}

func (s *WalkService) RecordArrival(ctx context.Context, userID string, input ArrivalInput) (*model.WalkingRecord, *apperrors.APIError) {
	arrivalInput, apiErr := s.arrivalInput(input)
	if apiErr != nil {
		return nil, apiErr
	}

	session, release, apiErr := s.acquire(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	defer release()

	record := session.recorder.Record(ctx, arrivalInput)
	s.logger.Info("walk recorded",
		"user_id", userID,
		"record_id", record.ID,
		"estimated_minutes", record.EstimatedTime,
		"actual_minutes", record.ActualTime,
		"accuracy", record.Accuracy,
	)
	if record.ActualTime < 0 {
		s.logger.Warn("arrival precedes start", "user_id", userID, "record_id", record.ID)
	}
	return &record, nil
}

func (s *WalkService) PreviewArrival(input ArrivalInput) (*arrival.Summary, *apperrors.APIError) {
	arrivalInput, apiErr := s.arrivalInput(input)
	if apiErr != nil {
		return nil, apiErr
	}
	summary := arrival.Summarize(arrivalInput)
	return &summary, nil
}

// GetHistory returns up to limit records, newest first.
func (s *WalkService) GetHistory(ctx context.Context, userID string, limit int) ([]model.WalkingRecord, *apperrors.APIError) {
	if limit <= 0 || limit > model.MaxWalkingHistory {
		limit = defaultHistoryLimit
	}

	current, apiErr := s.snapshot(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	history := current.WalkingHistory

	records := make([]model.WalkingRecord, 0, limit)
	for i := len(history) - 1; i >= 0 && len(records) < limit; i-- {
		records = append(records, history[i])
	}
	return records, nil
}

func (s *WalkService) GetStats(ctx context.Context, userID string) (*model.Stats, *apperrors.APIError) {
	current, apiErr := s.snapshot(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	return stats.Compute(current.WalkingHistory), nil
}

func (s *WalkService) ListFavorites(ctx context.Context, userID, category string) ([]model.SavedLocation, *apperrors.APIError) {
	if category != "" && !model.IsValidCategory(category) {
		return nil, apperrors.BadRequest("invalid_category", "category must be one of home, work, gym, favorite")
	}

	current, apiErr := s.snapshot(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	favorites := current.FavoriteLocations

	filtered := make([]model.SavedLocation, 0, len(favorites))
	for _, location := range favorites {
		if category == "" || location.Category == category {
			filtered = append(filtered, location)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Name < filtered[j].Name
	})
	return filtered, nil
}

func (s *WalkService) AddFavorite(ctx context.Context, userID string, input FavoriteInput) (*model.SavedLocation, *apperrors.APIError) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperrors.Validation(err, validationCodes)
	}

	session, release, apiErr := s.acquire(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	defer release()

	saved := session.store.AddFavorite(ctx, model.SavedLocation{
		ID:          input.ID,
		Name:        input.Name,
		Address:     input.Address,
		Coordinates: model.LatLng{Lat: input.Lat, Lng: input.Lng},
		Category:    input.Category,
	})
	return &saved, nil
}

func (s *WalkService) RemoveFavorite(ctx context.Context, userID, id string) *apperrors.APIError {
	session, release, apiErr := s.acquire(ctx, userID)
	if apiErr != nil {
		return apiErr
	}
	defer release()

	if !session.store.RemoveFavorite(ctx, id) {
		return apperrors.NotFound("favorite_not_found", "favorite location not found")
	}
	return nil
}

// acquire returns userID's session locked for exclusive use, loading it on
// first use. The returned release must be called exactly once. A session whose
// profile could not be read is not cached, so the next request retries the
// read instead of writing a default over the stored history.
func (s *WalkService) acquire(ctx context.Context, userID string) (*walkSession, func(), *apperrors.APIError) {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	if !ok {
		store := profile.NewStore(s.kv, profile.Key(userID), s.logger.With("user_id", userID))
		if _, err := store.Load(context.WithoutCancel(ctx)); err != nil {
			s.mu.Unlock()
			return nil, nil, apperrors.Unavailable("storage_unavailable", "walking profile is temporarily unavailable")
		}
		s.evictIdle()
		session = &walkSession{
			store:    store,
			recorder: arrival.NewRecorder(store),
		}
		s.sessions[userID] = session
	}
	session.refs++
	session.lastUsed = s.now()
	s.mu.Unlock()

	session.mu.Lock()
	return session, func() { s.release(session) }, nil
}

func (s *WalkService) release(session *walkSession) {
	session.mu.Unlock()

	s.mu.Lock()
	session.refs--
	s.mu.Unlock()
}

func (s *WalkService) snapshot(ctx context.Context, userID string) (model.UserProfile, *apperrors.APIError) {
	session, release, apiErr := s.acquire(ctx, userID)
	if apiErr != nil {
		return model.UserProfile{}, apiErr
	}
	defer release()
	return session.store.Profile(), nil
}

// evictIdle makes room for one more session. Sessions in use are never
// evicted. Callers hold s.mu.
func (s *WalkService) evictIdle() {
	if len(s.sessions) < s.maxSessions {
		return
	}

	now := s.now()
	oldestID := ""
	var oldest time.Time
	for id, session := range s.sessions {
		if session.refs > 0 {
			continue
		}
		if now.Sub(session.lastUsed) > sessionIdleTTL {
			delete(s.sessions, id)
			continue
		}
		if oldestID == "" || session.lastUsed.Before(oldest) {
			oldestID, oldest = id, session.lastUsed
		}
	}
	if len(s.sessions) >= s.maxSessions && oldestID != "" {
		delete(s.sessions, oldestID)
	}
}

func (s *WalkService) resolveDistance(ctx context.Context, input EstimateInput) (float64, *apperrors.APIError) {
	if input.Distance != nil {
		if *input.Distance < 0 {
			return 0, apperrors.BadRequest("invalid_distance", "distance must not be negative")
		}
		return *input.Distance, nil
	}
	if input.Origin == nil || input.Destination == nil {
		return 0, apperrors.BadRequest("invalid_distance", "distance or origin and destination are required")
	}

	distance, err := s.provider.Distance(ctx, *input.Origin, *input.Destination)
	if err != nil {
		return 0, apperrors.BadRequest("invalid_location", err.Error())
	}
	return distance, nil
}

func (s *WalkService) arrivalInput(input ArrivalInput) (arrival.Input, *apperrors.APIError) {
	if err := s.validate.Struct(input); err != nil {
		return arrival.Input{}, apperrors.Validation(err, validationCodes)
	}
	if input.StartTime.IsZero() {
		return arrival.Input{}, apperrors.BadRequest("invalid_time", "startTime is required")
	}
	if !storableTime(input.StartTime) {
		return arrival.Input{}, apperrors.BadRequest("invalid_time", "startTime must be between years 0 and 9999")
	}

	arrivedAt := input.ActualArrivalTime
	if arrivedAt.IsZero() {
		arrivedAt = s.now()
	}
	if input.AdjustMinutes != 0 {
		arrivedAt = arrival.Adjust(arrivedAt, input.AdjustMinutes)
	}
	if !storableTime(arrivedAt) {
		return arrival.Input{}, apperrors.BadRequest("invalid_time", "arrival time must be between years 0 and 9999")
	}

	return arrival.Input{
		EstimatedTime:     input.EstimatedTime,
		Distance:          input.Distance,
		Route:             input.Route,
		StartTime:         input.StartTime,
		ActualArrivalTime: arrivedAt,
	}, nil
}

// storableTime reports whether t survives RFC 3339 encoding of the profile.
func storableTime(t time.Time) bool {
	year := t.UTC().Year()
	return year >= 0 && year <= maxTimestampYear
}
