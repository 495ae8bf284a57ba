package router_test

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"walknav/backend/internal/db"
	"walknav/backend/internal/handler"
	"walknav/backend/internal/logging"
	"walknav/backend/internal/repository"
	"walknav/backend/internal/router"
	"walknav/backend/internal/routing"
	"walknav/backend/internal/service"
	"walknav/backend/internal/storage"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type profileEnvelope struct {
	Profile struct {
		BaseWalkingSpeed float64 `json:"baseWalkingSpeed"`
		PreferredPace    string  `json:"preferredPace"`
		WalkingHistory   []struct {
			ID       string  `json:"id"`
			Accuracy float64 `json:"accuracy"`
		} `json:"walkingHistory"`
		FavoriteLocations []struct {
			ID string `json:"id"`
		} `json:"favoriteLocations"`
	} `json:"profile"`
}

type recordEnvelope struct {
	Record struct {
		ID            string    `json:"id"`
		EstimatedTime int       `json:"estimatedTime"`
		ActualTime    int       `json:"actualTime"`
		Accuracy      float64   `json:"accuracy"`
		Timestamp     time.Time `json:"timestamp"`
	} `json:"record"`
}

type speedResponse struct {
	RecommendedSpeed float64 `json:"recommendedSpeed"`
	SampleSize       int     `json:"sampleSize"`
	Personalized     bool    `json:"personalized"`
}

type estimateResponse struct {
	Distance      float64 `json:"distance"`
	Speed         float64 `json:"speed"`
	EstimatedTime int     `json:"estimatedTime"`
}

type historyEnvelope struct {
	Records []struct {
		ID string `json:"id"`
	} `json:"records"`
}

type statsEnvelope struct {
	Stats *struct {
		TotalWalks      int     `json:"totalWalks"`
		AverageAccuracy float64 `json:"averageAccuracy"`
	} `json:"stats"`
}

type favoriteEnvelope struct {
	Favorite struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
	} `json:"favorite"`
}

type favoritesEnvelope struct {
	Favorites []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"favorites"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestWalkLearningFlow(t *testing.T) {
	engine := setupTestEngine(t)

	walker := registerUser(t, engine, "walker@example.com", "123456")
	other := registerUser(t, engine, "other@example.com", "123456")

	initial := getProfile(t, engine, walker.Token)
	if initial.Profile.BaseWalkingSpeed != 80 || initial.Profile.PreferredPace != "normal" {
		t.Fatalf("unexpected default profile: %+v", initial.Profile)
	}
	if len(initial.Profile.WalkingHistory) != 0 {
		t.Fatalf("expected empty history, got %d records", len(initial.Profile.WalkingHistory))
	}

	// Three walks that each ran 20% over the estimate.
	for i := 0; i < 3; i++ {
		status, raw := requestJSON(t, engine, http.MethodPost, "/api/walk/arrivals", walker.Token, map[string]any{
			"estimatedTime":     10,
			"distance":          800,
			"route":             map[string]string{"start": "Home", "end": "Office"},
			"startTime":         "2025-03-10T11:00:00Z",
			"actualArrivalTime": "2025-03-10T11:12:00Z",
		})
		if status != http.StatusCreated {
			t.Fatalf("record arrival %d failed with status %d: %s", i, status, string(raw))
		}
		var created recordEnvelope
		if err := json.Unmarshal(raw, &created); err != nil {
			t.Fatalf("unmarshal record: %v", err)
		}
		if created.Record.ID == "" || created.Record.ActualTime != 12 || created.Record.Accuracy != 1.2 {
			t.Fatalf("unexpected record: %+v", created.Record)
		}
		arrivedAt := time.Date(2025, 3, 10, 11, 12, 0, 0, time.UTC)
		if !created.Record.Timestamp.Equal(arrivedAt) {
			t.Fatalf("expected timestamp %s, got %s", arrivedAt, created.Record.Timestamp)
		}
	}

	status, raw := requestJSON(t, engine, http.MethodGet, "/api/walk/speed", walker.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("get speed failed with status %d: %s", status, string(raw))
	}
	var speed speedResponse
	if err := json.Unmarshal(raw, &speed); err != nil {
		t.Fatalf("unmarshal speed: %v", err)
	}
	if math.Abs(speed.RecommendedSpeed-80/1.2) > 1e-9 {
		t.Fatalf("expected learned speed %.4f, got %.4f", 80/1.2, speed.RecommendedSpeed)
	}
	if !speed.Personalized || speed.SampleSize != 3 {
		t.Fatalf("expected personalized speed from 3 samples, got %+v", speed)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/walk/estimate", walker.Token, map[string]any{
		"distance": 1000,
	})
	if status != http.StatusOK {
		t.Fatalf("estimate failed with status %d: %s", status, string(raw))
	}
	var estimate estimateResponse
	if err := json.Unmarshal(raw, &estimate); err != nil {
		t.Fatalf("unmarshal estimate: %v", err)
	}
	if estimate.EstimatedTime != 15 {
		t.Fatalf("expected 15 minutes, got %d", estimate.EstimatedTime)
	}

	status, raw = requestJSON(t, engine, http.MethodGet, "/api/walk/history?limit=2", walker.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("history failed with status %d: %s", status, string(raw))
	}
	var history historyEnvelope
	if err := json.Unmarshal(raw, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(history.Records))
	}

	walkerStats := getStats(t, engine, walker.Token)
	if walkerStats.Stats == nil || walkerStats.Stats.TotalWalks != 3 {
		t.Fatalf("expected stats over 3 walks, got %+v", walkerStats.Stats)
	}

	// User isolation: the second account has no walks yet.
	otherStats := getStats(t, engine, other.Token)
	if otherStats.Stats != nil {
		t.Fatalf("expected null stats for new user, got %+v", otherStats.Stats)
	}
}

func TestArrivalPreviewDoesNotPersist(t *testing.T) {
	engine := setupTestEngine(t)
	walker := registerUser(t, engine, "preview@example.com", "123456")

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/walk/arrivals/preview", walker.Token, map[string]any{
		"estimatedTime":     15,
		"distance":          1200,
		"startTime":         "2025-03-10T11:00:00Z",
		"actualArrivalTime": "2025-03-10T11:18:00Z",
	})
	if status != http.StatusOK {
		t.Fatalf("preview failed with status %d: %s", status, string(raw))
	}

	var preview struct {
		Summary struct {
			ActualTime int    `json:"actualTime"`
			Verdict    string `json:"verdict"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(raw, &preview); err != nil {
		t.Fatalf("unmarshal preview: %v", err)
	}
	if preview.Summary.ActualTime != 18 || preview.Summary.Verdict != "late" {
		t.Fatalf("unexpected summary: %+v", preview.Summary)
	}

	profile := getProfile(t, engine, walker.Token)
	if len(profile.Profile.WalkingHistory) != 0 {
		t.Fatalf("preview must not store a record, got %d", len(profile.Profile.WalkingHistory))
	}
}

func TestSettingsValidation(t *testing.T) {
	engine := setupTestEngine(t)
	walker := registerUser(t, engine, "settings@example.com", "123456")

	status, raw := requestJSON(t, engine, http.MethodPut, "/api/walk/settings", walker.Token, map[string]any{
		"baseWalkingSpeed": 200,
		"preferredPace":    "normal",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range speed, got %d", status)
	}
	assertErrorCode(t, raw, "invalid_speed")

	status, raw = requestJSON(t, engine, http.MethodPut, "/api/walk/settings", walker.Token, map[string]any{
		"baseWalkingSpeed": 95,
		"preferredPace":    "fast",
	})
	if status != http.StatusOK {
		t.Fatalf("update settings failed with status %d: %s", status, string(raw))
	}

	profile := getProfile(t, engine, walker.Token)
	if profile.Profile.BaseWalkingSpeed != 95 || profile.Profile.PreferredPace != "fast" {
		t.Fatalf("settings not applied: %+v", profile.Profile)
	}
}

func TestFavoriteLifecycle(t *testing.T) {
	engine := setupTestEngine(t)
	walker := registerUser(t, engine, "favorites@example.com", "123456")

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/walk/favorites", walker.Token, map[string]any{
		"name":        "Gym",
		"address":     "1 Main St",
		"coordinates": map[string]float64{"lat": 35.68, "lng": 139.76},
		"category":    "gym",
	})
	if status != http.StatusCreated {
		t.Fatalf("add favorite failed with status %d: %s", status, string(raw))
	}
	var created favoriteEnvelope
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("unmarshal favorite: %v", err)
	}
	if created.Favorite.ID == "" {
		t.Fatal("expected generated favorite id")
	}

	status, raw = requestJSON(t, engine, http.MethodGet, "/api/walk/favorites?category=gym", walker.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("list favorites failed with status %d: %s", status, string(raw))
	}
	var listed favoritesEnvelope
	if err := json.Unmarshal(raw, &listed); err != nil {
		t.Fatalf("unmarshal favorites: %v", err)
	}
	if len(listed.Favorites) != 1 || listed.Favorites[0].ID != created.Favorite.ID {
		t.Fatalf("unexpected favorites: %+v", listed.Favorites)
	}

	status, _ = requestJSON(t, engine, http.MethodDelete, "/api/walk/favorites/"+created.Favorite.ID, walker.Token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", status)
	}

	status, raw = requestJSON(t, engine, http.MethodDelete, "/api/walk/favorites/"+created.Favorite.ID, walker.Token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", status)
	}
	assertErrorCode(t, raw, "favorite_not_found")
}

func TestCurrentUser(t *testing.T) {
	engine := setupTestEngine(t)
	walker := registerUser(t, engine, "me@example.com", "123456")

	status, raw := requestJSON(t, engine, http.MethodGet, "/api/auth/me", walker.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("me failed with status %d: %s", status, string(raw))
	}
	var resp struct {
		User struct {
			ID           string `json:"id"`
			Email        string `json:"email"`
			PasswordHash string `json:"passwordHash"`
		} `json:"user"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if resp.User.ID != walker.User.ID || resp.User.Email != "me@example.com" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
}

func TestRegisterValidation(t *testing.T) {
	engine := setupTestEngine(t)

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "not-an-email",
		"password": "123456",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad email, got %d", status)
	}
	assertErrorCode(t, raw, "invalid_email")
}

func TestWalkRoutesRequireToken(t *testing.T) {
	engine := setupTestEngine(t)

	status, raw := requestJSON(t, engine, http.MethodGet, "/api/walk/profile", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	assertErrorCode(t, raw, "unauthorized")
}

func TestCORSPreflight(t *testing.T) {
	engine := setupTestEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/walk/favorites/abc", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	recorder := httptest.NewRecorder()

	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
	if recorder.Header().Get("Access-Control-Allow-Methods") != "GET,POST,PUT,DELETE,OPTIONS" {
		t.Fatalf("unexpected allow-methods header: %s", recorder.Header().Get("Access-Control-Allow-Methods"))
	}
}

func setupTestEngine(t *testing.T) http.Handler {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if err := db.RunMigrations(database, migrationsDir); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	kv, closeKV, err := storage.Open(storage.Options{Driver: storage.DriverSQLite, DB: database})
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() {
		_ = closeKV()
	})

	logger := logging.Discard()
	walkService := service.NewWalkService(kv, routing.StraightLine{}, time.UTC, logger)
	walkService.SetClock(func() time.Time { return fixedNow })

	userRepo := repository.NewUserRepository(database)
	authService := service.NewAuthService(userRepo, walkService, "test-secret", 24*time.Hour)

	authHandler := handler.NewAuthHandler(authService)
	walkHandler := handler.NewWalkHandler(walkService)

	return router.New(authService, authHandler, walkHandler, []string{"http://localhost:5173"}, logger)
}

func registerUser(t *testing.T, server http.Handler, email, password string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token for user %s", email)
	}
	return resp
}

func getProfile(t *testing.T, server http.Handler, token string) profileEnvelope {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/walk/profile", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get profile failed with status %d: %s", status, string(body))
	}
	var resp profileEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal profile response: %v", err)
	}
	return resp
}

func getStats(t *testing.T, server http.Handler, token string) statsEnvelope {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/walk/stats", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get stats failed with status %d: %s", status, string(body))
	}
	var resp statsEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal stats response: %v", err)
	}
	return resp
}

func assertErrorCode(t *testing.T, body []byte, want string) {
	t.Helper()
	var resp apiErrorEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	if resp.Error.Code != want {
		t.Fatalf("expected error code %s, got %s (%s)", want, resp.Error.Code, resp.Error.Message)
	}
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
