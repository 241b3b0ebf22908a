package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-watchwell-backend/internal/affinity"
	"github.com/tbourn/go-watchwell-backend/internal/config"
	"github.com/tbourn/go-watchwell-backend/internal/domain"
	"github.com/tbourn/go-watchwell-backend/internal/http/middleware"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// unique shared-cache DSN so tests don't see each other's rows
	dsn := "file:router_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// schema so handlers don't explode on list endpoints
	if err := db.AutoMigrate(
		&domain.MoodSample{}, &domain.MoodProfile{},
		&domain.WatchSession{}, &domain.DailyMetrics{},
		&domain.AffinityEntry{}, &domain.Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig(base string) config.Config {
	return config.Config{
		APIBasePath:   base,
		RateRPS:       100,
		RateBurst:     10,
		MaxCandidates: 20,
		Wellness: config.WellnessConfig{
			DailyGoalMinutes:  120,
			BreakInterval:     30,
			BingeThreshold:    180,
			CriticalThreshold: 300,
		},
		CORS:     config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security: config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:     config.OTELConfig{ServiceName: "test-svc"},
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	db := newTestDB(t)
	RegisterRoutes(r, db, affinity.Default(), testConfig("/api/v1"))

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig("/api/v2")
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	db := newTestDB(t)

	RegisterRoutes(r, db, affinity.Default(), cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_MoodRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	db := newTestDB(t)
	RegisterRoutes(r, db, affinity.Default(), testConfig("/api/v1"))

	// Record a mood through the full stack.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mood",
		bytes.NewBufferString(`{"mood":"happy"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /mood = %d (%s)", w.Code, w.Body.String())
	}

	// The live profile reflects it.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/mood", nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /mood = %d (%s)", w.Code, w.Body.String())
	}
	if body := w.Body.String(); !bytes.Contains([]byte(body), []byte(`"current_mood":"happy"`)) {
		t.Fatalf("GET /mood body = %s; want current_mood happy", body)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// Hit all three
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/one", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "one" {
		t.Fatalf("GET /one got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/two", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "two" {
		t.Fatalf("GET /two got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("GET /api/ping got %d %q", rec.Code, rec.Body.String())
	}
}

// Smoke test that a request traverses idempotency + ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig("/api/v1")
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour} // enabled (but only set on https)
	db := newTestDB(t)
	RegisterRoutes(r, db, affinity.Default(), cfg)

	// Any request goes through the middleware stack
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	// simulate https so HSTS could be eligible if middleware checks scheme
	req.URL.Scheme = "https"
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func Test_moodRepoShim_Proxies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	shim := moodRepoShim{}
	ctx := context.Background()

	t0 := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)

	// --- CreateMoodSample ---
	m1, err := shim.CreateMoodSample(ctx, db, "u1", domain.MoodHappy, domain.MoodSourceUser, 0.95, t0)
	if err != nil {
		t.Fatalf("CreateMoodSample: %v", err)
	}
	if m1 == nil || m1.ID == "" || m1.Mood != domain.MoodHappy {
		t.Fatalf("CreateMoodSample returned bad sample: %+v", m1)
	}

	// --- GetMoodProfile ---
	p, err := shim.GetMoodProfile(ctx, db, "u1")
	if err != nil {
		t.Fatalf("GetMoodProfile: %v", err)
	}
	if p.CurrentMood != domain.MoodHappy {
		t.Fatalf("profile mood = %q; want happy", p.CurrentMood)
	}

	// --- LatestMoodSample ---
	latest, err := shim.LatestMoodSample(ctx, db, "u1")
	if err != nil {
		t.Fatalf("LatestMoodSample: %v", err)
	}
	if latest.ID != m1.ID {
		t.Fatalf("latest = %q; want %q", latest.ID, m1.ID)
	}

	// Seed a few more for windows and pagination
	for i := 1; i <= 2; i++ {
		if _, err := shim.CreateMoodSample(ctx, db, "u1", domain.MoodSad, domain.MoodSourceInferred, 0.6, t0.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("seed sample %d: %v", i, err)
		}
	}

	// --- ListMoodSamplesSince ---
	recent, err := shim.ListMoodSamplesSince(ctx, db, "u1", t0.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("ListMoodSamplesSince: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("ListMoodSamplesSince expected 2, got %d", len(recent))
	}

	// --- CountMoodSamples ---
	n, err := shim.CountMoodSamples(ctx, db, "u1")
	if err != nil {
		t.Fatalf("CountMoodSamples: %v", err)
	}
	if n != 3 {
		t.Fatalf("CountMoodSamples expected 3, got %d", n)
	}

	// --- ListMoodSamplesPage ---
	page, err := shim.ListMoodSamplesPage(ctx, db, "u1", 0, 2)
	if err != nil {
		t.Fatalf("ListMoodSamplesPage: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("ListMoodSamplesPage expected 2, got %d", len(page))
	}
}

func TestRegisterRoutes_EndSessionKeyedRetryReplays(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	db := newTestDB(t)
	cfg := testConfig("/api/v1")
	cfg.IdempotencyTTL = time.Hour
	RegisterRoutes(r, db, affinity.Default(), cfg)

	// Start a session through the full stack.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions",
		bytes.NewBufferString(`{"content_id":"movie-1","mood":"happy"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /sessions = %d (%s)", w.Code, w.Body.String())
	}
	var sess domain.WatchSession
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	end := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/end",
			bytes.NewBufferString(`{"user_satisfied":true}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", "u1")
		req.Header.Set(middleware.HeaderIdempotencyKey, "retry-123")
		r.ServeHTTP(w, req)
		return w
	}

	first := end()
	if first.Code != http.StatusOK {
		t.Fatalf("first end = %d (%s)", first.Code, first.Body.String())
	}
	if first.Header().Get("Idempotency-Replayed") != "" {
		t.Fatal("first end should not be marked as a replay")
	}

	// The same key retried serves the stored result instead of a conflict.
	second := end()
	if second.Code != http.StatusOK {
		t.Fatalf("keyed retry = %d (%s); want 200 replay", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatal("keyed retry missing Idempotency-Replayed header")
	}
	var replayed map[string]any
	if err := json.Unmarshal(second.Body.Bytes(), &replayed); err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if replayed["session_id"] != sess.ID {
		t.Fatalf("replay session_id = %v; want %s", replayed["session_id"], sess.ID)
	}

	// The replay never re-folds the session into the day's aggregates.
	var m domain.DailyMetrics
	if err := db.Where("user_id = ?", "u1").First(&m).Error; err != nil {
		t.Fatalf("load metrics: %v", err)
	}
	if m.SessionCount != 1 {
		t.Fatalf("session_count = %d; want 1 after replay", m.SessionCount)
	}

	// An unkeyed second end still reports the closed-session conflict.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/end", nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("unkeyed retry = %d; want 409", w.Code)
	}
}

func TestRegisterRoutes_IdempotencyCallback_MissAndHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	db := newTestDB(t)
	RegisterRoutes(r, db, affinity.Default(), testConfig("/api/vX"))

	const userID = "u1"
	const key = "key-hit"
	const sessionID = "" // we’ll hit /health, so no path param

	// --- MISS: record does not exist (executes 'rec == nil' branch) ---
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", userID)
	req.Header.Set(middleware.HeaderIdempotencyKey, key)
	r.ServeHTTP(w, req)
	// NoMethod is expected for POST /health, but middleware ran.

	// --- seed an idempotency record so the callback returns non-nil ---
	seed := &domain.Idempotency{
		ID:        "idem-seed-1",
		UserID:    userID,
		SessionID: sessionID,
		Key:       key,
		Status:    1,
		// ensure it's considered valid "now"
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(seed).Error; err != nil {
		t.Fatalf("seed idempotency: %v", err)
	}

	// --- HIT: record exists (executes 'return true, nil' branch) ---
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", userID)
	req.Header.Set(middleware.HeaderIdempotencyKey, key)
	r.ServeHTTP(w, req)
	// again, 405 is fine; goal is to drive the middleware branch.
}

func TestRegisterRoutes_IdempotencyCallback_ErrorBranch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// Make a fresh in-memory DB and migrate normally.
	db, err := gorm.Open(sqlite.Open("file:routerdb_err?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.MoodSample{}, &domain.MoodProfile{},
		&domain.WatchSession{}, &domain.DailyMetrics{},
		&domain.AffinityEntry{}, &domain.Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	// Wire routes first...
	RegisterRoutes(r, db, affinity.Default(), testConfig("/api/v1"))

	// ...then force queries to fail by closing the underlying connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	// Now any repo.GetIdempotency call should error → drives (err != nil) branch.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set(middleware.HeaderIdempotencyKey, "force-error")
	r.ServeHTTP(w, req)

	// 405 is expected for POST /health; goal is to exercise the middleware branch.
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
