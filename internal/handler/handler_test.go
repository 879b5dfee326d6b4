package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"snapbook/internal/auth"
	"snapbook/internal/httpmiddleware"
	"snapbook/internal/metrics"
	"snapbook/internal/snapbook"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "snapbook-test"
	testPhoto  = "data:image/jpeg;base64,/9j/4AAQSkZJRg=="
)

type apiFixture struct {
	t      *testing.T
	router *gin.Engine
	admin  string
}

func newAPI(t *testing.T, mutate func(*Options)) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := snapbook.NewService(snapbook.Deps{Store: snapbook.NewMemStore(), Metrics: m, Logger: log})

	opts := Options{
		SigningKey: testKey,
		Issuer:     testIssuer,
		SessionTTL: time.Hour,
		Logger:     log,
		Metrics:    m,
		Gatherer:   reg,
	}
	if mutate != nil {
		mutate(&opts)
	}
	admin, err := auth.Issue("ops", auth.RoleAdmin, testIssuer, testKey, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &apiFixture{t: t, router: New(svc, opts).Router(), admin: admin.Value}
}

func (f *apiFixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			f.t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

type registerResponse struct {
	Participant struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		PhotoCount  int    `json:"photoCount"`
		IsCompleted bool   `json:"isCompleted"`
	} `json:"participant"`
	Token string `json:"token"`
}

func (f *apiFixture) register(name string) registerResponse {
	f.t.Helper()
	w := f.do(http.MethodPost, "/v1/participants", "", gin.H{"name": name})
	if w.Code != http.StatusCreated {
		f.t.Fatalf("register %s: status %d body %s", name, w.Code, w.Body.String())
	}
	return decode[registerResponse](f.t, w)
}

func TestRegisterAndCapture(t *testing.T) {
	api := newAPI(t, nil)
	reg := api.register("Ada")
	if reg.Participant.Name != "Ada" || reg.Token == "" || reg.Participant.PhotoCount != 0 {
		t.Fatalf("unexpected registration %+v", reg)
	}

	for i := 1; i <= 3; i++ {
		w := api.do(http.MethodPost, "/v1/me/photos", reg.Token, gin.H{"data": testPhoto})
		if w.Code != http.StatusCreated {
			t.Fatalf("photo %d: status %d body %s", i, w.Code, w.Body.String())
		}
	}
	w := api.do(http.MethodPost, "/v1/me/photos", reg.Token, gin.H{"data": testPhoto})
	if w.Code != http.StatusConflict {
		t.Errorf("fourth photo: expected 409, got %d", w.Code)
	}

	w = api.do(http.MethodGet, "/v1/me", reg.Token, nil)
	got := decode[struct {
		PhotoCount  int  `json:"photoCount"`
		IsCompleted bool `json:"isCompleted"`
	}](t, w)
	if got.PhotoCount != 3 || !got.IsCompleted {
		t.Errorf("expected completed participant, got %+v", got)
	}
}

func TestRegisterValidation(t *testing.T) {
	api := newAPI(t, nil)
	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing name", gin.H{}, http.StatusBadRequest},
		{"blank name", gin.H{"name": "   "}, http.StatusBadRequest},
		{"too long", gin.H{"name": strings.Repeat("x", 81)}, http.StatusBadRequest},
		{"ok", gin.H{"name": "Bo"}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := api.do(http.MethodPost, "/v1/participants", "", tt.body); w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestCapturePhotoRejectsNonDataURL(t *testing.T) {
	api := newAPI(t, nil)
	reg := api.register("Ada")
	w := api.do(http.MethodPost, "/v1/me/photos", reg.Token, gin.H{"data": "not an image"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAuthorization(t *testing.T) {
	api := newAPI(t, nil)
	reg := api.register("Ada")
	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"me without token", http.MethodGet, "/v1/me", "", http.StatusUnauthorized},
		{"me with garbage", http.MethodGet, "/v1/me", "nope", http.StatusUnauthorized},
		{"admin as participant", http.MethodGet, "/v1/admin/stats", reg.Token, http.StatusForbidden},
		{"me as admin", http.MethodGet, "/v1/me", api.admin, http.StatusForbidden},
		{"admin stats", http.MethodGet, "/v1/admin/stats", api.admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := api.do(tt.method, tt.path, tt.token, nil); w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestSubmissionsToggle(t *testing.T) {
	api := newAPI(t, nil)
	reg := api.register("Ada")

	w := api.do(http.MethodPost, "/v1/admin/submissions/toggle", api.admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle: %d", w.Code)
	}
	st := decode[map[string]any](t, w)
	if st["acceptingSubmissions"] != false {
		t.Errorf("expected closed settings, got %v", st)
	}

	if w := api.do(http.MethodPost, "/v1/participants", "", gin.H{"name": "Late"}); w.Code != http.StatusForbidden {
		t.Errorf("register while closed: expected 403, got %d", w.Code)
	}
	if w := api.do(http.MethodPost, "/v1/me/photos", reg.Token, gin.H{"data": testPhoto}); w.Code != http.StatusForbidden {
		t.Errorf("capture while closed: expected 403, got %d", w.Code)
	}

	w = api.do(http.MethodGet, "/v1/settings", "", nil)
	if st := decode[map[string]any](t, w); st["acceptingSubmissions"] != false {
		t.Errorf("public settings should show closed, got %v", st)
	}
}

func TestYearbookLifecycle(t *testing.T) {
	api := newAPI(t, nil)
	for _, name := range []string{"Abe", "Bo", "Cy"} {
		reg := api.register(name)
		if w := api.do(http.MethodPost, "/v1/me/photos", reg.Token, gin.H{"data": testPhoto}); w.Code != http.StatusCreated {
			t.Fatalf("capture: %d", w.Code)
		}
	}
	api.register("NoPhotos")

	if w := api.do(http.MethodGet, "/v1/yearbook", "", nil); w.Code != http.StatusForbidden {
		t.Errorf("yearbook before generation: expected 403, got %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/v1/slideshow", "", nil); w.Code != http.StatusForbidden {
		t.Errorf("slideshow before generation: expected 403, got %d", w.Code)
	}

	if w := api.do(http.MethodPost, "/v1/admin/yearbook/generate", api.admin, nil); w.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", w.Code, w.Body.String())
	}

	w := api.do(http.MethodGet, "/v1/yearbook", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("yearbook: %d %s", w.Code, w.Body.String())
	}
	book := decode[struct {
		Entries  []map[string]string   `json:"entries"`
		Pages    [][]map[string]string `json:"pages"`
		PageSize int                   `json:"page_size"`
	}](t, w)
	if len(book.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(book.Entries))
	}
	if book.Entries[0]["studentName"] != "Abe" || book.Entries[0]["photo"] != testPhoto {
		t.Errorf("unexpected first entry %v", book.Entries[0])
	}
	if book.PageSize != 2 || len(book.Pages) != 2 || len(book.Pages[1]) != 1 {
		t.Errorf("unexpected pagination %d pages of size %d", len(book.Pages), book.PageSize)
	}

	w = api.do(http.MethodGet, "/v1/yearbook?page_size=3", "", nil)
	if got := decode[struct {
		Pages [][]any `json:"pages"`
	}](t, w); len(got.Pages) != 1 {
		t.Errorf("page_size=3: expected 1 page, got %d", len(got.Pages))
	}
	for _, bad := range []string{"0", "-1", "x"} {
		if w := api.do(http.MethodGet, "/v1/yearbook?page_size="+bad, "", nil); w.Code != http.StatusBadRequest {
			t.Errorf("page_size=%s: expected 400, got %d", bad, w.Code)
		}
	}

	w = api.do(http.MethodGet, "/v1/slideshow", "", nil)
	slides := decode[struct {
		Slides []map[string]string `json:"slides"`
	}](t, w)
	if len(slides.Slides) != 3 {
		t.Errorf("expected 3 slides, got %d", len(slides.Slides))
	}

	if w := api.do(http.MethodPost, "/v1/admin/yearbook/reset", api.admin, nil); w.Code != http.StatusOK {
		t.Fatalf("reset: %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/v1/yearbook", "", nil); w.Code != http.StatusForbidden {
		t.Errorf("yearbook after reset: expected 403, got %d", w.Code)
	}
}

func TestAdminParticipantsAndQuotes(t *testing.T) {
	api := newAPI(t, nil)
	reg := api.register("Ada")

	w := api.do(http.MethodGet, "/v1/admin/participants", api.admin, nil)
	list := decode[struct {
		Participants []map[string]any `json:"participants"`
	}](t, w)
	if len(list.Participants) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(list.Participants))
	}

	if w := api.do(http.MethodDelete, "/v1/admin/participants/"+reg.Participant.ID, api.admin, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", w.Code)
	}
	if w := api.do(http.MethodDelete, "/v1/admin/participants/"+reg.Participant.ID, api.admin, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/v1/me", reg.Token, nil); w.Code != http.StatusNotFound {
		t.Errorf("me after delete: expected 404, got %d", w.Code)
	}

	if w := api.do(http.MethodPost, "/v1/admin/quotes", api.admin, gin.H{"text": "Stay curious."}); w.Code != http.StatusCreated {
		t.Fatalf("add quote: %d %s", w.Code, w.Body.String())
	}
	if w := api.do(http.MethodPost, "/v1/admin/quotes", api.admin, gin.H{"text": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty quote: expected 400, got %d", w.Code)
	}
	w = api.do(http.MethodGet, "/v1/admin/quotes", api.admin, nil)
	quotes := decode[struct {
		Quotes []map[string]any `json:"quotes"`
	}](t, w)
	if len(quotes.Quotes) != 1 || quotes.Quotes[0]["text"] != "Stay curious." {
		t.Errorf("unexpected quotes %v", quotes.Quotes)
	}
}

func TestPhotoWallAndStats(t *testing.T) {
	api := newAPI(t, nil)
	a := api.register("Ada")
	api.register("Bo")
	api.do(http.MethodPost, "/v1/me/photos", a.Token, gin.H{"data": testPhoto})

	w := api.do(http.MethodGet, "/v1/photowall", "", nil)
	wall := decode[struct {
		Participants []map[string]any `json:"participants"`
	}](t, w)
	if len(wall.Participants) != 1 || wall.Participants[0]["name"] != "Ada" {
		t.Errorf("unexpected wall %v", wall.Participants)
	}

	w = api.do(http.MethodGet, "/v1/admin/stats", api.admin, nil)
	stats := decode[map[string]float64](t, w)
	if stats["totalUsers"] != 2 || stats["totalPhotos"] != 1 || stats["completedSubmissions"] != 0 {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name   string
		health func(context.Context) map[string]bool
		want   int
	}{
		{"no checks", nil, http.StatusOK},
		{"healthy", func(context.Context) map[string]bool { return map[string]bool{"db": true} }, http.StatusOK},
		{"degraded", func(context.Context) map[string]bool { return map[string]bool{"db": true, "redis": false} }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newAPI(t, func(o *Options) { o.Health = tt.health })
			if w := api.do(http.MethodGet, "/healthz", "", nil); w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestMiddlewareHeadersAndMetrics(t *testing.T) {
	api := newAPI(t, func(o *Options) { o.Release = true })

	w := api.do(http.MethodOptions, "/v1/participants", "", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", w.Code)
	}
	w = api.do(http.MethodGet, "/v1/settings", "", nil)
	if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("Strict-Transport-Security") == "" {
		t.Errorf("missing security headers: %v", w.Header())
	}

	api.register("Ada")
	w = api.do(http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(w.Body.String(), "snapbook_registrations_total 1") {
		t.Errorf("registration counter missing from /metrics output")
	}
}

func TestRateLimited(t *testing.T) {
	api := newAPI(t, func(o *Options) { o.Limiter = httpmiddleware.NewTokenBucket(1, 1) })
	if w := api.do(http.MethodGet, "/v1/settings", "", nil); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/v1/settings", "", nil); w.Code != http.StatusTooManyRequests {
		t.Errorf("second request: expected 429, got %d", w.Code)
	}
}
