package visitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headcanonhub/pkg/models"
)

type fakeLocator struct {
	mu    sync.Mutex
	calls []string
	loc   *models.Geolocation
}

func (f *fakeLocator) Lookup(_ context.Context, ip string) (*models.Geolocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ip)
	return f.loc, nil
}

func (f *fakeLocator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeHub struct {
	mu     sync.Mutex
	events []any
}

func (f *fakeHub) BroadcastJSON(v any) {
	f.mu.Lock()
	f.events = append(f.events, v)
	f.mu.Unlock()
}

func (f *fakeHub) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestPageTitle(t *testing.T) {
	tests := map[string]string{
		"/":                   "Homepage",
		"":                    "Homepage",
		"/api/generate/":      "API",
		"/about/":             "About",
		"/what-is-headcanon/": "What-Is-Headcanon",
		"/guides/ship/":       "Guides - Ship",
	}
	for in, want := range tests {
		assert.Equal(t, want, PageTitle(in), in)
	}
}

func TestShouldTrack(t *testing.T) {
	for _, p := range []string{"/admin/", "/admin/visitors", "/static/app.css", "/media/x.png", "/metrics", "/health", "/ready"} {
		assert.False(t, ShouldTrack(p), p)
	}
	for _, p := range []string{"/", "/about/", "/api/generate/", "/robots.txt", "/administrator-guide/"} {
		assert.True(t, ShouldTrack(p), p)
	}
}

func newTrackedRouter(tr *Tracker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(tr.Middleware())
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/", ok)
	r.GET("/about/", ok)
	r.GET("/admin/visitors", ok)
	return r
}

func TestTracker_Middleware(t *testing.T) {
	repo := NewRepo(newTestDB(t))
	geo := &fakeLocator{loc: &models.Geolocation{Country: "Canada", CountryCode: "CA", City: "Toronto"}}
	hub := &fakeHub{}
	tr := NewTracker(repo, geo, hub)

	ctx, cancel := context.WithCancel(context.Background())
	tr.Start(ctx, 1)
	defer func() {
		cancel()
		tr.Wait()
	}()

	r := newTrackedRouter(tr)
	do := func(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.44")
		req.Header.Set("User-Agent", uaMac)
		req.Header.Set("Referer", "https://search.example/")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("/")
	require.Equal(t, http.StatusOK, w.Code)
	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session, "session cookie issued")

	w = do("/about/", session)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies(), "existing session is reused")

	do("/admin/visitors", session)

	v, err := repo.GetVisitorByIP(context.Background(), "203.0.113.44")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 2, v.TotalVisits)
	assert.Equal(t, 2, v.TotalPageViews, "admin paths are not tracked")
	assert.Equal(t, session.Value, v.SessionKey)
	assert.Equal(t, "https://search.example/", v.Referrer)
	assert.Equal(t, models.DeviceDesktop, v.DeviceType)
	assert.False(t, v.IsBot)

	assert.Eventually(t, func() bool {
		got, err := repo.GetVisitorByIP(context.Background(), "203.0.113.44")
		return err == nil && got != nil && got.CountryCode == "CA"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"203.0.113.44"}, geo.Calls(), "only new visitors are geolocated")

	assert.Eventually(t, func() bool { return hub.Len() == 2 }, time.Second, 5*time.Millisecond)
}

func TestTracker_FailureDoesNotBreakRequest(t *testing.T) {
	db := newTestDB(t)
	tr := NewTracker(NewRepo(db), nil, nil)
	require.NoError(t, db.Close())

	r := newTrackedRouter(tr)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/about/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestTracker_LiveFeedQueue(t *testing.T) {
	hub := &fakeHub{}
	tr := NewTracker(NewRepo(newTestDB(t)), nil, hub)
	tr.events = make(chan models.PageViewEvent, 1)

	done := make(chan struct{})
	go func() {
		tr.publish(models.PageViewEvent{URL: "/a/"})
		tr.publish(models.PageViewEvent{URL: "/b/"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full queue")
	}
	assert.Zero(t, hub.Len(), "nothing is sent before the pump runs")

	ctx, cancel := context.WithCancel(context.Background())
	tr.Start(ctx, 1)
	assert.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	tr.Wait()

	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Equal(t, "/a/", hub.events[0].(models.PageViewEvent).URL)
}
