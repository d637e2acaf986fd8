package visitor

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"headcanonhub/internal/logging"
	"headcanonhub/internal/metrics"
	"headcanonhub/pkg/models"
)

const (
	SessionCookie    = "hc_session"
	sessionCookieTTL = 14 * 24 * time.Hour
	geoQueueSize     = 256
	eventQueueSize   = 256

	EventPageView = "page_view"
)

var skipPrefixes = []string{"/admin", "/static", "/media", "/metrics", "/health", "/ready"}

// Broadcaster fans events out to live feed subscribers.
type Broadcaster interface {
	BroadcastJSON(v any)
}

type geoJob struct {
	visitorID int64
	ip        string
}

// Tracker records every tracked request as a page view. Geolocation of new
// visitors happens on background workers so it never delays a response.
type Tracker struct {
	repo *Repo
	geo  Locator
	hub  Broadcaster
	jobs   chan geoJob
	events chan models.PageViewEvent
	wg     sync.WaitGroup
	log    zerolog.Logger
	now    func() time.Time
}

// NewTracker wires the tracker. geo and hub may be nil.
func NewTracker(repo *Repo, geo Locator, hub Broadcaster) *Tracker {
	return &Tracker{
		repo:   repo,
		geo:    geo,
		hub:    hub,
		jobs:   make(chan geoJob, geoQueueSize),
		events: make(chan models.PageViewEvent, eventQueueSize),
		log:    logging.Component("visitor"),
		now:    time.Now,
	}
}

// Start launches the live feed pump and the geolocation workers. They stop
// when ctx is done.
func (t *Tracker) Start(ctx context.Context, workers int) {
	if t.hub != nil {
		t.wg.Add(1)
		go t.pump(ctx)
	}
	if t.geo == nil {
		return
	}
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		t.wg.Add(1)
		go t.geoWorker(ctx)
	}
}

// Wait blocks until every worker has returned.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// pump is the only goroutine writing to the hub.
func (t *Tracker) pump(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-t.events:
			t.hub.BroadcastJSON(ev)
		}
	}
}

func (t *Tracker) geoWorker(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-t.jobs:
			t.locate(ctx, j)
		}
	}
}

func (t *Tracker) locate(ctx context.Context, j geoJob) {
	loc, err := t.geo.Lookup(ctx, j.ip)
	if err != nil {
		t.log.Warn().Err(err).Str("ip", j.ip).Msg("geolocation failed")
		return
	}
	if loc == nil {
		return
	}
	if err := t.repo.UpdateGeolocation(ctx, j.visitorID, *loc); err != nil {
		t.log.Error().Err(err).Int64("visitor_id", j.visitorID).Msg("store geolocation failed")
		return
	}
	t.log.Debug().Str("ip", j.ip).Str("country", loc.CountryCode).Msg("visitor geolocated")
}

// Middleware tracks the request before handing it on. Tracking failures are
// logged and never change the response.
func (t *Tracker) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ShouldTrack(c.Request.URL.Path) {
			c.Next()
			return
		}

		session := sessionKey(c)
		if _, err := t.Track(c.Request.Context(), c.Request, c.ClientIP(), session); err != nil {
			metrics.RecordVisitor("error")
			t.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("visitor tracking failed")
		}
		c.Next()
	}
}

// Track records r as a page view for ip, the client address resolved by the
// router's trusted proxy rules.
func (t *Tracker) Track(ctx context.Context, r *http.Request, ip, session string) (*HitResult, error) {
	if ip == "" {
		return nil, nil
	}

	ua := r.UserAgent()
	hit := Hit{
		IP:         ip,
		SessionKey: session,
		UserAgent:  ua,
		Device:     ParseUserAgent(ua),
		Referrer:   r.Referer(),
		Path:       r.URL.Path,
		PageTitle:  PageTitle(r.URL.Path),
		Method:     r.Method,
		At:         t.now(),
	}

	res, err := t.repo.RecordHit(ctx, hit)
	if err != nil {
		return nil, err
	}
	metrics.PageViewsTotal.Inc()

	if res.Created {
		metrics.RecordVisitor("new")
		t.log.Info().Str("ip", ip).Str("device", hit.Device.Type).Bool("bot", hit.Device.IsBot).Msg("new visitor")
		if res.Visitor.Country == "" {
			t.enqueueGeo(geoJob{visitorID: res.Visitor.ID, ip: ip})
		}
	} else {
		metrics.RecordVisitor("returning")
	}

	t.publish(models.PageViewEvent{
		Type:        EventPageView,
		VisitorID:   res.Visitor.ID,
		URL:         res.PageView.URL,
		PageTitle:   res.PageView.PageTitle,
		Method:      res.PageView.Method,
		CountryCode: res.PageView.CountryCode,
		DeviceType:  res.PageView.DeviceType,
		IsBot:       res.Visitor.IsBot,
		NewVisitor:  res.Created,
		At:          res.PageView.Timestamp,
	})
	return &res, nil
}

// publish hands ev to the pump without blocking. Events are dropped while
// the queue is full.
func (t *Tracker) publish(ev models.PageViewEvent) {
	if t.hub == nil {
		return
	}
	select {
	case t.events <- ev:
	default:
		t.log.Debug().Str("url", ev.URL).Msg("live feed queue full, dropping event")
	}
}

func (t *Tracker) enqueueGeo(j geoJob) {
	if t.geo == nil {
		return
	}
	select {
	case t.jobs <- j:
	default:
		t.log.Warn().Str("ip", j.ip).Msg("geolocation queue full, dropping lookup")
	}
}

func sessionKey(c *gin.Context) string {
	if v, err := c.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(v); err == nil {
			return v
		}
	}
	key := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, key, int(sessionCookieTTL.Seconds()), "/", "", false, true)
	return key
}

// ShouldTrack is false for admin, static, media and operational endpoints.
func ShouldTrack(path string) bool {
	for _, p := range skipPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return false
		}
	}
	return true
}

// PageTitle derives a readable title from a request path:
// "/" is Homepage, anything under api/ is API, otherwise path segments are
// joined with " - " and title-cased.
func PageTitle(path string) string {
	p := strings.Trim(path, "/")
	switch {
	case p == "":
		return "Homepage"
	case strings.HasPrefix(p, "api/"):
		return "API"
	}
	// Casers keep state, so one per call.
	return cases.Title(language.Und).String(strings.ReplaceAll(p, "/", " - "))
}
