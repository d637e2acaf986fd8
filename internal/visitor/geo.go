package visitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"headcanonhub/internal/logging"
	"headcanonhub/internal/metrics"
	"headcanonhub/pkg/models"
)

const geoBreakerName = "ip-api"

// Locator resolves an IP to a location. A nil result with a nil error means
// the address has no public location.
type Locator interface {
	Lookup(ctx context.Context, ip string) (*models.Geolocation, error)
}

// GeoClient queries an ip-api.com compatible endpoint behind a circuit
// breaker so an outage stops costing a timeout per new visitor.
type GeoClient struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[*models.Geolocation]
}

type ipAPIResponse struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	Country     string   `json:"country"`
	CountryCode string   `json:"countryCode"`
	RegionName  string   `json:"regionName"`
	City        string   `json:"city"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
}

func NewGeoClient(baseURL string, timeout time.Duration) *GeoClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	metrics.CircuitBreakerState.WithLabelValues(geoBreakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[*models.Geolocation](gobreaker.Settings{
		Name:        geoBreakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &GeoClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		cb:      cb,
	}
}

func (g *GeoClient) Lookup(ctx context.Context, ip string) (*models.Geolocation, error) {
	if !IsPublicIP(ip) {
		metrics.RecordGeoLookup("skipped")
		return nil, nil
	}

	loc, err := g.cb.Execute(func() (*models.Geolocation, error) {
		return g.fetch(ctx, ip)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordGeoLookup("breaker_open")
		return nil, fmt.Errorf("geolocate %s: %w", ip, err)
	case err != nil:
		metrics.RecordGeoLookup("failed")
		return nil, fmt.Errorf("geolocate %s: %w", ip, err)
	}
	metrics.RecordGeoLookup("ok")
	return loc, nil
}

func (g *GeoClient) fetch(ctx context.Context, ip string) (*models.Geolocation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+ip, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	// "fail" means the service answered but knows nothing about the address;
	// that is not an outage.
	if body.Status != "success" {
		return nil, nil
	}
	return &models.Geolocation{
		Country:     body.Country,
		CountryCode: body.CountryCode,
		City:        body.City,
		Region:      body.RegionName,
		Latitude:    body.Lat,
		Longitude:   body.Lon,
	}, nil
}

// IsPublicIP reports whether ip is worth geolocating.
func IsPublicIP(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return !(addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsMulticast())
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
