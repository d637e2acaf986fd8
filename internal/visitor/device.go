// Package visitor records who visits the site: device fingerprinting, bot
// detection, IP geolocation and a per-request page view log.
package visitor

import (
	"strings"

	"github.com/mssola/useragent"

	"headcanonhub/pkg/models"
)

var botKeywords = []string{
	"bot", "crawler", "spider", "scraper", "headless",
	"googlebot", "bingbot", "slurp", "duckduckbot", "baiduspider",
}

// Device is what we learn from a User-Agent header.
type Device struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	Type           string
	IsMobile       bool
	IsBot          bool
}

func ParseUserAgent(raw string) Device {
	ua := useragent.New(raw)
	name, version := ua.Browser()
	os := ua.OSInfo()

	d := Device{
		Browser:        name,
		BrowserVersion: version,
		OS:             os.Name,
		OSVersion:      os.Version,
	}
	d.Type = deviceType(raw, ua)
	d.IsMobile = d.Type == models.DeviceMobile
	d.IsBot = ua.Bot() || IsBot(raw, d.Browser, d.Type)
	return d
}

func deviceType(raw string, ua *useragent.UserAgent) string {
	if strings.TrimSpace(raw) == "" {
		return models.DeviceUnknown
	}
	lower := strings.ToLower(raw)
	switch {
	case isTablet(lower, ua):
		return models.DeviceTablet
	case ua.Mobile():
		return models.DeviceMobile
	case isDesktop(lower):
		return models.DeviceDesktop
	default:
		return models.DeviceUnknown
	}
}

func isTablet(lower string, ua *useragent.UserAgent) bool {
	if ua.Platform() == "iPad" || strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") {
		return true
	}
	// Android tablets omit the "Mobile" token.
	return strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")
}

func isDesktop(lower string) bool {
	for _, marker := range []string{"windows nt", "macintosh", "x11", "cros", "linux x86_64"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsBot flags known crawler keywords, crawler-looking browser names and
// anything we could not place on a device.
func IsBot(userAgent, browser, deviceType string) bool {
	lower := strings.ToLower(userAgent)
	for _, kw := range botKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	b := strings.ToLower(browser)
	if strings.Contains(b, "bot") || strings.Contains(b, "spider") {
		return true
	}
	return deviceType == models.DeviceUnknown
}
