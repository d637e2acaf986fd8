package models

import "time"

const (
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"
	DeviceUnknown = "Unknown"
)

type VisitorLog struct {
	ID             int64     `json:"id"`
	IPAddress      string    `json:"ip_address"`
	SessionKey     string    `json:"session_key,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	Browser        string    `json:"browser,omitempty"`
	BrowserVersion string    `json:"browser_version,omitempty"`
	DeviceType     string    `json:"device_type,omitempty"`
	OS             string    `json:"os,omitempty"`
	OSVersion      string    `json:"os_version,omitempty"`
	IsBot          bool      `json:"is_bot"`
	IsMobile       bool      `json:"is_mobile"`
	Country        string    `json:"country,omitempty"`
	CountryCode    string    `json:"country_code,omitempty"`
	City           string    `json:"city,omitempty"`
	Region         string    `json:"region,omitempty"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	Referrer       string    `json:"referrer,omitempty"`
	LandingPage    string    `json:"landing_page,omitempty"`
	FirstVisit     time.Time `json:"first_visit"`
	LastVisit      time.Time `json:"last_visit"`
	TotalVisits    int       `json:"total_visits"`
	TotalPageViews int       `json:"total_page_views"`
}

type PageView struct {
	ID          int64     `json:"id"`
	VisitorID   int64     `json:"visitor_id"`
	URL         string    `json:"url"`
	PageTitle   string    `json:"page_title,omitempty"`
	Method      string    `json:"method"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Referrer    string    `json:"referrer,omitempty"`
	SessionKey  string    `json:"session_key,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	DeviceType  string    `json:"device_type,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Geolocation is the subset of an IP lookup stored on a visitor.
type Geolocation struct {
	Country     string   `json:"country"`
	CountryCode string   `json:"country_code"`
	City        string   `json:"city"`
	Region      string   `json:"region"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// PageViewEvent is pushed to live feed subscribers.
type PageViewEvent struct {
	Type        string    `json:"type"`
	VisitorID   int64     `json:"visitor_id"`
	URL         string    `json:"url"`
	PageTitle   string    `json:"page_title"`
	Method      string    `json:"method"`
	CountryCode string    `json:"country_code,omitempty"`
	DeviceType  string    `json:"device_type,omitempty"`
	IsBot       bool      `json:"is_bot"`
	NewVisitor  bool      `json:"new_visitor"`
	At          time.Time `json:"at"`
}
