package visitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"headcanonhub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Hit is one tracked request.
type Hit struct {
	IP         string
	SessionKey string
	UserAgent  string
	Device     Device
	Referrer   string
	Path       string
	PageTitle  string
	Method     string
	At         time.Time
}

// HitResult is the visitor row after the hit was applied, the page view that
// was written and whether the visitor is new.
type HitResult struct {
	Visitor  *models.VisitorLog
	PageView models.PageView
	Created  bool
}

const visitorColumns = `
	id, ip_address, COALESCE(session_key, ''), COALESCE(user_agent, ''),
	COALESCE(browser, ''), COALESCE(browser_version, ''), COALESCE(device_type, ''),
	COALESCE(os, ''), COALESCE(os_version, ''), is_bot, is_mobile,
	COALESCE(country, ''), COALESCE(country_code, ''), COALESCE(city, ''), COALESCE(region, ''),
	latitude, longitude, COALESCE(referrer, ''), COALESCE(landing_page, ''),
	first_visit, last_visit, total_visits, total_page_views`

const pageViewColumns = `
	id, visitor_id, url, COALESCE(page_title, ''), method, COALESCE(ip_address, ''),
	COALESCE(user_agent, ''), COALESCE(referrer, ''), COALESCE(session_key, ''),
	COALESCE(country_code, ''), COALESCE(device_type, ''), timestamp`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisitor(row rowScanner) (*models.VisitorLog, error) {
	var v models.VisitorLog
	var lat, lon sql.NullFloat64
	err := row.Scan(
		&v.ID, &v.IPAddress, &v.SessionKey, &v.UserAgent,
		&v.Browser, &v.BrowserVersion, &v.DeviceType,
		&v.OS, &v.OSVersion, &v.IsBot, &v.IsMobile,
		&v.Country, &v.CountryCode, &v.City, &v.Region,
		&lat, &lon, &v.Referrer, &v.LandingPage,
		&v.FirstVisit, &v.LastVisit, &v.TotalVisits, &v.TotalPageViews,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		v.Latitude = &lat.Float64
	}
	if lon.Valid {
		v.Longitude = &lon.Float64
	}
	return &v, nil
}

func scanPageView(row rowScanner) (models.PageView, error) {
	var p models.PageView
	err := row.Scan(
		&p.ID, &p.VisitorID, &p.URL, &p.PageTitle, &p.Method, &p.IPAddress,
		&p.UserAgent, &p.Referrer, &p.SessionKey,
		&p.CountryCode, &p.DeviceType, &p.Timestamp,
	)
	return p, err
}

// RecordHit applies one request in a single transaction: the visitor row is
// created on first sight of the IP or has its visit counters bumped, then a
// page view is appended and total_page_views incremented.
func (r *Repo) RecordHit(ctx context.Context, h Hit) (res HitResult, err error) {
	if h.At.IsZero() {
		h.At = time.Now()
	}
	h.At = h.At.UTC()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin record hit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Insert first so the transaction takes the write lock up front.
	ins, err := tx.ExecContext(ctx, `
		INSERT INTO visitor_logs (
			ip_address, session_key, user_agent, browser, browser_version,
			device_type, os, os_version, is_bot, is_mobile,
			country, country_code, city, region,
			referrer, landing_page, first_visit, last_visit, total_visits, total_page_views
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', '', '', ?, ?, ?, ?, 1, 0)
		ON CONFLICT (ip_address) DO NOTHING
	`, h.IP, h.SessionKey, h.UserAgent, h.Device.Browser, h.Device.BrowserVersion,
		h.Device.Type, h.Device.OS, h.Device.OSVersion, h.Device.IsBot, h.Device.IsMobile,
		h.Referrer, h.Path, h.At, h.At)
	if err != nil {
		return res, fmt.Errorf("insert visitor: %w", err)
	}
	affected, err := ins.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("insert visitor rows: %w", err)
	}
	res.Created = affected == 1

	if !res.Created {
		if _, err = tx.ExecContext(ctx, `
			UPDATE visitor_logs
			SET total_visits = total_visits + 1, last_visit = ?
			WHERE ip_address = ?
		`, h.At, h.IP); err != nil {
			return res, fmt.Errorf("touch visitor: %w", err)
		}
	}

	v, err := scanVisitor(tx.QueryRowContext(ctx, `SELECT `+visitorColumns+` FROM visitor_logs WHERE ip_address = ?`, h.IP))
	if err != nil {
		return res, fmt.Errorf("load visitor: %w", err)
	}

	pv := models.PageView{
		VisitorID:   v.ID,
		URL:         h.Path,
		PageTitle:   h.PageTitle,
		Method:      h.Method,
		IPAddress:   h.IP,
		UserAgent:   h.UserAgent,
		Referrer:    h.Referrer,
		SessionKey:  h.SessionKey,
		CountryCode: v.CountryCode,
		DeviceType:  v.DeviceType,
		Timestamp:   h.At,
	}
	pvRes, err := tx.ExecContext(ctx, `
		INSERT INTO page_views (
			visitor_id, url, page_title, method, ip_address, user_agent,
			referrer, session_key, country_code, device_type, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, pv.VisitorID, pv.URL, pv.PageTitle, pv.Method, pv.IPAddress, pv.UserAgent,
		pv.Referrer, pv.SessionKey, pv.CountryCode, pv.DeviceType, pv.Timestamp)
	if err != nil {
		return res, fmt.Errorf("insert page view: %w", err)
	}
	if pv.ID, err = pvRes.LastInsertId(); err != nil {
		return res, fmt.Errorf("page view id: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE visitor_logs SET total_page_views = total_page_views + 1 WHERE id = ?
	`, v.ID); err != nil {
		return res, fmt.Errorf("count page view: %w", err)
	}
	v.TotalPageViews++

	if err = tx.Commit(); err != nil {
		return res, fmt.Errorf("commit record hit: %w", err)
	}
	res.Visitor = v
	res.PageView = pv
	return res, nil
}

func (r *Repo) UpdateGeolocation(ctx context.Context, visitorID int64, g models.Geolocation) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE visitor_logs
		SET country = ?, country_code = ?, city = ?, region = ?, latitude = ?, longitude = ?
		WHERE id = ?
	`, g.Country, g.CountryCode, g.City, g.Region, g.Latitude, g.Longitude, visitorID)
	if err != nil {
		return fmt.Errorf("update geolocation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update geolocation rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update geolocation: visitor %d not found", visitorID)
	}
	return nil
}

func (r *Repo) GetVisitor(ctx context.Context, id int64) (*models.VisitorLog, error) {
	v, err := scanVisitor(r.DB.QueryRowContext(ctx, `SELECT `+visitorColumns+` FROM visitor_logs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get visitor: %w", err)
	}
	return v, nil
}

func (r *Repo) GetVisitorByIP(ctx context.Context, ip string) (*models.VisitorLog, error) {
	v, err := scanVisitor(r.DB.QueryRowContext(ctx, `SELECT `+visitorColumns+` FROM visitor_logs WHERE ip_address = ?`, ip))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get visitor by ip: %w", err)
	}
	return v, nil
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// VisitorFilter narrows ListVisitors. Zero values mean "any".
type VisitorFilter struct {
	DeviceType string
	IsBot      *bool
	IsMobile   *bool
	Country    string
	// Query matches ip, country, city or browser.
	Query  string
	Limit  int
	Offset int
}

type PageViewFilter struct {
	VisitorID   int64
	DeviceType  string
	CountryCode string
	Method      string
	// Query matches url or ip.
	Query  string
	Limit  int
	Offset int
}

type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) search(q string, cols ...string) {
	q = strings.TrimSpace(q)
	if q == "" {
		return
	}
	like := "%" + q + "%"
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " LIKE ?"
		w.args = append(w.args, like)
	}
	w.clauses = append(w.clauses, "("+strings.Join(parts, " OR ")+")")
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (r *Repo) ListVisitors(ctx context.Context, f VisitorFilter) ([]models.VisitorLog, error) {
	var w where
	if f.DeviceType != "" {
		w.add("device_type = ?", f.DeviceType)
	}
	if f.IsBot != nil {
		w.add("is_bot = ?", *f.IsBot)
	}
	if f.IsMobile != nil {
		w.add("is_mobile = ?", *f.IsMobile)
	}
	if f.Country != "" {
		w.add("country = ?", f.Country)
	}
	w.search(f.Query, "ip_address", "country", "city", "browser")

	limit, offset := clampPage(f.Limit, f.Offset)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+visitorColumns+` FROM visitor_logs`+w.String()+
			` ORDER BY last_visit DESC, id DESC LIMIT ? OFFSET ?`,
		append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	defer rows.Close()

	out := make([]models.VisitorLog, 0)
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list visitors rows: %w", err)
	}
	return out, nil
}

func (r *Repo) ListPageViews(ctx context.Context, f PageViewFilter) ([]models.PageView, error) {
	var w where
	if f.VisitorID != 0 {
		w.add("visitor_id = ?", f.VisitorID)
	}
	if f.DeviceType != "" {
		w.add("device_type = ?", f.DeviceType)
	}
	if f.CountryCode != "" {
		w.add("country_code = ?", f.CountryCode)
	}
	if f.Method != "" {
		w.add("method = ?", strings.ToUpper(f.Method))
	}
	w.search(f.Query, "url", "ip_address")

	limit, offset := clampPage(f.Limit, f.Offset)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+pageViewColumns+` FROM page_views`+w.String()+
			` ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`,
		append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list page views: %w", err)
	}
	defer rows.Close()

	out := make([]models.PageView, 0)
	for rows.Next() {
		p, err := scanPageView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page view: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list page views rows: %w", err)
	}
	return out, nil
}

// Stats is the headline numbers shown on the admin dashboard.
type Stats struct {
	Visitors  int `json:"visitors"`
	Bots      int `json:"bots"`
	PageViews int `json:"page_views"`
}

func (r *Repo) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM visitor_logs),
			(SELECT COUNT(*) FROM visitor_logs WHERE is_bot = 1),
			(SELECT COUNT(*) FROM page_views)
	`).Scan(&s.Visitors, &s.Bots, &s.PageViews)
	if err != nil {
		return s, fmt.Errorf("visitor stats: %w", err)
	}
	return s, nil
}
