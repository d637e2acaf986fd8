package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"headcanonhub/internal/visitor"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:       "export {pageviews|visitors}",
	Short:     "Export analytics from the local database as CSV",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"pageviews", "visitors"},
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLocalDB()
		if err != nil {
			return err
		}
		defer db.Close()

		w := cmd.OutOrStdout()
		if exportOut != "" && exportOut != "-" {
			if err := os.MkdirAll(filepath.Dir(exportOut), 0o755); err != nil {
				return err
			}
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		n, err := exportCSV(cmd.Context(), db, args[0], w)
		if err != nil {
			return fmt.Errorf("export %s: %w", args[0], err)
		}
		if exportOut != "" && exportOut != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d %s to %s\n", n, args[0], exportOut)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
}

func exportCSV(ctx context.Context, db *sql.DB, what string, out io.Writer) (int, error) {
	repo := visitor.NewRepo(db)
	w := csv.NewWriter(out)
	var n int
	var err error
	switch what {
	case "pageviews":
		n, err = writePageViews(ctx, repo, w)
	case "visitors":
		n, err = writeVisitors(ctx, repo, w)
	default:
		return 0, fmt.Errorf("unknown export %q", what)
	}
	if err != nil {
		return n, err
	}
	w.Flush()
	return n, w.Error()
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func writePageViews(ctx context.Context, repo *visitor.Repo, w *csv.Writer) (int, error) {
	if err := w.Write([]string{"id", "visitor_id", "timestamp", "method", "url", "page_title", "ip_address", "country_code", "device_type", "referrer", "user_agent"}); err != nil {
		return 0, err
	}
	n := 0
	for offset := 0; ; offset += visitor.MaxLimit {
		items, err := repo.ListPageViews(ctx, visitor.PageViewFilter{Limit: visitor.MaxLimit, Offset: offset})
		if err != nil {
			return n, err
		}
		for _, p := range items {
			if err := w.Write([]string{
				strconv.FormatInt(p.ID, 10),
				strconv.FormatInt(p.VisitorID, 10),
				ts(p.Timestamp),
				p.Method,
				p.URL,
				p.PageTitle,
				p.IPAddress,
				p.CountryCode,
				p.DeviceType,
				p.Referrer,
				p.UserAgent,
			}); err != nil {
				return n, err
			}
			n++
		}
		if len(items) < visitor.MaxLimit {
			return n, nil
		}
	}
}

func writeVisitors(ctx context.Context, repo *visitor.Repo, w *csv.Writer) (int, error) {
	if err := w.Write([]string{"id", "ip_address", "country", "country_code", "city", "region", "device_type", "browser", "browser_version", "os", "os_version", "is_bot", "is_mobile", "first_visit", "last_visit", "total_visits", "total_page_views", "landing_page", "referrer"}); err != nil {
		return 0, err
	}
	n := 0
	for offset := 0; ; offset += visitor.MaxLimit {
		items, err := repo.ListVisitors(ctx, visitor.VisitorFilter{Limit: visitor.MaxLimit, Offset: offset})
		if err != nil {
			return n, err
		}
		for _, v := range items {
			if err := w.Write([]string{
				strconv.FormatInt(v.ID, 10),
				v.IPAddress,
				v.Country,
				v.CountryCode,
				v.City,
				v.Region,
				v.DeviceType,
				v.Browser,
				v.BrowserVersion,
				v.OS,
				v.OSVersion,
				strconv.FormatBool(v.IsBot),
				strconv.FormatBool(v.IsMobile),
				ts(v.FirstVisit),
				ts(v.LastVisit),
				strconv.Itoa(v.TotalVisits),
				strconv.Itoa(v.TotalPageViews),
				v.LandingPage,
				v.Referrer,
			}); err != nil {
				return n, err
			}
			n++
		}
		if len(items) < visitor.MaxLimit {
			return n, nil
		}
	}
}
