package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"headcanonhub/pkg/models"
)

var (
	visLimit  int
	visBots   string
	visDevice string
	visQuery  string
)

var visitorsCmd = &cobra.Command{
	Use:   "visitors",
	Short: "Show the most recent visitors of a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := readToken(tokenPath)
		if err != nil {
			return err
		}

		q := url.Values{}
		q.Set("limit", strconv.Itoa(visLimit))
		if visBots != "" {
			q.Set("is_bot", visBots)
		}
		if visDevice != "" {
			q.Set("device_type", visDevice)
		}
		if visQuery != "" {
			q.Set("q", visQuery)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		var resp struct {
			Items []models.VisitorLog `json:"items"`
		}
		if err := doJSON(ctx, http.MethodGet, baseURL+"/admin/visitors?"+q.Encode(), token, nil, &resp); err != nil {
			return err
		}
		return printVisitors(cmd.OutOrStdout(), resp.Items)
	},
}

func init() {
	visitorsCmd.Flags().IntVarP(&visLimit, "limit", "n", 20, "number of visitors")
	visitorsCmd.Flags().StringVar(&visBots, "bots", "", "filter bots: true or false")
	visitorsCmd.Flags().StringVar(&visDevice, "device", "", "filter device type: Mobile, Tablet, Desktop, Unknown")
	visitorsCmd.Flags().StringVarP(&visQuery, "query", "q", "", "search ip, country, city or browser")
}

func printVisitors(w io.Writer, items []models.VisitorLog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tIP\tCOUNTRY\tDEVICE\tBROWSER\tBOT\tVISITS\tVIEWS\tLAST VISIT")
	for _, v := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\t%d\t%d\t%s\n",
			v.ID, v.IPAddress, dash(v.CountryCode), dash(v.DeviceType), dash(v.Browser),
			v.IsBot, v.TotalVisits, v.TotalPageViews, v.LastVisit.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
