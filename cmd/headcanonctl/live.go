package main

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"headcanonhub/internal/live"
)

var livePretty bool

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Tail page views on a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := readToken(tokenPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(cmd.ErrOrStderr(), "connected, Ctrl+C to stop")
		return live.Subscribe(cmd.Context(), baseURL+"/admin/live", token, func(msg []byte) {
			if livePretty {
				var buf bytes.Buffer
				if err := json.Indent(&buf, msg, "", "  "); err == nil {
					msg = buf.Bytes()
				}
			}
			fmt.Fprintln(out, string(msg))
		})
	},
}

func init() {
	liveCmd.Flags().BoolVar(&livePretty, "pretty", false, "pretty-print events")
}
