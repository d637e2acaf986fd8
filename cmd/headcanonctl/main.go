package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"headcanonhub/internal/logging"
	"headcanonhub/pkg/database"
	"headcanonhub/pkg/utils"
)

const defaultBaseURL = "http://localhost:8080"

var (
	baseURL   string
	tokenPath string
	dbPath    string
	timeout   time.Duration
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "headcanonctl",
	Short: "Headcanon Generator command line",
	Long: `Generate headcanons offline, manage admin accounts and inspect
visitor analytics of a running server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logging.Init(logging.Config{Level: level, Format: "console"})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "api", defaultBaseURL, "server base URL")
	rootCmd.PersistentFlags().StringVar(&tokenPath, "token", defaultTokenPath(), "admin token file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path for local commands (default from config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(generateCmd, shipCmd, tonesCmd, fandomsCmd)
	rootCmd.AddCommand(adminCmd, loginCmd, logoutCmd)
	rootCmd.AddCommand(visitorsCmd, exportCmd, liveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openLocalDB opens the same database the server uses, honouring --db.
func openLocalDB() (*sql.DB, error) {
	path := dbPath
	if path == "" {
		cfg, err := utils.LoadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Database.Path
	}
	db, err := database.Open(database.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
