package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"headcanonhub/internal/auth"
)

type tokenData struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

var (
	adminUsername string
	adminPassword string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts in the local database",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := adminPassword
		if password == "" {
			password = os.Getenv("HEADCANON_ADMIN_PASSWORD")
		}
		if adminUsername == "" || password == "" {
			return errors.New("--username and --password (or HEADCANON_ADMIN_PASSWORD) are required")
		}

		db, err := openLocalDB()
		if err != nil {
			return err
		}
		defer db.Close()

		a, err := auth.NewRepo(db).CreateAdmin(cmd.Context(), adminUsername, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", a.Username, a.ID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to a running server and store the admin token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if adminUsername == "" || adminPassword == "" {
			return errors.New("--username and --password are required")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		var resp tokenData
		payload := map[string]string{"username": adminUsername, "password": adminPassword}
		if err := doJSON(ctx, http.MethodPost, baseURL+"/admin/login", "", payload, &resp); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		if err := saveToken(tokenPath, resp); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged in")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the stored admin token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := readToken(tokenPath)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		if err := doJSON(ctx, http.MethodPost, baseURL+"/admin/logout", token, nil, nil); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}
		if err := os.Remove(tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}

func init() {
	adminCreateCmd.Flags().StringVar(&adminUsername, "username", "", "admin username")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "admin password")
	adminCmd.AddCommand(adminCreateCmd)

	loginCmd.Flags().StringVar(&adminUsername, "username", "", "admin username")
	loginCmd.Flags().StringVar(&adminPassword, "password", "", "admin password")
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.headcanon-token.json"
	}
	return filepath.Join(home, ".headcanon", "token.json")
}

func saveToken(path string, t tokenData) error {
	if t.Token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errors.New("not logged in, run `headcanonctl login` first")
		}
		return "", err
	}
	var t tokenData
	if err := json.Unmarshal(data, &t); err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	if t.Token == "" {
		return "", errors.New("token file is empty")
	}
	return t.Token, nil
}
