package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAdminExists   = errors.New("admin already exists")
	ErrAdminNotFound = errors.New("admin not found")
)

type Admin struct {
	ID           string
	Username     string
	PasswordHash string
	TokenVersion int
	CreatedAt    time.Time
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ValidatePassword applies the length rules shared by the API and the CLI.
// bcrypt ignores anything past 72 bytes.
func ValidatePassword(password string) error {
	if len(password) < 8 || len(password) > 72 {
		return errors.New("password must be 8-72 chars")
	}
	return nil
}

func (r *Repo) CreateAdmin(ctx context.Context, username, password string) (*Admin, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 30 {
		return nil, errors.New("username must be 3-30 chars")
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if existing, err := r.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrAdminExists, username)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	a := &Admin{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO admins (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, a.ID, a.Username, a.PasswordHash, a.CreatedAt); err != nil {
		// the unique index still catches races
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return a, nil
}

func (r *Repo) getOne(ctx context.Context, where string, arg any) (*Admin, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, username, password_hash, token_version, created_at
		FROM admins
		WHERE `+where, arg)

	var a Admin
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.TokenVersion, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (*Admin, error) {
	a, err := r.getOne(ctx, "username = ?", strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("get by username: %w", err)
	}
	return a, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Admin, error) {
	a, err := r.getOne(ctx, "id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get by id: %w", err)
	}
	return a, nil
}

func (r *Repo) GetTokenVersion(ctx context.Context, id string) (int, error) {
	var version int
	err := r.DB.QueryRowContext(ctx, `SELECT token_version FROM admins WHERE id = ?`, id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAdminNotFound
		}
		return 0, fmt.Errorf("get token version: %w", err)
	}
	return version, nil
}

// UpdatePassword stores a new hash and bumps the token version, which
// invalidates every token issued before the change.
func (r *Repo) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE admins
		SET password_hash = ?, token_version = token_version + 1
		WHERE id = ?
	`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireOneRow(res, "update password")
}

func (r *Repo) BumpTokenVersion(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE admins
		SET token_version = token_version + 1
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("bump token version: %w", err)
	}
	return requireOneRow(res, "bump token version")
}

func requireOneRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrAdminNotFound)
	}
	return nil
}
