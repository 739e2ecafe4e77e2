package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/target/mmk-console/internal/data/pgxutil"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/ports"
)

// SessionRepo persists session records in the console_sessions table.
// Expired rows are invisible to Load and removed by PurgeExpired.
type SessionRepo struct {
	DB   *sql.DB
	Time TimeProvider
}

// NewSessionRepo creates a new SessionRepo using wall-clock time.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{DB: db, Time: &RealTimeProvider{}}
}

type sessionRow struct {
	AccessToken     string `db:"access_token"`
	CurrentUserJSON string `db:"current_user_json"`
}

// Save upserts both fields in a single statement.
func (r *SessionRepo) Save(ctx context.Context, key string, rec ports.SessionRecord, ttl time.Duration) error {
	if key == "" {
		return apperrors.ValidationField("session_key", "session key cannot be empty")
	}

	var expiresAt *time.Time
	if ttl > 0 {
		t := r.Time.Now().Add(ttl).UTC()
		expiresAt = &t
	}

	const q = `
		INSERT INTO console_sessions (session_key, access_token, current_user_json, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (session_key) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    current_user_json = EXCLUDED.current_user_json,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = now()`
	if _, err := r.DB.ExecContext(ctx, q, key, rec.AccessToken, rec.CurrentUser, expiresAt); err != nil {
		return fmt.Errorf("save session: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Update rewrites a live row. Missing or expired rows yield ports.ErrSessionNotFound.
func (r *SessionRepo) Update(ctx context.Context, key string, rec ports.SessionRecord, ttl time.Duration) error {
	if key == "" {
		return ports.ErrSessionNotFound
	}

	now := r.Time.Now().UTC()
	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}

	const q = `
		UPDATE console_sessions
		SET access_token = $2,
		    current_user_json = $3,
		    expires_at = $4,
		    updated_at = now()
		WHERE session_key = $1 AND (expires_at IS NULL OR expires_at > $5)`
	res, err := r.DB.ExecContext(ctx, q, key, rec.AccessToken, rec.CurrentUser, expiresAt, now)
	if err != nil {
		return fmt.Errorf("update session: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if n == 0 {
		return ports.ErrSessionNotFound
	}
	return nil
}

// Load returns ports.ErrSessionNotFound for missing or expired rows.
func (r *SessionRepo) Load(ctx context.Context, key string) (ports.SessionRecord, error) {
	if key == "" {
		return ports.SessionRecord{}, ports.ErrSessionNotFound
	}

	const q = `
		SELECT access_token, current_user_json
		FROM console_sessions
		WHERE session_key = $1 AND (expires_at IS NULL OR expires_at > $2)`

	var row sessionRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, key, r.Time.Now().UTC())
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[sessionRow])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.SessionRecord{}, ports.ErrSessionNotFound
	}
	if err != nil {
		return ports.SessionRecord{}, fmt.Errorf("load session: %w", apperrors.MapDBError(err))
	}

	return ports.SessionRecord{AccessToken: row.AccessToken, CurrentUser: row.CurrentUserJSON}, nil
}

// Delete removes the row. Missing keys are not an error.
func (r *SessionRepo) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM console_sessions WHERE session_key = $1`, key); err != nil {
		return fmt.Errorf("delete session: %w", apperrors.MapDBError(err))
	}
	return nil
}

// PurgeExpired deletes rows whose expiry has passed and returns how many were removed.
func (r *SessionRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM console_sessions WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		r.Time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge sessions rows affected: %w", err)
	}
	return n, nil
}
