package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists revoked session ids in the session_revocations table.
type PostgresStore struct {
	db       *sql.DB
	clock    Clock
	observer LatencyObserver
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresClock sets the clock used for expiry.
func WithPostgresClock(clock Clock) PostgresOption {
	return func(s *PostgresStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPostgresObserver records lookup latency.
func WithPostgresObserver(o LatencyObserver) PostgresOption {
	return func(s *PostgresStore) {
		s.observer = o
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RevokeToken denies jti for ttl. Revoking twice keeps the later expiry.
func (s *PostgresStore) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	expiresAt := s.clock().Add(ttl)
	query := `
		INSERT INTO session_revocations (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET
			expires_at = GREATEST(session_revocations.expires_at, EXCLUDED.expires_at)
	`
	if _, err := s.db.ExecContext(ctx, query, jti, expiresAt); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether jti is denied and the denial has not lapsed.
func (s *PostgresStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	start := time.Now()
	defer func() {
		if s.observer != nil {
			s.observer.ObserveRevocationCheck(time.Since(start))
		}
	}()

	if jti == "" {
		return false, nil
	}
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, `SELECT expires_at FROM session_revocations WHERE jti = $1`, jti).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check session revocation: %w", err)
	}
	return s.clock().Before(expiresAt), nil
}

// PurgeExpired deletes denials whose credential has expired anyway.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_revocations WHERE expires_at <= $1`, s.clock())
	if err != nil {
		return 0, fmt.Errorf("purge session revocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge session revocations: %w", err)
	}
	return n, nil
}
