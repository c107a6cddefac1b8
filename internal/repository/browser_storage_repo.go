package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the subset of pgxpool.Pool the repository needs.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BrowserStorageRepository is the durable scope: one row per
// (browser context, key).
type BrowserStorageRepository struct {
	pool querier
}

func NewBrowserStorageRepository(pool querier) *BrowserStorageRepository {
	return &BrowserStorageRepository{pool: pool}
}

func (r *BrowserStorageRepository) Get(ctx context.Context, contextID string, key string) (string, bool, error) {
	if err := validateKey(contextID, key); err != nil {
		return "", false, err
	}

	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM browser_storage WHERE context_id = $1 AND key = $2`,
		contextID, key).Scan(&value)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get browser storage %q: %w", key, err)
	}
	return value, true, nil
}

func (r *BrowserStorageRepository) Set(ctx context.Context, contextID string, key string, value string) error {
	if err := validateKey(contextID, key); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO browser_storage (context_id, key, value, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (context_id, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		contextID, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set browser storage %q: %w", key, err)
	}
	return nil
}

func (r *BrowserStorageRepository) Delete(ctx context.Context, contextID string, key string) error {
	if err := validateKey(contextID, key); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx,
		`DELETE FROM browser_storage WHERE context_id = $1 AND key = $2`, contextID, key)
	if err != nil {
		return fmt.Errorf("delete browser storage %q: %w", key, err)
	}
	return nil
}

// CleanStale removes rows not written since the cutoff.
func (r *BrowserStorageRepository) CleanStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := r.pool.Exec(ctx, `DELETE FROM browser_storage WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clean stale browser storage: %w", err)
	}
	return tag.RowsAffected(), nil
}

// StartCleanupTicker runs CleanStale every interval until ctx is done.
func (r *BrowserStorageRepository) StartCleanupTicker(ctx context.Context, interval time.Duration, retention time.Duration, onError func(error)) {
	if interval <= 0 || retention <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.CleanStale(ctx, retention); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}

func validateKey(contextID string, key string) error {
	if strings.TrimSpace(contextID) == "" {
		return fmt.Errorf("context id is required")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}
