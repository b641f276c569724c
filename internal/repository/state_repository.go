package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
)

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// StateRepository stores collection values in the app_state table.
type StateRepository struct {
	db      *sqlx.DB
	metrics queryObserver
}

// NewStateRepository constructs the repository. metrics may be nil.
func NewStateRepository(db *sqlx.DB, metrics queryObserver) *StateRepository {
	return &StateRepository{db: db, metrics: metrics}
}

const upsertStateQuery = `INSERT INTO app_state (key, value, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

// Get returns the raw value for key and whether it exists.
func (r *StateRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	defer r.observe("state_get", time.Now())
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM app_state WHERE key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get state %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// Set upserts a single value.
func (r *StateRepository) Set(ctx context.Context, key string, value []byte) error {
	defer r.observe("state_set", time.Now())
	if _, err := r.db.ExecContext(ctx, upsertStateQuery, key, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Missing keys are not an error.
func (r *StateRepository) Remove(ctx context.Context, key string) error {
	defer r.observe("state_remove", time.Now())
	if _, err := r.db.ExecContext(ctx, `DELETE FROM app_state WHERE key = $1`, key); err != nil {
		return fmt.Errorf("remove state %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys in ascending order.
func (r *StateRepository) Keys(ctx context.Context) ([]string, error) {
	defer r.observe("state_keys", time.Now())
	var keys []string
	if err := r.db.SelectContext(ctx, &keys, `SELECT key FROM app_state ORDER BY key ASC`); err != nil {
		return nil, fmt.Errorf("list state keys: %w", err)
	}
	return keys, nil
}

// SetMany upserts every pair inside one transaction.
func (r *StateRepository) SetMany(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	defer r.observe("state_set_many", time.Now())

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin state tx: %w", err)
	}
	now := time.Now().UTC()
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, upsertStateQuery, key, string(values[key]), now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set state %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state tx: %w", err)
	}
	return nil
}

func (r *StateRepository) observe(label string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(label, time.Since(start))
	}
}
