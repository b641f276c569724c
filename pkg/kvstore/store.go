// Package kvstore defines the key-value port collections are persisted through,
// plus in-process and embedded implementations.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUndecodable marks a stored value that is not valid JSON for its destination.
var ErrUndecodable = errors.New("undecodable value")

// Store is the persistence port. Values are opaque bytes, JSON by convention.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	// SetMany writes every pair or none of them.
	SetMany(ctx context.Context, values map[string][]byte) error
}

// LoadJSON decodes the value stored under key into dest. It reports false and
// leaves dest untouched when the key is absent, so callers pre-fill defaults.
func LoadJSON(ctx context.Context, store Store, key string, dest interface{}) (bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w: %w", key, ErrUndecodable, err)
	}
	return true, nil
}

// SaveJSON encodes value and stores it under key.
func SaveJSON(ctx context.Context, store Store, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := store.Set(ctx, key, payload); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
