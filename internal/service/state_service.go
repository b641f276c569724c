package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/kvstore"
)

// stateStore is the collections workspace consumed by domain services.
type stateStore interface {
	Snapshot() (*models.Collections, uint64)
	Mutate(ctx context.Context, fn func(c *models.Collections) error) error
}

// StateService holds the in-process copy of every collection. Snapshots are
// shared and must be treated as read-only; writes go through Mutate, which
// serialises writers and persists only the collections that changed.
type StateService struct {
	store          kvstore.Store
	logger         *zap.Logger
	defaultSchools []string

	mu       sync.RWMutex
	current  *models.Collections
	encoded  map[string][]byte
	digest   string
	revision uint64
	// unreadable holds keys whose stored value failed to decode at load.
	unreadable map[string]struct{}
}

// NewStateService constructs the workspace. Call Load before use.
func NewStateService(store kvstore.Store, defaultSchools []string, logger *zap.Logger) *StateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateService{
		store:          store,
		logger:         logger,
		defaultSchools: defaultSchools,
		current:        &models.Collections{},
		encoded:        map[string][]byte{},
	}
}

// Store exposes the underlying key-value port for raw access (backups, options).
func (s *StateService) Store() kvstore.Store {
	return s.store
}

// Load reads every collection, seeds the school list when empty and applies the
// legacy school-tag migration once. Collections touched by either are written back.
func (s *StateService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := &models.Collections{}
	fields := loaded.Fields()
	unreadable := make(map[string]struct{})
	for _, key := range models.CollectionKeys {
		_, err := kvstore.LoadJSON(ctx, s.store, key, fields[key])
		if err == nil {
			continue
		}
		if !errors.Is(err, kvstore.ErrUndecodable) {
			return fmt.Errorf("load collections: %w", err)
		}
		// a partially decoded slice is dropped; the stored bytes stay untouched
		_ = json.Unmarshal([]byte("null"), fields[key])
		unreadable[key] = struct{}{}
		s.logger.Error("collection could not be decoded, serving it empty until restored",
			zap.String("key", key), zap.Error(err))
	}
	baseline, err := encodeCollections(loaded)
	if err != nil {
		return err
	}

	if len(loaded.Schools) == 0 && len(s.defaultSchools) > 0 {
		loaded.Schools = append([]string(nil), s.defaultSchools...)
	}
	if migrated := MigrateLegacySchoolTags(loaded); migrated > 0 {
		s.logger.Info("tagged legacy records with default school",
			zap.Int("records", migrated), zap.String("school", loaded.DefaultSchool()))
	}

	encoded, err := encodeCollections(loaded)
	if err != nil {
		return err
	}
	writable := make(map[string][]byte, len(encoded))
	for key, value := range encoded {
		if _, broken := unreadable[key]; !broken {
			writable[key] = value
		}
	}
	previous := s.unreadable
	s.unreadable = unreadable
	if err := s.persistChanged(ctx, baseline, writable); err != nil {
		s.unreadable = previous
		return err
	}

	s.current = loaded
	s.encoded = encoded
	s.digest = digestOf(encoded)
	s.revision++
	return nil
}

// Unreadable lists collections that failed to decode at the last load, sorted.
func (s *StateService) Unreadable() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.unreadable))
	for key := range s.unreadable {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Reload discards the in-process copy and reads the store again.
func (s *StateService) Reload(ctx context.Context) error {
	return s.Load(ctx)
}

// Snapshot returns the current collections and their revision.
func (s *StateService) Snapshot() (*models.Collections, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.revision
}

// Revision returns the mutation counter.
func (s *StateService) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Digest identifies the persisted content of every collection. Unlike the
// revision it is equal across restarts and instances that hold the same data.
func (s *StateService) Digest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.digest
}

// SnapshotWithDigest returns the current collections with their revision and digest, read together.
func (s *StateService) SnapshotWithDigest() (*models.Collections, uint64, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.revision, s.digest
}

// Mutate applies fn to a private copy of the collections. When fn succeeds the
// changed collections are persisted and the copy becomes current. Last write wins.
func (s *StateService) Mutate(ctx context.Context, fn func(c *models.Collections) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working, err := decodeCollections(s.encoded)
	if err != nil {
		return err
	}
	if err := fn(working); err != nil {
		return err
	}
	encoded, err := encodeCollections(working)
	if err != nil {
		return err
	}
	changed, err := s.persistChangedCount(ctx, s.encoded, encoded)
	if err != nil {
		return err
	}
	if changed == 0 {
		return nil
	}
	s.current = working
	s.encoded = encoded
	s.digest = digestOf(encoded)
	s.revision++
	return nil
}

func (s *StateService) persistChanged(ctx context.Context, before, after map[string][]byte) error {
	_, err := s.persistChangedCount(ctx, before, after)
	return err
}

func (s *StateService) persistChangedCount(ctx context.Context, before, after map[string][]byte) (int, error) {
	changed := make(map[string][]byte)
	for key, value := range after {
		if !bytes.Equal(before[key], value) {
			changed[key] = value
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}
	for key := range changed {
		if _, ok := s.unreadable[key]; ok {
			return 0, appErrors.Clone(appErrors.ErrConflict,
				"collection "+key+" could not be read; restore a backup before editing it")
		}
	}
	if err := s.store.SetMany(ctx, changed); err != nil {
		return 0, fmt.Errorf("persist collections: %w", err)
	}
	s.logger.Debug("collections persisted", zap.Int("keys", len(changed)))
	return len(changed), nil
}

func encodeCollections(c *models.Collections) (map[string][]byte, error) {
	out := make(map[string][]byte, len(models.CollectionKeys))
	for key, field := range c.Fields() {
		payload, err := json.Marshal(field)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		out[key] = payload
	}
	return out, nil
}

func decodeCollections(encoded map[string][]byte) (*models.Collections, error) {
	c := &models.Collections{}
	for key, field := range c.Fields() {
		raw, ok := encoded[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, field); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	return c, nil
}

func digestOf(encoded map[string][]byte) string {
	keys := make([]string, 0, len(encoded))
	for key := range encoded {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, key := range keys {
		fmt.Fprintf(h, "%d:%s%d:", len(key), key, len(encoded[key]))
		h.Write(encoded[key])
	}
	return hex.EncodeToString(h.Sum(nil))
}
