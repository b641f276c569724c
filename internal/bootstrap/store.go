// Package bootstrap wires the state store backend shared by the API server and the admin CLI.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/repository"
	"github.com/noah-isme/sma-supervision-api/pkg/config"
	"github.com/noah-isme/sma-supervision-api/pkg/database"
	"github.com/noah-isme/sma-supervision-api/pkg/kvstore"
)

// QueryObserver receives Postgres query timings.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// OpenStateStore selects the key-value backend collections persist through. The
// returned func releases the backend and is safe to call once.
func OpenStateStore(ctx context.Context, cfg *config.Config, metrics QueryObserver, logr *zap.Logger) (kvstore.Store, func(), error) {
	switch cfg.State.Backend {
	case config.StateBackendMemory:
		logr.Warn("using in-memory state store; data is lost on restart")
		return kvstore.NewMemory(), func() {}, nil
	case config.StateBackendBadger:
		db, err := kvstore.OpenBadger(cfg.State.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	case config.StateBackendPostgres, "":
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureStateSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repository.NewStateRepository(db, metrics), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown STATE_BACKEND %q", cfg.State.Backend)
	}
}
