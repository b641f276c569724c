package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/bootstrap"
	"github.com/noah-isme/sma-supervision-api/internal/service"
	"github.com/noah-isme/sma-supervision-api/pkg/config"
	"github.com/noah-isme/sma-supervision-api/pkg/kvstore"
	"github.com/noah-isme/sma-supervision-api/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// env is what every subcommand needs once the configuration is loaded.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	store  kvstore.Store
	state  *service.StateService
	close  func()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, closeStore, err := bootstrap.OpenStateStore(ctx, cfg, service.NewMetricsService(), logr)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	state := service.NewStateService(store, cfg.State.Schools, logr.Named("state"))
	if err := state.Load(ctx); err != nil {
		closeStore()
		return nil, fmt.Errorf("load collections: %w", err)
	}

	return &env{
		cfg:    cfg,
		logger: logr,
		store:  store,
		state:  state,
		close: func() {
			closeStore()
			_ = logr.Sync()
		},
	}, nil
}

func (e *env) backups() *service.BackupService {
	return service.NewBackupService(e.store, e.state, e.logger.Named("backups"), service.BackupConfig{HistorySlots: e.cfg.Backups.HistorySlots})
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "supervisionctl",
		Short:        "Administrative tasks for the supervision state store",
		SilenceUsage: true,
	}
	root.AddCommand(newBackupCmd(), newMigrateCmd())
	return root
}
