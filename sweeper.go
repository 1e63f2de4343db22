// Command sweeper runs one idle and one expired session sweep and exits.
// It is meant to be triggered periodically by an external scheduler (cron).
package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/avolkov/authgate/internal/service"
	"github.com/avolkov/authgate/internal/storage/postgres"
	"github.com/avolkov/authgate/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()

	db, dbCleanup, err := util.NewDBConnection(logger)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	defer dbCleanup()

	store := postgres.NewStorage(db)
	cleaner := service.NewSessionCleaner(store, util.NewSessionConfig(), logger)

	idle, err := cleaner.SweepIdle(ctx)
	if err != nil {
		logger.Fatalf("idle sweep: %v", err)
	}
	expired, err := cleaner.SweepExpired(ctx)
	if err != nil {
		logger.Fatalf("expired sweep: %v", err)
	}

	logger.Infof("sweep finished: %d idle, %d expired sessions removed", len(idle), len(expired))
}
