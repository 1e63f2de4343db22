package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/avolkov/authgate/internal/api"
	"github.com/avolkov/authgate/internal/controller"
	"github.com/avolkov/authgate/internal/migrations"
	"github.com/avolkov/authgate/internal/service"
	"github.com/avolkov/authgate/internal/storage/postgres"
	"github.com/avolkov/authgate/internal/storage/redis"
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
	if err := migrations.RunMigrations(db, logger, "./internal/migrations"); err != nil {
		logger.Fatal(zap.Error(err))
	}

	redisClient, redisCleanup, err := util.NewRedisClient(logger, util.NewRedisConfig())
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	store := postgres.NewStorage(db)
	blacklist := redis.NewTokenBlacklist(redisClient)
	cleanupFuncs := []func(){dbCleanup, redisCleanup}

	tokenCfg := util.NewTokenConfig()
	sessionCfg := util.NewSessionConfig()

	tokenService := service.NewTokenService(tokenCfg, blacklist)
	sessionManager := service.NewSessionManager(store, sessionCfg, logger)
	authService := service.NewAuthService(store, logger)

	ctrl := controller.NewController(authService, sessionManager, tokenService, tokenCfg, sessionCfg, logger)

	apiServer := api.NewAPI(ctrl, util.NewServerConfig(), logger, cleanupFuncs)
	apiServer.Run(ctx)
}
