package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"ugc-marketplace/pkg/config"
	"ugc-marketplace/pkg/db"
	"ugc-marketplace/pkg/featureflags"
	"ugc-marketplace/pkg/gen"
	"ugc-marketplace/pkg/health"
	"ugc-marketplace/pkg/kafka"
	"ugc-marketplace/pkg/logger"
	"ugc-marketplace/pkg/minio"
	"ugc-marketplace/pkg/otelcol"
	"ugc-marketplace/pkg/profiling"
	"ugc-marketplace/pkg/redis"
	"ugc-marketplace/pkg/sequence"
	"ugc-marketplace/pkg/server"
	pkgtask "ugc-marketplace/pkg/task"
	"ugc-marketplace/services/analytics"
	"ugc-marketplace/services/application"
	"ugc-marketplace/services/campaign"
	"ugc-marketplace/services/dashboard"
	"ugc-marketplace/services/ledger"
	"ugc-marketplace/services/migration"
	"ugc-marketplace/services/reconcile"
	"ugc-marketplace/services/socialmetrics"
	"ugc-marketplace/services/task"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading environment variables directly")
	}

	opts := []fx.Option{
		fx.Provide(config.NewVaultClient),
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		migration.Module,
		redis.Module,
		sequence.Module,
		kafka.Module,
		minio.Client,
		featureflags.Module,
		pkgtask.Client,
		pkgtask.Server,
		gen.Module,

		campaign.Module,
		application.Module,
		ledger.Module,
		analytics.Module,
		socialmetrics.Module,
		reconcile.Module,
		task.Module,
		task.Worker,
		task.Schedule,

		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		health.Module,
		dashboard.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
