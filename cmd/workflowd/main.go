package main

import (
	"context"
	"net/http"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	asynqlib "github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	taskq "creatorhub-platform/pkg/asynq"
	"creatorhub-platform/pkg/config"
	"creatorhub-platform/pkg/db"
	"creatorhub-platform/pkg/gateway"
	"creatorhub-platform/pkg/health"
	"creatorhub-platform/pkg/logger"
	"creatorhub-platform/pkg/middleware"
	"creatorhub-platform/pkg/redis"
	"creatorhub-platform/pkg/sequence"
	"creatorhub-platform/services/chat"
	"creatorhub-platform/services/contract"
	"creatorhub-platform/services/creator"
	"creatorhub-platform/services/notification"
	"creatorhub-platform/services/offer"
	"creatorhub-platform/services/payment"
	"creatorhub-platform/services/task"
	"creatorhub-platform/services/timeline"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		gateway.Module,
		taskq.Client,
		taskq.Server,
		health.Module,
		fx.Provide(provideSnowflakeNode),
		creator.Module,
		chat.Module,
		notification.Module,
		contract.Module,
		timeline.Module,
		offer.Module,
		payment.Module,
		task.Module,
		fx.Invoke(
			migrate,
			registerHandlers,
			runOpsServer,
		),
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&creator.Creator{},
		&creator.BankAccount{},
		&chat.ChatRoom{},
		&chat.ChatMessage{},
		&notification.Notification{},
		&contract.Contract{},
		&timeline.Milestone{},
		&offer.Offer{},
		&payment.JobPayment{},
		&payment.Withdrawal{},
		&task.Job{},
	)
}

func registerHandlers(mux *asynqlib.ServeMux, svc *task.Service) {
	mux.HandleFunc(taskq.OfferExpireTask, svc.HandleOfferExpire)
	mux.HandleFunc(taskq.TimelineCheckTask, svc.HandleTimelineCheck)
	mux.HandleFunc(taskq.PaymentBatchTask, svc.HandlePaymentBatch)
	mux.HandleFunc(taskq.WithdrawalBatchTask, svc.HandleWithdrawalBatch)
}

func runOpsServer(lc fx.Lifecycle, cfg *config.Config, hc health.HealthService) {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	r.GET("/healthz", hc.Liveness)
	r.GET("/readyz", hc.Readiness)

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					zap.L().Error("ops server failed", zap.Error(err))
					os.Exit(1)
				}
			}()
			zap.L().Info("ops server started", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
