package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/config"
	"github.com/iliyamo/directorio-lugares/internal/database"
	"github.com/iliyamo/directorio-lugares/internal/gateway"
	"github.com/iliyamo/directorio-lugares/internal/handler"
	"github.com/iliyamo/directorio-lugares/internal/logger"
	"github.com/iliyamo/directorio-lugares/internal/queue"
	"github.com/iliyamo/directorio-lugares/internal/repository"
	"github.com/iliyamo/directorio-lugares/internal/router"
	"github.com/iliyamo/directorio-lugares/internal/service"
	"github.com/iliyamo/directorio-lugares/internal/storage"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log, err := logger.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()
		return serve(cmd.Context(), cfg, log)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if migrateOnStart {
		if err := database.MigrateUp(cfg); err != nil {
			return err
		}
		log.Info("migrations applied")
	}
	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting and cache disabled")
	} else {
		defer rdb.Close()
	}

	var store storage.ObjectStorage
	if cfg.Minio.Endpoint != "" {
		mc, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return fmt.Errorf("init minio: %w", err)
		}
		bctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = mc.EnsureBucket(bctx)
		cancel()
		if err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}
		store = mc
	} else {
		log.Warn("MINIO_ENDPOINT not set, image uploads disabled")
	}

	events := queue.NewPublisher(cfg.RabbitMQ, log)
	gw := gateway.NewStripe(cfg.Stripe)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	places := repository.NewPlaceRepo(db)
	categories := repository.NewCategoryRepo(db)
	images := repository.NewImageRepo(db)
	comments := repository.NewCommentRepo(db)
	favorites := repository.NewFavoriteRepo(db)
	visits := repository.NewVisitRepo(db)
	payments := repository.NewPaymentRepo(db)
	methods := repository.NewMethodRepo(db)

	paySvc := service.NewPaymentService(gw, payments, places, users, methods, events, cfg.Stripe, log.Named("payment"))
	cardSvc := service.NewCardService(gw, users, log.Named("card"))
	modSvc := service.NewModerationService(users, places, events, log.Named("moderation"))
	statsSvc := service.NewStatsService(visits, places, users)

	h := router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, users, tokens, log),
		Place:    handler.NewPlaceHandler(places, categories, images, store, log),
		Category: handler.NewCategoryHandler(categories, places, methods, log),
		Comment:  handler.NewCommentHandler(comments, places, log),
		Favorite: handler.NewFavoriteHandler(favorites, places, log),
		Payment:  handler.NewPaymentHandler(paySvc, cardSvc, log),
		Admin:    handler.NewAdminHandler(modSvc, statsSvc, places, log),
		Stats:    handler.NewStatsHandler(statsSvc, log),
	}
	e := router.New(db, h, router.Deps{
		JWTSecret:        cfg.JWTSecret,
		Sessions:         users,
		Redis:            rdb,
		RateLimit:        config.LoadRateLimitConfig("RATE_LIMIT", 60),
		PaymentRateLimit: config.LoadRateLimitConfig("PAYMENT_RATE_LIMIT", 5),
		Cache:            config.LoadCacheConfig(),
		Log:              log.Named("http"),
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}
