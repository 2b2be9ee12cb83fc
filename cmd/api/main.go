package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mononest/backend/auth"
	"github.com/mononest/backend/broker"
	"github.com/mononest/backend/cache"
	"github.com/mononest/backend/config"
	"github.com/mononest/backend/db"
	"github.com/mononest/backend/external"
	"github.com/mononest/backend/logging"
	"github.com/mononest/backend/payment"
	"github.com/mononest/backend/product"
	"github.com/mononest/backend/server"
	"github.com/mononest/backend/user"

	"github.com/go-redis/redis/v7"
	"go.uber.org/zap"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Cannot load configurations: %v\n", err)
	}

	logger, err := logging.New(cfg.Env, Version)
	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}

	// Initialize sentry for error reporting
	if err := logging.InitSentry(cfg.Env, cfg.SentryDSN); err != nil {
		logger.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer logging.Flush()

	// Attach sentry to zap so we can do automatic error capturing
	logger, err = logging.AttachSentry(logger, "api")
	if err != nil {
		log.Fatalf("Cannot attach sentry: %v\n", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Refusing to start",
			zap.Error(err),
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	store, err := openStore(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("Cannot connect to document store",
			zap.String("driver", string(cfg.StoreDriver)),
			zap.Error(err),
		)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			logger.Error("Cannot close document store",
				zap.Error(err),
			)
		}
	}()

	auth, err := auth.New(auth.Options{
		Logger:        logger,
		JWTSigningKey: cfg.JWTSecret,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Auth",
			zap.Error(err),
		)
	}

	var publisher broker.Publisher = broker.Discard{}
	if cfg.AMQPURI != "" {
		amqpBroker, err := broker.NewAMQPBroker(logger, cfg.AMQPURI)
		if err != nil {
			logger.Fatal("Cannot connect to Broker",
				zap.Error(err),
			)
		}
		publisher = amqpBroker
	}
	defer publisher.Close()

	var intentStore payment.IntentStore
	if cfg.RedisURI != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisURI},
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if _, err := rdb.Ping().Result(); err != nil {
			logger.Fatal("Cannot connect to Redis",
				zap.Error(err),
			)
		}
		defer rdb.Close()

		redisStore, err := cache.NewRedisIntentStore(rdb)
		if err != nil {
			logger.Fatal("Cannot initialize intent cache",
				zap.Error(err),
			)
		}
		intentStore = redisStore
	}

	stripeIntents, err := external.NewStripeIntents(external.NewStripeClient(cfg.StripeKey), cfg.PaymentCurrency)
	if err != nil {
		logger.Fatal("Cannot initialize Stripe",
			zap.Error(err),
		)
	}

	productManager, err := product.NewManager(logger, store)
	if err != nil {
		logger.Fatal("Cannot initialize ProductManager",
			zap.Error(err),
		)
	}
	productService, err := product.NewService(product.Options{
		ProductManager: productManager,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Product Service Router",
			zap.Error(err),
		)
	}

	ctx, cancel = context.WithTimeout(context.Background(), time.Second*15)
	userManager, err := user.NewManager(ctx, logger, store)
	cancel()
	if err != nil {
		logger.Fatal("Cannot initialize UserManager",
			zap.Error(err),
		)
	}
	userService, err := user.NewService(user.Options{
		Auth:        auth,
		UserManager: userManager,
		Publisher:   publisher,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize User Service Router",
			zap.Error(err),
		)
	}

	paymentManager, err := payment.NewManager(logger, store)
	if err != nil {
		logger.Fatal("Cannot initialize PaymentManager",
			zap.Error(err),
		)
	}
	paymentService, err := payment.NewService(payment.Options{
		PaymentManager: paymentManager,
		Intents:        stripeIntents,
		IntentStore:    intentStore,
		Publisher:      publisher,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Payment Service Router",
			zap.Error(err),
		)
	}

	rootRouter, err := server.New(server.Options{
		Products:    productService,
		Users:       userService,
		Payments:    paymentService,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize root router",
			zap.Error(err),
		)
	}

	srv := &http.Server{
		Handler:           rootRouter,
		Addr:              cfg.Addr(),
		ReadHeaderTimeout: time.Second * 10,
	}

	go func() {
		logger.Info("API server listening",
			zap.String("addr", srv.Addr),
			zap.String("store", string(cfg.StoreDriver)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("API server stopped",
				zap.Error(err),
			)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	logger.Info("Shutting down API server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second*10)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Unclean shutdown",
			zap.Error(err),
		)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (db.Store, error) {
	switch cfg.StoreDriver {
	case db.DriverPostgres:
		return db.NewPostgres(db.PostgresOptions{
			URI:         cfg.PostgresURI,
			Logger:      logger,
			Collections: []string{product.CollectionName, user.CollectionName, payment.CollectionName},
		})
	case db.DriverMemory:
		logger.Warn("Using the in-memory store, data is lost on exit")
		return db.NewMemory(), nil
	default:
		return db.NewMongo(ctx, db.MongoOptions{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			Logger:   logger,
		})
	}
}
