package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/showuphq/showup/libs/auth"
	"github.com/showuphq/showup/libs/config"
	"github.com/showuphq/showup/libs/db"
	"github.com/showuphq/showup/libs/httpx"
	"github.com/showuphq/showup/libs/kafkax"
	otelx "github.com/showuphq/showup/libs/otel"
	"github.com/showuphq/showup/libs/runtime"
	"github.com/showuphq/showup/services/prediction-service/internal/handlers"
	"github.com/showuphq/showup/services/prediction-service/internal/outbox"
	"github.com/showuphq/showup/services/prediction-service/internal/predictor"
	"github.com/showuphq/showup/services/prediction-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "prediction-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	svc := predictor.New(repo, logger, predictor.Config{
		HeldOutRatio: config.Float("HELD_OUT_RATIO", 0),
		Threshold:    config.Float("DECISION_THRESHOLD", 0),
	})

	handler := handlers.NewPredictionHandler(pool, svc, repo, outboxRepo, logger)

	adminKey := auth.NewAdminKey(config.String("ADMIN_API_KEY_HASH", ""))
	if !adminKey.Configured() {
		logger.Warn("admin api key not configured; import and train endpoints are open")
	}
	mux.Handle("/api/v1/appointments/import", adminKey.Middleware(http.HandlerFunc(handler.Import)))
	mux.Handle("/api/v1/model/train", adminKey.Middleware(http.HandlerFunc(handler.Train)))
	mux.HandleFunc("/api/v1/appointments/stats", handler.Stats)

	predictHandler := http.Handler(http.HandlerFunc(handler.Predict))
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("invalid redis url", "err", err)
			panic(err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("PREDICT_RATE_LIMIT", 60),
			time.Minute,
			"showup:predict",
		)
		predictHandler = limiter.Middleware(logger, true)(predictHandler)
	} else {
		limiter := httpx.NewRateLimiter(config.Int("PREDICT_RATE_LIMIT", 60), time.Minute)
		predictHandler = limiter.Middleware()(predictHandler)
	}
	mux.Handle("/api/v1/predictions", predictHandler)

	root := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(10<<20),
	)
	rootHandler := otelhttp.NewHandler(root, "prediction")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           rootHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
