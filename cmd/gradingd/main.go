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

	"github.com/redis/go-redis/v9"

	api "github.com/mind-engage/quizgrade/internal/api/http"
	auth "github.com/mind-engage/quizgrade/internal/auth/middleware"
	"github.com/mind-engage/quizgrade/internal/config"
	"github.com/mind-engage/quizgrade/internal/db"
	"github.com/mind-engage/quizgrade/internal/events"
	"github.com/mind-engage/quizgrade/internal/grading"
	"github.com/mind-engage/quizgrade/internal/logger"
	"github.com/mind-engage/quizgrade/internal/metrics"
	"github.com/mind-engage/quizgrade/internal/oracle"
	"github.com/mind-engage/quizgrade/internal/quiz"
	"github.com/mind-engage/quizgrade/internal/service"
	syncx "github.com/mind-engage/quizgrade/internal/sync"
)

func main() {
	cfg := config.Load()

	lg, err := logger.New(cfg.LogMode, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		lg.Fatal("db open failed", "err", err, "driver", cfg.DBDriver)
	}
	defer dbh.Close()
	store := quiz.NewSQLStore(dbh, cfg.DBDriver)

	// --- Redis (optional: oracle cache + distributed grading lock) ---
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			lg.Fatal("redis ping failed", "addr", cfg.RedisAddr, "err", err)
		}
		defer rdb.Close()
	}

	// --- Oracle ---
	oracleCfg := oracle.Config{
		BaseURL:    cfg.OracleBaseURL,
		APIKey:     cfg.OracleAPIKey,
		Model:      cfg.OracleModel,
		Timeout:    cfg.OracleTimeout,
		MaxRetries: cfg.OracleMaxRetries,
	}
	var gradeOracle grading.Oracle
	if cfg.OracleAPIKey != "" || cfg.Mode == config.ModeOffline {
		client, err := oracle.New(oracleCfg, lg.With("component", "oracle"))
		if err != nil {
			lg.Fatal("oracle client", "err", err)
		}
		gradeOracle = client
		if rdb != nil {
			gradeOracle = oracle.NewCached(client, rdb, cfg.OracleCacheTTL, cfg.OracleModel, lg)
		}
	} else {
		lg.Warn("no oracle configured; open-ended answers will receive the fallback score")
	}

	grader := grading.NewDefaultGrader(gradeOracle,
		grading.WithFallbackFraction(cfg.FallbackFraction),
		grading.WithOracleTimeout(oracleCfg.CallBudget()),
	)
	agg := grading.NewAggregator(grader, grading.WithConcurrency(cfg.GradingConcurrency))

	// --- Events: local event_log, plus AMQP when configured ---
	sinks := events.Fanout{events.LogPublisher{Repo: syncx.NewEventRepo(dbh, cfg.SiteID)}}
	if cfg.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			lg.Fatal("amqp connect failed", "err", err)
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	met := metrics.New()
	opts := []service.Option{
		service.WithLogger(lg.With("component", "grading")),
		service.WithMetrics(met),
		service.WithEvents(sinks),
	}
	if rdb != nil {
		opts = append(opts, service.WithLocker(service.NewRedisLocker(rdb, "")))
	}
	svc := service.New(store, agg, opts...)

	// --- Auth (local JWT) ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)
	if cfg.Mode == config.ModeOnline && cfg.AuthHMACSecret == "dev-secret-change-me" {
		lg.Fatal("AUTH_HMAC_SECRET must be set in online mode")
	}

	h := api.NewRouter(api.Deps{
		Service: svc,
		Auth:    authSvc,
		Login: auth.LoginConfig{
			AdminUser:     cfg.AdminUser,
			AdminPassHash: cfg.AdminPassHash,
			DevLogins:     cfg.DevLogins,
		},
		Metrics:        met,
		DB:             dbh,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.GradingTimeout,
		RequestLogging: true,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("listening", "addr", cfg.HTTPAddr, "mode", string(cfg.Mode), "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("http server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", "err", err)
	}
	lg.Info("stopped")
}
