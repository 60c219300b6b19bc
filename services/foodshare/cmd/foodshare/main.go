package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"foodshare/internal/metrics"
	"foodshare/internal/ratelimit"
	"foodshare/internal/util"
	"foodshare/pkg/events"
	"foodshare/pkg/store"
	"foodshare/services/foodshare/internal/app"
	"foodshare/services/foodshare/internal/config"
	"foodshare/services/foodshare/internal/server"
)

const rateWindow = time.Minute

func main() {
	path := os.Getenv("FOODSHARE_CONFIG")
	if path == "" {
		path = config.ConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel, cfg.LogFormat)

	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session ttl: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
	}

	var (
		db    store.Store
		ready func(context.Context) error
	)
	switch cfg.DatabaseDriver {
	case config.DriverMemory:
		db = store.NewMemoryStore()
	default:
		gs, err := store.NewGormStore(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer gs.Close()
		db, ready = gs, gs.Ping
	}

	sessions, err := newSessionStore(cfg, rdb, sessionTTL)
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}

	publisher, err := newPublisher(cfg, rdb)
	if err != nil {
		log.Fatalf("failed to init events publisher: %v", err)
	}
	defer publisher.Close()

	loginLimiter, err := newLimiter(rdb, "foodshare:ratelimit:login", cfg.LoginRateLimitPerMinute)
	if err != nil {
		log.Fatalf("failed to init login limiter: %v", err)
	}
	signupLimiter, err := newLimiter(rdb, "foodshare:ratelimit:signup", cfg.SignupRateLimitPerMinute)
	if err != nil {
		log.Fatalf("failed to init signup limiter: %v", err)
	}

	m := metrics.New()
	appCore, err := app.New(app.Config{
		Store:    db,
		Sessions: sessions,
		Events:   publisher,
		Metrics:  m,
		Fanout:   cfg.EnrichConcurrency,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                appCore,
		Metrics:            m,
		LoginLimiter:       loginLimiter,
		SignupLimiter:      signupLimiter,
		TrustedProxies:     trusted,
		CookieName:         cfg.CookieName,
		CookieSecure:       cfg.CookieSecure,
		SessionTTL:         sessionTTL,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Ready:              ready,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("foodshare server listening", "addr", addr,
			"database", cfg.DatabaseDriver,
			"sessions", cfg.SessionStore,
			"events", cfg.EventsBackend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	slog.Info("foodshare server stopped")
}

func newSessionStore(cfg config.FileConfig, rdb *redis.Client, ttl time.Duration) (store.SessionStore, error) {
	switch cfg.SessionStore {
	case config.SessionsRedis:
		if rdb == nil {
			return nil, errors.New("redis session store requires redisAddr")
		}
		return store.NewRedisSessionStore(rdb, ttl), nil
	case config.SessionsJWT:
		var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
		if rdb != nil {
			revoker = store.NewRedisTokenRevoker(rdb)
		}
		return store.NewJWTSessionStore(cfg.JWTSecret, ttl, revoker)
	default:
		return store.NewMemorySessionStore(ttl), nil
	}
}

func newPublisher(cfg config.FileConfig, rdb *redis.Client) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsRedis:
		if rdb == nil {
			return nil, errors.New("redis events backend requires redisAddr")
		}
		return events.NewRedisStreamPublisher(rdb, events.RedisStreamConfig{Stream: cfg.EventsStream})
	case config.EventsAMQP:
		return events.NewAMQPPublisher(events.AMQPConfig{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange})
	default:
		return events.Nop{}, nil
	}
}

// newLimiter shares counters through Redis when available so limits hold
// across replicas.
func newLimiter(rdb *redis.Client, prefix string, perMinute int) (ratelimit.Limiter, error) {
	if rdb != nil {
		return ratelimit.NewRedisFixedWindowLimiter(rdb, prefix, perMinute, rateWindow)
	}
	return ratelimit.NewLocalLimiter(perMinute, rateWindow)
}
