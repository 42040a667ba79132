package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"taskboard/api"
	"taskboard/board"
	"taskboard/domain"
	"taskboard/gateway"
	"taskboard/identity"
	"taskboard/sqlstore"
	"taskboard/storage"
)

// recordStore is everything the service needs from a storage backend.
type recordStore interface {
	gateway.RecordStore
	identity.AccountStore
	identity.ProfileStore
	identity.TaskPurger
	identity.CommandQueue
	identity.CommandSource
	GetTheme(ctx context.Context, userID string) (domain.Theme, error)
	SaveTheme(ctx context.Context, userID string, theme domain.Theme) error
}

func main() {
	logger := log.StandardLogger()
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		logger.SetLevel(log.DebugLevel)
	}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx)
	defer closeStore()

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(parseRedisOptions(redisConn))
	defer rc.Close()

	cache := storage.NewCache(store, rc, envDur("CACHE_TTL", 5*time.Minute))
	gw := gateway.New(cache, logger)

	boards := board.NewRegistry(gw, logger, envDur("BOARD_IDLE_TTL", 30*time.Minute))
	go boards.Run(ctx, time.Minute)

	secret := os.Getenv("AUTH_JWT_SECRET")
	if secret == "" {
		log.Fatal("missing AUTH_JWT_SECRET")
	}
	tokens := identity.NewTokens([]byte(secret), envString("AUTH_ISSUER", "taskboard"), envString("AUTH_AUDIENCE", "taskboard"))
	if jwksURL := os.Getenv("AUTH_JWKS_URL"); jwksURL != "" {
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		defer jwks.EndBackground()
		tokens = tokens.WithJWKS(jwks, 0)
	}

	sessions := identity.NewService(store, store, cache, store, identity.NewRedisRevoker(rc), tokens, identity.Config{
		SessionTTL:    envDur("SESSION_TTL", time.Hour),
		ResetTokenTTL: envDur("RESET_TOKEN_TTL", 15*time.Minute),
		ResetURL:      os.Getenv("RESET_URL"),
		BcryptCost:    envInt("BCRYPT_COST", 0),
	}, logger)
	purger := identity.NewPurgeWorker(store, store, store, cache, logger, envDur("PURGE_IDLE", 2*time.Second))
	go purger.Run(ctx)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("tracer shutdown")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{envString("CORS_ORIGIN", "*")},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
		ExposeHeaders: []string{"Idempotent-Replayed"},
	}))
	e.Use(echoprometheus.NewMiddleware("taskboard"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, api.Deps{
		Sessions: sessions,
		Boards:   boards,
		Settings: cache,
		Deduper:  api.NewRedisDeduper(rc, envDur("DEDUPER_TTL", 24*time.Hour)),
	}, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	} else if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	go func() {
		if err := e.Start(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
}

// openStore picks the backend named by STORAGE_DRIVER.
func openStore(ctx context.Context) (recordStore, func()) {
	switch driver := envString("STORAGE_DRIVER", "azure"); driver {
	case "azure":
		cfg := storage.Config{
			ConnectionString: os.Getenv("STORAGE_CONNECTION_STRING"),
			TasksTable:       os.Getenv("TASKS_TABLE"),
			ProfilesTable:    os.Getenv("PROFILES_TABLE"),
			AccountsTable:    os.Getenv("ACCOUNTS_TABLE"),
			SettingsTable:    os.Getenv("SETTINGS_TABLE"),
			AccountQueue:     os.Getenv("ACCOUNT_QUEUE"),
			MailQueue:        os.Getenv("MAIL_QUEUE"),
		}
		if cfg.ConnectionString == "" || cfg.TasksTable == "" || cfg.ProfilesTable == "" || cfg.AccountsTable == "" ||
			cfg.SettingsTable == "" || cfg.AccountQueue == "" || cfg.MailQueue == "" {
			log.Fatal("missing storage config")
		}
		st, err := storage.New(cfg)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		return st, func() {}
	case "sqlite", "postgres":
		name := sqlstore.DriverSQLite
		if driver == "postgres" {
			name = sqlstore.DriverPostgres
		}
		dsn := os.Getenv("SQL_DSN")
		if dsn == "" {
			log.Fatal("missing SQL_DSN")
		}
		st, err := sqlstore.Open(ctx, name, dsn)
		if err != nil {
			log.Fatalf("sqlstore: %v", err)
		}
		return st, func() {
			if err := st.Close(); err != nil {
				log.WithError(err).Warn("close sqlstore")
			}
		}
	default:
		log.Fatalf("unknown STORAGE_DRIVER %q", driver)
	}
	return nil, nil
}

// parseRedisOptions accepts a redis:// URL or an Azure style
// "host:port,password=...,ssl=True" connection string.
func parseRedisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Fatalf("invalid %s: %q", key, v)
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %q", key, v)
	}
	return d
}
