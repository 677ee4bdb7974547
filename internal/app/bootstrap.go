// Package app wires the gateway together: configuration, account storage,
// the brute-force guard, token authority, controller forwarder and router.
package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"ztgate/internal/account"
	"ztgate/internal/auth"
	"ztgate/internal/config"
	"ztgate/internal/db"
	"ztgate/internal/httpx"
	"ztgate/internal/metrics"
	"ztgate/internal/observability"
	"ztgate/internal/upstream"
	"ztgate/internal/web"
)

type Options struct {
	ConfigPath string
	LoadDotEnv bool

	// WatchConfig reloads the config file on external edits.
	WatchConfig bool

	Environment string
}

type Runtime struct {
	Handler http.Handler
	Addr    string
	Logger  zerolog.Logger
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg, err := config.Load(options.ConfigPath)
	if err != nil {
		return nil, err
	}
	store := config.NewStore(options.ConfigPath, cfg)

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)

	if err := observability.InitSentry(cfg.SentryDSN, options.Environment); err != nil {
		logger.Error().Err(err).Msg("init sentry failed")
	}

	if err := ensureTokenSecret(store); err != nil {
		return nil, err
	}

	closers := []func() error{}

	accounts, database, err := buildAccountStore(store, logger)
	if err != nil {
		return nil, err
	}
	if database != nil {
		closers = append(closers, database.Close)
	}

	banCfg := store.Snapshot().Auth.Ban
	guard := auth.NewGuard(auth.GuardConfig{
		MaxFailures: banCfg.MaxFailures,
		Window:      banCfg.Window,
		BanDuration: banCfg.Duration,
	})

	m := metrics.New()
	guard.SetOnBan(func(key netip.Addr, until time.Time) {
		m.BansTotal.Inc()
		logger.Warn().Stringer("ban_key", key).Time("until", until).Msg("source banned after repeated login failures")
	})

	authCfg := store.Snapshot().Auth
	tokens := auth.NewTokenAuthority(authCfg.TokenSecret, authCfg.TokenTTL)

	forwarder := upstream.NewForwarder(store, m, logger)
	authHandler := auth.NewHandler(accounts, guard, tokens, m, logger)

	if options.WatchConfig {
		watcher, err := config.Watch(store, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("config watcher disabled")
		} else {
			closers = append(closers, watcher.Close)
		}
	}

	router := buildRouter(logger, tokens, authHandler, forwarder, m)

	return &Runtime{
		Handler: router,
		Addr:    store.Snapshot().Listen,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			var firstErr error
			for _, closeFn := range closers {
				if err := closeFn(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		},
	}, nil
}

func buildRouter(logger zerolog.Logger, tokens *auth.TokenAuthority, authHandler *auth.Handler, forwarder *upstream.Forwarder, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(observability.RequestID)
	r.Use(observability.RequestLogging(logger))
	r.Use(observability.Recover(logger))

	requireToken := auth.RequireToken(tokens)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(requireToken)
			r.Post("/logout", authHandler.Logout)
			r.Get("/check", authHandler.Check)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/editprofile", authHandler.UpdateProfile)
		})
	})

	r.With(requireToken).Handle("/ztapi/*", forwarder.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.NotFound(web.Handler().ServeHTTP)

	return r
}

func buildAccountStore(store *config.Store, logger zerolog.Logger) (account.Store, *sql.DB, error) {
	cfg := store.Snapshot()

	switch cfg.Accounts.Backend {
	case "postgres":
		database, err := sql.Open("pgx", cfg.Accounts.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := database.Ping(); err != nil {
			_ = database.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}

		pg := account.NewPostgresStore(database, logger)
		if err := pg.Seed(context.Background(), cfg.Admin.Username, cfg.Admin.PasswordHash); err != nil {
			_ = database.Close()
			return nil, nil, err
		}
		return pg, database, nil

	default:
		return account.NewFileStore(store), nil, nil
	}
}

// ensureTokenSecret generates and persists a signing secret on first start
// so restarts keep previously issued tokens valid.
func ensureTokenSecret(store *config.Store) error {
	cfg := store.Snapshot()
	if cfg.Auth.TokenSecret != "" {
		return nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate token secret: %w", err)
	}

	updated := cfg.Clone()
	updated.Auth.TokenSecret = hex.EncodeToString(raw)
	if err := store.Save(updated); err != nil {
		return fmt.Errorf("persist token secret: %w", err)
	}
	return nil
}
