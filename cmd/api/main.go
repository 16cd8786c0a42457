package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ops-dashboard/internal/audit"
	"ops-dashboard/internal/auth"
	"ops-dashboard/internal/calls"
	"ops-dashboard/internal/config"
	"ops-dashboard/internal/httpapi"
	"ops-dashboard/internal/inspect"
	"ops-dashboard/internal/jobber"
	"ops-dashboard/internal/rbac"
	"ops-dashboard/internal/reporting"
	"ops-dashboard/internal/store"
	"ops-dashboard/internal/telephony"
	"ops-dashboard/internal/timewindow"
	"ops-dashboard/pkg/logger"
	"ops-dashboard/pkg/metrics"
	"ops-dashboard/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Every metric depends on correct windows; refuse to start without the zone.
	windows, err := timewindow.NewResolver(cfg.Dashboard.Timezone)
	if err != nil {
		log.Error("timezone init failed", "zone", cfg.Dashboard.Timezone, "err", err)
		os.Exit(1)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}
	login, err := auth.NewAuthenticator(dashboardAccounts(cfg.Admin)...)
	if err != nil {
		log.Error("admin account init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	m := metrics.New()
	records := store.NewPostgresStore(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	deps := routeDeps{
		Handlers: httpapi.Handlers{
			Auth:  authManager,
			Login: login,
			Dashboard: reporting.NewService(records, windows, reporting.Options{
				ReadTimeout: cfg.Dashboard.ReadTimeout,
				Policy:      calls.Policy{IncludeNonVoice: cfg.Dashboard.IncludeNonVoice},
				Observer:    m,
			}),
			Inspect: inspect.NewService(records, windows),
			Audit:   auditSvc,
		},
		AuthMW:  auth.RequireAccessToken(authManager),
		Metrics: m,
		Webhook: telephony.WebhookHandler{
			Ingestor: telephony.NewIngestor(records, auditSvc, m),
		},
		Health: healthCheck(db.PingContext, rdb),
	}
	if cfg.OpenPhone.WebhookSecret != "" {
		v, err := telephony.NewVerifier(cfg.OpenPhone.WebhookSecret)
		if err != nil {
			log.Error("openphone verifier init failed", "err", err)
			os.Exit(1)
		}
		deps.Webhook.Verifier = v
	} else {
		log.Warn("OPENPHONE_WEBHOOK_SECRET not set; webhook signatures are not verified")
	}
	if cfg.Jobber.Enabled() {
		client := jobber.NewClient(cfg.Jobber, jobber.NewRedisStore(rdb), jobber.NewRedisLocker(rdb, nil))
		deps.Jobber = &jobber.Handlers{Client: client, Audit: auditSvc}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(m.Middleware())
	registerRoutes(r, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "timezone", windows.Location().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// healthCheck reports readiness of both backing stores.
func healthCheck(pingDB func(context.Context) error, rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := pingDB(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	}
}

// dashboardAccounts maps configured logins to roles.
func dashboardAccounts(cfg config.AdminConfig) []auth.Account {
	out := []auth.Account{{Username: cfg.Username, PasswordHash: cfg.PasswordHash, Role: rbac.RoleOwner}}
	if cfg.ViewerUsername != "" {
		out = append(out, auth.Account{Username: cfg.ViewerUsername, PasswordHash: cfg.ViewerPasswordHash, Role: rbac.RoleViewer})
	}
	return out
}
