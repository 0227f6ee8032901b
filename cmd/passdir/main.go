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

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/hyeonwkim/passdir/internal/adapter/driven/sheetapi"
	sqliteadapter "github.com/hyeonwkim/passdir/internal/adapter/driven/sqlite"
	httphandler "github.com/hyeonwkim/passdir/internal/adapter/driving/http"
	"github.com/hyeonwkim/passdir/internal/application"
	"github.com/hyeonwkim/passdir/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"environment", cfg.Environment,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"service_cache_ttl", cfg.ServiceCacheTTL,
		"member_cache_ttl", cfg.MemberCacheTTL,
		"skip_auth", cfg.SkipAuth,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	source := sheetapi.NewClient(cfg.SheetAPIURL, cfg.UpstreamTimeout)
	searchLogs := sqliteadapter.NewSearchLogRepo(db)
	auditLogs := sqliteadapter.NewAuditLogRepo(db)
	permStore := sqliteadapter.NewPermissionRepo(db)

	// 6. Build the application services.
	perms, err := application.LoadPermissions(ctx, permStore)
	if err != nil {
		return err
	}

	catalog := application.NewCatalog(source, cfg.ServiceCacheTTL, cfg.MemberCacheTTL, slog.Default())
	directory := application.NewDirectoryService(catalog, perms, searchLogs, auditLogs, cfg.AdminEmails, slog.Default())
	members := application.NewMemberService(catalog, source, auditLogs, slog.Default())
	favorites := application.NewFavoriteService(catalog, source, slog.Default())

	// 7. Create the HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(directory, members, favorites, httphandler.Settings{
		Environment:   cfg.Environment,
		SessionSecret: cfg.SessionSecret,
		AllowedDomain: cfg.AllowedDomain,
		SkipAuth:      cfg.SkipAuth,
	}, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 8. Log startup complete.
	slog.Info("passdir started",
		"listen_addr", cfg.ListenAddr,
		"admins", len(cfg.AdminEmails),
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
