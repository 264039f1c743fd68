// JiConnect Server - hotspot voucher sales backend
// Sells timed access vouchers, enrolls them on the MikroTik hotspot, issues
// PDF receipts and keeps the sales ledger.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kardianos/service"

	"jiconnect/server/config"
	"jiconnect/server/handlers"
	"jiconnect/server/hotspot"
	"jiconnect/server/logger"
	"jiconnect/server/mikrotik"
	"jiconnect/server/provisioning"
	"jiconnect/server/receipt"
	"jiconnect/server/storage"
)

// Version information (set at build time via -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	BuildType = "dev"
)

const configFileName = "server.toml"

var (
	serverLogger    *logger.Logger
	serverStore     storage.Store
	serverConfig    *Config
	authRateLimiter *AuthRateLimiter
	processStart    = time.Now()
)

// cliOverrides holds flag values that take precedence over file and env
type cliOverrides struct {
	configPath string
	port       int
	dbPath     string
	logLevel   string
}

var cli cliOverrides

func main() {
	configPath := flag.String("config", "", "Path to "+configFileName+" (default: search platform paths)")
	port := flag.Int("port", 0, "HTTP port (overrides config and PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (error, warn, info, debug, trace)")
	serviceCmd := flag.String("service", "", "Service command: install, uninstall, start, stop, restart, run")
	generateConfig := flag.Bool("generate-config", false, "Write a default config file and exit")
	healthCheck := flag.Bool("health-check", false, "Probe the local /health endpoint and exit")
	flag.Parse()

	cli = cliOverrides{configPath: *configPath, port: *port, dbPath: *dbPath, logLevel: *logLevel}

	if *generateConfig {
		path := *configPath
		if path == "" {
			path = configFileName
		}
		if err := WriteDefaultConfig(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default configuration at %s\n", path)
		return
	}

	if *healthCheck {
		cfg, _, err := loadServerConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "health check: %v\n", err)
			os.Exit(1)
		}
		if err := handlers.RunHealthCheck(handlers.HealthCheckConfig{
			BindAddress: cfg.Server.BindAddress,
			HTTPPort:    cfg.Server.HTTPPort,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("ok")
		return
	}

	if *serviceCmd != "" {
		if err := handleServiceCommand(*serviceCmd); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	if !service.Interactive() {
		if err := handleServiceCommand("run"); err != nil {
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runServer(ctx); err != nil {
		logFatal("Server exited with error", "error", err)
	}
}

// loadServerConfig resolves the config file, applies env overrides and then
// command line flags.
func loadServerConfig() (*Config, *ConfigSourceTracker, error) {
	path := cli.configPath
	if path == "" {
		if found, err := config.FindConfigFile(configFileName); err == nil {
			path = found
		}
	}
	cfg, tracker, err := LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	if cli.port > 0 {
		cfg.Server.HTTPPort = cli.port
	}
	if cli.dbPath != "" {
		cfg.Database.Path = cli.dbPath
	}
	if cli.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(cli.logLevel)
	}
	return cfg, tracker, nil
}

// runServer runs until ctx is cancelled or the listener fails
func runServer(ctx context.Context) error {
	cfg, tracker, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	serverConfig = cfg

	isService := !service.Interactive()
	dataDir, err := config.GetDataDirectory(isService)
	if err != nil {
		return err
	}

	logDir := cfg.Logging.Dir
	if logDir == "" {
		logDir = filepath.Join(dataDir, "logs")
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		logWarn("Log directory unavailable, logging to console only", "dir", logDir, "error", err)
		logDir = ""
	}
	serverLogger = logger.New(logger.ParseLevel(cfg.Logging.Level), logDir, 1000)
	defer serverLogger.Close()
	storage.SetLogger(serverLogger)
	mikrotik.SetLogger(serverLogger)

	logInfo("Server starting", "version", Version, "commit", GitCommit, "go", runtime.Version(), "os", runtime.GOOS)
	if len(tracker.EnvKeys) > 0 {
		keys := make([]string, 0, len(tracker.EnvKeys))
		for k := range tracker.EnvKeys {
			keys = append(keys, k)
		}
		logDebug("Config keys set by environment", "keys", strings.Join(keys, ","))
	}

	if cfg.Database.EffectiveDriver() == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(dataDir, "jiconnect.db")
	}
	store, err := storage.NewStore(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	serverStore = store
	defer store.Close()
	logInfo("Database ready", "driver", cfg.Database.EffectiveDriver())

	if cfg.Seed.Enabled {
		seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if user, err := seedAdmin(seedCtx, store, cfg.Seed); err != nil {
			logWarn("Admin seed failed", "error", err)
		} else {
			logInfo("Admin account ensured", "email", user.Email)
		}
		cancel()
	}

	mode := cfg.ResolvedMode()
	if requested, ok := mikrotik.ParseMode(cfg.MikroTik.Mode); ok && requested != mode {
		logWarn("MikroTik mode overridden: appliance address incomplete", "requested", requested, "mode", mode)
	}
	device := mikrotik.NewDevice(mode, cfg.MikroTik.Address(), nil)
	logInfo("MikroTik backend selected", "mode", mode, "environment", cfg.Server.Environment, "host", cfg.MikroTik.Address().HostPort())

	if cfg.Security.RateLimitEnabled {
		authRateLimiter = NewAuthRateLimiter(
			cfg.Security.RateLimitMaxAttempts,
			time.Duration(cfg.Security.RateLimitBlockMinutes)*time.Minute,
			time.Duration(cfg.Security.RateLimitWindowMinutes)*time.Minute,
		)
		defer authRateLimiter.Stop()
	}

	mux, err := newServerMux(serverDeps{
		Config:      cfg,
		Device:      device,
		Store:       store,
		ReceiptsDir: filepath.Join(cfg.Server.PublicDir, "receipts"),
	})
	if err != nil {
		return err
	}

	go purgeExpiredSessions(ctx, store, time.Hour)

	addr := net.JoinHostPort(cfg.Server.BindAddress, strconv.Itoa(cfg.Server.HTTPPort))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          log.New(logBridgeWriter{level: logger.WARN}, "", 0),
	}

	errCh := make(chan error, 1)
	go func() {
		logInfo("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logInfo("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logWarn("Graceful shutdown incomplete", "error", err)
	}
	return nil
}

// serverDeps are the collaborators the HTTP surface is built from
type serverDeps struct {
	Config      *Config
	Device      mikrotik.Device
	Store       storage.Store
	ReceiptsDir string
}

// newServerMux wires every API onto a fresh mux
func newServerMux(d serverDeps) (*http.ServeMux, error) {
	cfg := d.Config
	mux := http.NewServeMux()

	apiOpts := handlers.APIOptions{
		AuthMiddleware: requireAuth,
		ActorResolver:  actorFromRequest,
		AuditLogger:    logAuditEntry,
		Logger:         serverLog{},
	}

	handlers.NewHealthAPI(handlers.HealthAPIOptions{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		BuildType:    BuildType,
		ProcessStart: processStart,
		ModeReporter: func() string { return string(d.Device.Mode()) },
	}).RegisterRoutes(mux)

	receipts := receipt.NewGenerator(d.ReceiptsDir, cfg.Receipt.Currency)
	orchestrator := provisioning.NewOrchestrator(d.Device, receipts, d.Store, provisioning.Options{Logger: serverLog{}})

	payAPI, err := handlers.NewPaymentAPI(orchestrator, handlers.PaymentAPIOptions{
		APIOptions:     apiOpts,
		RequestTimeout: cfg.Server.RequestTimeout(),
	})
	if err != nil {
		return nil, err
	}
	payAPI.RegisterRoutes(mux)

	salesAPI, err := handlers.NewSalesAPI(d.Store, apiOpts)
	if err != nil {
		return nil, err
	}
	salesAPI.RegisterRoutes(mux)

	registry := hotspot.NewRegistry(d.Device, cfg.Production(), serverLog{})
	hotspotAPI, err := handlers.NewHotspotAPI(registry, handlers.HotspotAPIOptions{
		APIOptions:    apiOpts,
		DeviceTimeout: cfg.Server.RequestTimeout(),
		LiveInterval:  cfg.Server.LiveRefresh(),
		TokenAuthenticator: func(ctx context.Context, token string) (string, error) {
			user, err := authenticateToken(ctx, token)
			if err != nil {
				return "", err
			}
			return user.Email, nil
		},
	})
	if err != nil {
		return nil, err
	}
	hotspotAPI.RegisterRoutes(mux)

	routerAPI, err := handlers.NewRouterAPI(d.Device, cfg.Server.RequestTimeout())
	if err != nil {
		return nil, err
	}
	routerAPI.RegisterRoutes(mux)

	mux.HandleFunc("/api/auth/login", handleAuthLogin)
	mux.HandleFunc("/api/auth/me", requireAuth(handleAuthMe))
	mux.HandleFunc("/api/auth/change-password", requireAuth(handleAuthChangePassword))
	mux.HandleFunc("/api/auth/logout", requireAuth(handleAuthLogout))
	if cfg.Seed.Enabled {
		mux.HandleFunc("/api/dev/seed-admin", handleSeedAdmin)
		logWarn("Seed route enabled", "path", "/api/dev/seed-admin", "token_required", cfg.Seed.Token != "")
	}

	mux.Handle(receipt.URLPrefix, http.StripPrefix(receipt.URLPrefix, receiptFileServer(d.ReceiptsDir)))

	return mux, nil
}

// receiptFileServer serves receipt files without directory listings
func receiptFileServer(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// purgeExpiredSessions deletes expired login sessions until ctx ends
func purgeExpiredSessions(ctx context.Context, store storage.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.DeleteExpiredSessions(ctx, now.UTC())
			if err != nil {
				logWarn("Expired session purge failed", "error", err)
				continue
			}
			if n > 0 {
				logDebug("Expired sessions purged", "count", n)
			}
		}
	}
}
