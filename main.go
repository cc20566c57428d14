package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-partnergate/partnergate/internal/auth"
	"github.com/go-partnergate/partnergate/internal/cache"
	"github.com/go-partnergate/partnergate/internal/client"
	"github.com/go-partnergate/partnergate/internal/config"
	"github.com/go-partnergate/partnergate/internal/core"
	"github.com/go-partnergate/partnergate/internal/handlers"
	"github.com/go-partnergate/partnergate/internal/metrics"
	"github.com/go-partnergate/partnergate/internal/middleware"
	"github.com/go-partnergate/partnergate/internal/models"
	"github.com/go-partnergate/partnergate/internal/store"
	"github.com/go-partnergate/partnergate/internal/sweeper"
	"github.com/go-partnergate/partnergate/internal/validator"
	"github.com/go-partnergate/partnergate/internal/version"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Define flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	// Check if command is provided
	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Handle subcommands
	switch args[0] {
	case "server":
		runServer()
	case "sweep":
		runSweep()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("OAuth 2.0 token lifecycle server for the partner API")
	fmt.Println("\nCommands:")
	fmt.Println("  server    Start the token server")
	fmt.Println("  sweep     Run a one-off expiry sweep and exit")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

func runServer() {
	// Load configuration; malformed TTLs are fatal here, not per request
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize store
	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := db.Seed(context.Background()); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	// Initialize metrics
	prometheusMetrics := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}

	// Application cache fronting ResolveApplication
	appCache, appCacheCloser := createAppCache(cfg)

	// Authentication provider
	authProvider := createAuthProvider(cfg, db)
	log.Printf("Authentication mode: %s", cfg.AuthMode)

	// The validator is the strategy object the protocol layer drives
	oauthValidator := validator.New(db, authProvider, appCache, cfg, prometheusMetrics)

	// Handlers
	resourceHandler := handlers.NewResourceHandler(db)

	// Setup Gin
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Health check endpoint
	r.GET("/healthz", resourceHandler.Healthz)

	// Prometheus metrics endpoint (with optional authentication)
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Protected partner API routes
	v1 := r.Group("/v1")
	v1.Use(createRateLimiter(cfg))
	{
		v1.GET("/my_info", middleware.RequireToken(oauthValidator, "read"), resourceHandler.MyInfo)
	}

	log.Printf("Partner API token server starting on %s", cfg.ServerAddr)
	log.Printf("Token lifetimes: code=%s access=%s refresh_grace=%s",
		cfg.AuthCodeTTL, cfg.AccessTokenTTL, cfg.RefreshTokenGrace)

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Create graceful manager
	m := graceful.NewManager()

	// Add server as a running job
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})

	// Add shutdown job for HTTP server
	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})

	// Periodic expiry sweep
	sw := sweeper.New(db, cfg.SweepInterval, cfg.RefreshTokenGrace, prometheusMetrics)
	m.AddRunningJob(func(ctx context.Context) error {
		return sw.Run(ctx)
	})

	// Periodic gauge updates for stored token counts
	if cfg.MetricsEnabled {
		m.AddRunningJob(func(ctx context.Context) error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()

			updateGaugeMetrics(db, prometheusMetrics)
			for {
				select {
				case <-ticker.C:
					updateGaugeMetrics(db, prometheusMetrics)
				case <-ctx.Done():
					return nil
				}
			}
		})
	}

	// Close the application cache on shutdown
	if appCacheCloser != nil {
		m.AddShutdownJob(func() error {
			if err := appCacheCloser(); err != nil {
				log.Printf("Error closing application cache: %v", err)
			} else {
				log.Println("Application cache closed")
			}
			return nil
		})
	}

	// Wait for graceful shutdown
	<-m.Done()
}

// runSweep performs a single purge pass, for cron-style deployments
// that prefer an external schedule over the built-in ticker.
func runSweep() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	start := time.Now()
	result, err := db.PurgeExpired(start, cfg.RefreshTokenGrace)
	if err != nil {
		log.Fatalf("Purge failed: %v", err)
	}
	log.Printf(
		"Purged %d grants, %d access tokens, %d refresh tokens in %s",
		result.Grants, result.AccessTokens, result.RefreshTokens, time.Since(start),
	)
}

// createAppCache selects the application-cache backend. The closer is
// nil for the memory cache.
func createAppCache(cfg *config.Config) (core.Cache[models.Application], func() error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		c, err := cache.NewRueidisCache[models.Application](
			context.Background(),
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.RedisDB,
			"app:",
		)
		if err != nil {
			log.Fatalf("Failed to initialize redis application cache: %v", err)
		}
		log.Printf("Application cache: redis (addr=%s, db=%d)", cfg.RedisAddr, cfg.RedisDB)
		return c, c.Close
	case config.CacheBackendRedisAside:
		c, err := cache.NewRueidisAsideCache[models.Application](
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.RedisDB,
			"app:",
			30*time.Second,
		)
		if err != nil {
			log.Fatalf("Failed to initialize redis-aside application cache: %v", err)
		}
		log.Printf(
			"Application cache: redis-aside (addr=%s, db=%d)",
			cfg.RedisAddr, cfg.RedisDB,
		)
		return c, c.Close
	default:
		log.Println("Application cache: memory (single instance only)")
		return cache.NewMemoryCache[models.Application](), nil
	}
}

// createAuthProvider selects the resource-owner authentication backend.
func createAuthProvider(cfg *config.Config, db *store.Store) core.AuthProvider {
	switch cfg.AuthMode {
	case config.AuthModeHTTPAPI:
		retryClient, err := client.CreateRetryClient(
			cfg.HTTPAPIAuthMode,
			cfg.HTTPAPIAuthSecret,
			cfg.HTTPAPITimeout,
			cfg.HTTPAPIInsecureSkipVerify,
			cfg.HTTPAPIMaxRetries,
			cfg.HTTPAPIRetryDelay,
			cfg.HTTPAPIMaxRetryDelay,
			cfg.HTTPAPIAuthHeader,
		)
		if err != nil {
			log.Fatalf("Failed to create HTTP API auth client: %v", err)
		}
		log.Printf("HTTP API authentication enabled: %s", cfg.HTTPAPIURL)
		return auth.NewHTTPAPIAuthProvider(cfg, retryClient)
	default:
		return auth.NewLocalAuthProvider(db)
	}
}

// createRateLimiter builds the limiter for the partner API routes. A
// disabled limiter is a pass-through.
func createRateLimiter(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimitEnabled {
		return func(c *gin.Context) { c.Next() }
	}

	var (
		limiter gin.HandlerFunc
		err     error
	)
	if cfg.RateLimitRedis {
		limiter, err = middleware.NewRedisRateLimiter(
			cfg.RateLimitPeriod,
			cfg.RateLimitBurst,
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.RedisDB,
		)
		log.Printf("Rate limiting enabled (store: redis)")
	} else {
		limiter, err = middleware.NewMemoryRateLimiter(cfg.RateLimitPeriod, cfg.RateLimitBurst)
		log.Printf("Rate limiting enabled (store: memory)")
	}
	if err != nil {
		log.Fatalf("Failed to create rate limiter: %v", err)
	}
	return limiter
}

func updateGaugeMetrics(db core.MetricsStore, m core.Recorder) {
	if n, err := db.CountAccessTokens(); err != nil {
		m.RecordDatabaseQueryError("count_access_tokens")
	} else {
		m.SetActiveTokensCount("access", n)
	}
	if n, err := db.CountRefreshTokens(); err != nil {
		m.RecordDatabaseQueryError("count_refresh_tokens")
	} else {
		m.SetActiveTokensCount("refresh", n)
	}
	if n, err := db.CountGrants(); err != nil {
		m.RecordDatabaseQueryError("count_grants")
	} else {
		m.SetActiveTokensCount("grant", n)
	}
}
