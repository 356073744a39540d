package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/fu-tracker/dashboard/internal/api"
	"github.com/fu-tracker/dashboard/internal/catalog"
	"github.com/fu-tracker/dashboard/internal/channel"
	"github.com/fu-tracker/dashboard/internal/command"
	"github.com/fu-tracker/dashboard/internal/config"
	"github.com/fu-tracker/dashboard/internal/dashboard"
	"github.com/fu-tracker/dashboard/internal/logging"
	"github.com/fu-tracker/dashboard/internal/observability"
	"github.com/fu-tracker/dashboard/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := pflag.StringP("config", "c", "dashboard.config.xml", "path to the XML or YAML configuration file")
	showVersion := pflag.BoolP("version", "v", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("%s (built %s)\n", Version, BuildTime)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Advanced.LogLevel,
		Format: cfg.Advanced.LogFormat,
	}).With(logging.String("service", "fu-dashboard"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, err := observability.NewDashboardCollector(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error(ctx, "failed to register metrics", logging.Err(err))
		os.Exit(1)
	}

	client := channel.NewClient(cfg.PushChannelURL(), channel.Settings{
		HandshakeTimeout: time.Duration(cfg.Upstream.HandshakeTimeout) * time.Second,
		ReconnectDelay:   cfg.ReconnectDelay(),
		WriteTimeout:     5 * time.Second,
		PingInterval:     time.Duration(cfg.Upstream.PingIntervalSeconds) * time.Second,
		ReadTimeout:      2 * time.Duration(cfg.Upstream.PingIntervalSeconds) * time.Second,
		MaxMessageSize:   cfg.MaxMessageBytes(),
	}, logger)

	dash := dashboard.New(dashboard.Options{
		Emitter:          command.NewEmitter(client, metrics, logger),
		Metrics:          metrics,
		Logger:           logger,
		LogLines:         cfg.Dashboard.LogLines,
		EventBuffer:      cfg.Dashboard.EventBuffer,
		SubscriberBuffer: cfg.Dashboard.SubscriberBuffer,
	})
	go func() {
		if err := dash.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(ctx, "dashboard loop stopped", logging.Err(err))
		}
	}()

	// The push channel opens only once the catalog is in place; without it
	// no selection control could be populated.
	go startUpstream(ctx, cfg, dash, client, logger)

	e := newServer(cfg, dash, metrics, logger)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(*configPath, cfg)

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server failed", logging.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http shutdown failed", logging.Err(err))
	}
}

func startUpstream(ctx context.Context, cfg *config.AppConfig, dash *dashboard.Dashboard, client *channel.Client, logger logging.Logger) {
	fetcher := catalog.NewFetcher(cfg.CatalogURL(), cfg.CatalogTimeout())
	store, err := fetcher.LoadFrom(ctx)
	if err != nil {
		dash.CatalogFailed(err)
		return
	}
	if err := dash.LoadCatalog(ctx, store); err != nil {
		logger.Error(ctx, "failed to install catalog", logging.Err(err))
		return
	}

	client.OnState(dash.ChannelState)
	if err := client.Run(ctx, dash.HandleInbound); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(ctx, "push channel stopped", logging.Err(err))
	}
}

func newServer(cfg *config.AppConfig, dash *dashboard.Dashboard, metrics *observability.DashboardCollector, logger logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e)

	isStream := func(c echo.Context) bool {
		return strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
	}

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || path == "/metrics"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout:      time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper:      isStream,
		ErrorMessage: "Request timeout",
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:   5,
		Skipper: isStream,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 1 && origins[0] == "" {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Dashboard: dash,
		Metrics:   metrics.Handler(),
		Logger:    logger,
		Version:   Version,
	}))

	if web.HasEmbeddedFiles() {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn(context.Background(), "failed to register static routes", logging.Err(err))
		}
	}

	return e
}

func printBanner(configPath string, cfg *config.AppConfig) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Field Unit Dashboard                            ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Upstream:  %-46s║\n", cfg.Upstream.BaseURL)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
}
