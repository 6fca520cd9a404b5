package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AdventurerAmer/yutnori/internal/v1/config"
	"github.com/AdventurerAmer/yutnori/internal/v1/health"
	"github.com/AdventurerAmer/yutnori/internal/v1/logging"
	"github.com/AdventurerAmer/yutnori/internal/v1/middleware"
	"github.com/AdventurerAmer/yutnori/internal/v1/ratelimit"
	"github.com/AdventurerAmer/yutnori/internal/v1/session"
	"github.com/AdventurerAmer/yutnori/internal/v1/tracing"
)

// hubStats adapts the hub snapshot to the health handler.
type hubStats struct {
	hub *session.Hub
}

func (s hubStats) Stats(ctx context.Context) (int, int) {
	st := s.hub.Stats(ctx)
	return st.Connections, st.Rooms
}

func main() {
	port := flag.Int("port", 0, "game server listen port (overrides PORT)")
	flag.Parse()

	// Load .env file for local development. Try multiple paths to
	// handle different ways of running the app.
	envPaths := []string{".env", "../../../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.GamePort = *port
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	ctx := context.Background()

	if cfg.OtelCollectorAddr != "" {
		tp, err := tracing.InitTracer(ctx, "yutnori-server", cfg.OtelCollectorAddr)
		if err != nil {
			logging.Fatal(ctx, "failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logging.Error(shutdownCtx, "tracer shutdown failed", zap.Error(err))
			}
		}()
		logging.Info(ctx, "✅ Tracing initialized", zap.String("collector", cfg.OtelCollectorAddr))
	}

	connLimiter, err := ratelimit.NewConnectionLimiter(cfg.RateLimitConnIP)
	if err != nil {
		logging.Fatal(ctx, "failed to build rate limiter", zap.Error(err))
	}

	hub := session.NewHub(connLimiter)
	hubCtx, stopHub := context.WithCancel(ctx)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(hubCtx)
	}()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GamePort))
	if err != nil {
		logging.Fatal(ctx, "failed to listen", zap.Int("port", cfg.GamePort), zap.Error(err))
	}
	go func() {
		logging.Info(ctx, "game server listening", zap.Int("port", cfg.GamePort))
		if err := hub.Serve(lis); err != nil {
			logging.Error(ctx, "accept loop failed", zap.Error(err))
		}
	}()

	// --- Ops HTTP sidecar: /health and /metrics ---
	if !cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	router.Use(cors.New(corsCfg))
	router.Use(middleware.CorrelationID())

	health.NewHandler(hubStats{hub: hub}).Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    cfg.OpsAddr,
		Handler: router,
	}
	go func() {
		logging.Info(ctx, "ops server listening", zap.String("addr", cfg.OpsAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "ops server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down...")

	stopHub()
	lis.Close()
	<-hubDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx, "ops server forced to shutdown", zap.Error(err))
	}

	logging.Info(ctx, "server exiting")
}
