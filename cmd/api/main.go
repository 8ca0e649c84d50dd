package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"tasklane.app/internal/auth"
	"tasklane.app/internal/config"
	"tasklane.app/internal/httpapi"
	"tasklane.app/internal/identity"
	"tasklane.app/internal/obs"
	"tasklane.app/internal/ratelimit"
	"tasklane.app/internal/stream"
	"tasklane.app/internal/tasks"
	"tasklane.app/internal/tenant"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var db *sql.DB
	var store auth.Store
	var taskStore tasks.Store
	if cfg.DatabaseDSN != "" {
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
		taskStore = tasks.NewPGStore(db)
	} else {
		log.Println("TASKLANE_PG_DSN not set, using in-memory store")
		store = auth.NewMemStore()
		taskStore = tasks.NewMemStore()
	}

	var counters ratelimit.CounterStore
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		counters = ratelimit.NewRedisStore(redis.NewClient(opt))
	} else {
		log.Println("TASKLANE_REDIS_URL not set, using in-memory rate counters")
		counters = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.New(counters,
		ratelimit.WithLimit(cfg.LoginRateLimit),
		ratelimit.WithWindow(cfg.LoginRateWindow),
	)

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer,
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	svcOpts := []auth.ServiceOption{
		auth.WithRateLimiter(limiter),
		auth.WithOTPTTL(cfg.OTPTTL),
	}
	if cfg.GoogleClientID != "" {
		svcOpts = append(svcOpts, auth.WithIdentityVerifier(identity.NewGoogleVerifier(cfg.GoogleClientID)))
	}
	svc := auth.NewService(store, tokens, svcOpts...)

	resolver := tenant.NewResolver(store.Organizations(context.Background()), tokens)
	broker := stream.NewBroker()

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, resolver, taskStore, broker)
	api.SetRateLimit(cfg.HTTPRateBurst, cfg.HTTPRatePerSec)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	reflection.Register(grpcSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	log.Printf("starting tasklane-api %s on %s (grpc %s)", version, cfg.Addr, cfg.GRPCAddr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	_ = srv.Shutdown(ctx)
	grpcSrv.GracefulStop()
	if db != nil {
		_ = db.Close()
	}
	log.Println("stopped")
}
