package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/config"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/desk"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/httpapi"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/kv"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/migrate"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/obs"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/stats"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/stream"
)

var (
	version = "0.1.0"
	commit  = ""
)

func main() {
	configPath := flag.String("config", os.Getenv("CAPWA_CONFIG"), "Path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, closer, err := openStore(ctx, cfg.Storage)
	if err != nil {
		cancel()
		log.Fatalf("open storage: %v", err)
	}

	events := stream.New()
	d, err := desk.New(store, cfg.Auth.TokenSecret,
		desk.WithTokenTTL(cfg.Auth.TokenTTL),
		desk.WithIssuer(cfg.Auth.Issuer),
		desk.WithAuditRetention(cfg.Audit.Retention),
		desk.WithActiveWindow(cfg.Stats.ActiveWindow),
		desk.WithPublisher(events),
	)
	if err != nil {
		cancel()
		log.Fatalf("init desk: %v", err)
	}
	seed := desk.AdminSeed{Email: cfg.Auth.Admin.Email, Password: cfg.Auth.Admin.Password, Name: cfg.Auth.Admin.Name}
	if err := d.Bootstrap(ctx, seed); err != nil {
		cancel()
		log.Fatalf("bootstrap admin: %v", err)
	}
	cancel()

	prometheus.MustRegister(stats.NewCollector(d.Aggregator()))

	proxies, err := httpapi.ParseTrustedProxies(cfg.HTTP.TrustedProxies)
	if err != nil {
		log.Fatalf("http config: %v", err)
	}

	probe := httpapi.ReadyProbe{Store: store}
	api := httpapi.New(d,
		httpapi.WithStream(events),
		httpapi.WithReadiness(probe),
		httpapi.WithVersion(version),
		httpapi.WithRateLimit(cfg.HTTP.RateBurst, cfg.HTTP.RatePerSec),
		httpapi.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		httpapi.WithTrustedProxies(proxies),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// SSE connections stay open, so no write timeout.
		IdleTimeout: 60 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, httpapi.NewHealthServer(probe))
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("grpc listen: %v", err)
	}

	log.Printf("Starting capwa-api %s on %s (grpc %s, storage %s)", version, srv.Addr, cfg.GRPCAddr, cfg.Storage.Driver)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	if closer != nil {
		_ = closer.Close()
	}
	log.Println("Stopped")
}

// openStore connects the configured backend. SQL backends are migrated
// before use.
func openStore(ctx context.Context, cfg config.StorageConfig) (kv.Store, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverPostgres, config.DriverSQLite:
		var (
			store *kv.SQLStore
			err   error
		)
		if cfg.Driver == config.DriverPostgres {
			store, err = kv.OpenPostgres(cfg.PostgresDSN)
		} else {
			store, err = kv.OpenSQLite(cfg.SQLitePath)
		}
		if err != nil {
			return nil, nil, err
		}
		applied, err := migrate.NewManager(store.DB(), nil, migrate.WithDialect(store.Dialect())).Up(ctx)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		for _, name := range applied {
			log.Printf("applied migration %s", name)
		}
		return store, store, nil
	case config.DriverRedis:
		store, err := kv.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return kv.NewMemory(), nil, nil
	}
}
