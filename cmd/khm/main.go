package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/house-of-vanity/khm/internal/config"
	"github.com/house-of-vanity/khm/internal/dnsscan"
	"github.com/house-of-vanity/khm/internal/httpapi"
	"github.com/house-of-vanity/khm/internal/kherrors"
	"github.com/house-of-vanity/khm/internal/khmclient"
	"github.com/house-of-vanity/khm/internal/khmlog"
	"github.com/house-of-vanity/khm/internal/keystore"
	"github.com/house-of-vanity/khm/internal/store"
)

func main() {
	result, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(config.ExitMisuse)
	}

	switch result.Mode {
	case config.ModeServer:
		runServer(result.Server)
	case config.ModeClient:
		os.Exit(runClient(result.Client))
	}
}

func runServer(cfg config.ServerSettings) {
	khmlog.Init(cfg.LogPath)
	defer khmlog.Close()

	log.Printf("Config: flows=%v dns-parallelism=%d db-pool-size=%d", cfg.Flows, cfg.DNSParallelism, cfg.DBPoolSize)

	gw, err := store.NewPostgresGateway(store.PostgresConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		DBName:   cfg.DBName,
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		PoolSize: cfg.DBPoolSize,
	})
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	engine := keystore.New(gw)
	scanner := dnsscan.New(cfg.DNSParallelism)

	api := httpapi.New(httpapi.Config{
		Engine:    engine,
		Scanner:   scanner,
		Flows:     cfg.Flows,
		BasicUser: cfg.BasicUser,
		BasicPass: cfg.BasicPass,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.IP, cfg.Port),
		Handler: api,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// runClient runs one client sync and returns the process exit code per
// spec.md §6.2: 0 success, 3 network failure, 4 server rejected the
// payload, 5 local file I/O failure.
func runClient(cfg config.ClientSettings) int {
	c := khmclient.New(khmclient.Config{
		ServerURL:  cfg.Host,
		Flow:       cfg.Flow,
		KnownHosts: cfg.KnownHosts,
		InPlace:    cfg.InPlace,
		BasicAuth:  cfg.BasicAuth,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stats, err := c.Run(ctx)
	if err != nil {
		log.Println(err)
		switch kherrors.KindOf(err) {
		case kherrors.BadRequest:
			return 4
		case kherrors.Unavailable:
			return 3
		default:
			return 5
		}
	}

	log.Printf("sync complete: read=%d pushed=%d fetched=%d rewrote=%v",
		stats.Read, stats.Pushed, stats.Fetched, stats.Rewrote)
	return 0
}
