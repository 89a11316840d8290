/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the POS transactional core server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Open the SQLite document store (authoritative) and LevelDB cart
     cache, each behind its own circuit breaker
  3. Compose the cart service, terminal resolver, event publisher
  4. Start the undelivered-event republisher
  5. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to the YAML configuration file (optional)
  -port    Override the HTTP port
  -db      Override the SQLite database path
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the republisher
  4. Close both stores
  5. Exit

EXAMPLES:
  # Run with defaults
  ./server

  # Run with a config file and port override
  ./server -config=pos.yaml -port=3000

SEE ALSO:
  - config: File and environment configuration
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/pos-core/api"
	"github.com/warp/pos-core/breaker"
	"github.com/warp/pos-core/cart"
	"github.com/warp/pos-core/config"
	"github.com/warp/pos-core/event"
	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
	"github.com/warp/pos-core/store/kv"
	"github.com/warp/pos-core/store/sqlite"
	"github.com/warp/pos-core/terminal"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Storage.SQLitePath = *dbPath
	}

	// Durable document store (authoritative side of the dual cart store,
	// plus transactions, counters, deliveries, masters, terminals)
	db, err := sqlite.New(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Fast cart cache
	cache, err := kv.Open(cfg.Storage.LevelDBPath, cfg.CartTTL())
	if err != nil {
		log.Fatalf("Failed to initialize cart cache: %v", err)
	}
	defer cache.Close()

	primaryBreaker := breaker.New("cart-primary", cfg.Breaker.Threshold, cfg.BreakerCooldown())
	fallbackBreaker := breaker.New("cart-fallback", cfg.Breaker.Threshold, cfg.BreakerCooldown())
	carts := store.NewDualCartStore(cache, db, primaryBreaker, fallbackBreaker)

	resolver := terminal.NewResolver(db, cfg.TerminalCacheTTL())
	publisher := event.NewPublisher(db, cfg.Subscribers, &http.Client{Timeout: cfg.HTTPTimeout()})

	service := cart.New(carts, db, db, db, resolver,
		pos.DefaultPaymentRegistry(), publisher, &pos.TextRenderer{})

	// Background redelivery of undelivered events
	republisher := event.NewRepublisher(db, publisher)
	republisher.CheckInterval = cfg.RepublishInterval()
	republisher.GracePeriod = cfg.RepublishGrace()
	republisher.Window = cfg.RepublishWindow()
	republisher.Enabled = cfg.Republisher.Enabled
	republisher.Start()
	defer republisher.Stop()

	handler := api.NewHandler(service, db, publisher, db, resolver, db,
		func() map[string]string {
			return map[string]string{
				"cartPrimary":  primaryBreaker.State(),
				"cartFallback": fallbackBreaker.State(),
			}
		},
		[]byte(cfg.Auth.JWTSecret))

	router := api.NewRouter(handler)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout(),
		WriteTimeout: cfg.HTTPTimeout(),
	}

	// Start server in background
	go func() {
		log.Printf("[Server] Listening on :%d (db=%s, cache=%s)",
			cfg.Server.Port, cfg.Storage.SQLitePath, cfg.Storage.LevelDBPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Server] Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[Server] Forced shutdown: %v", err)
	}
	log.Println("[Server] Stopped")
}
