/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the debt engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present), config file, then flags
  2. Initialize SQLite store
  3. Create accrual engine and API handler
  4. Configure HTTP router, start background scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Optional config file (yaml or json)
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: ./data/debts.db)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the accrual scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/debts.db"

  # Run with a config file
  ./server -config=config.yaml

ENVIRONMENT:
  PORT, DEBT_DB_PATH, SCHEDULER_INTERVAL, SCHEDULER_ENABLED override
  file config. A local .env file is loaded first when present.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
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

	"github.com/joho/godotenv"

	"github.com/warp/debt-engine/api"
	"github.com/warp/debt-engine/config"
	"github.com/warp/debt-engine/debt"
	"github.com/warp/debt-engine/id"
	"github.com/warp/debt-engine/store/sqlite"
)

func main() {
	// .env is optional; missing file is fine
	_ = godotenv.Load()

	// Flags
	configPath := flag.String("config", "", "Config file path (yaml or json)")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize engine and handler
	engine := debt.NewEngine(store, id.New)
	handler := api.NewHandler(store, engine)

	// Create router
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	// Background accrual scheduler
	interval, err := cfg.Scheduler.ParseInterval()
	if err != nil {
		log.Fatalf("Invalid scheduler interval: %v", err)
	}
	scheduler := api.NewAccrualScheduler(store, engine)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = interval
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
