/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the reconciliation engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Build the logger and the matching configuration
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Start the bank scheduler when enabled
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port              HTTP server port (default: 8080)
  -db                SQLite database path (default: reconciliation.db)
                     Use ":memory:" for in-memory database
  -profile           Matching profile: preset name (default, strict,
                     lenient) or path to a JSON profile file
  -date-window       Date window in days
  -amount-tolerance  Relative amount tolerance, e.g. 0.01
  -accept-threshold  Minimum name score, exclusive
  -similarity        dice | levenshtein
  -strategy          greedy | exclusive
  -bank-interval     Automated bank pass interval, e.g. 1h (0 disables)
  -log-dev           Human readable development logs

  Matching flags set explicitly on the command line override the profile.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/recon.db"

  # Stricter matching, one SAP document per sales line
  ./server -profile=strict

  # Lenient profile with a wider window
  ./server -profile=lenient -date-window=60

SEE ALSO:
  - api/server.go: Router configuration
  - factory/profile.go: Matching profiles
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/reconciliation-engine/api"
	"github.com/warp/reconciliation-engine/factory"
	"github.com/warp/reconciliation-engine/recon"
	"github.com/warp/reconciliation-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "reconciliation.db", "SQLite database path")
	profile := flag.String("profile", "default", "Matching profile name or JSON file")
	dateWindow := flag.Int("date-window", 50, "Date window in days")
	amountTolerance := flag.String("amount-tolerance", "0.01", "Relative amount tolerance")
	acceptThreshold := flag.Float64("accept-threshold", 0.6, "Minimum name score (exclusive)")
	similarity := flag.String("similarity", "dice", "Name similarity: dice or levenshtein")
	strategy := flag.String("strategy", "greedy", "Matching strategy: greedy or exclusive")
	bankInterval := flag.Duration("bank-interval", 0, "Automated bank pass interval (0 disables)")
	logDev := flag.Bool("log-dev", false, "Development logging")
	flag.Parse()

	logger, err := newLogger(*logDev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := loadProfile(*profile)
	if err != nil {
		logger.Fatal("Failed to load matching profile", zap.String("profile", *profile), zap.Error(err))
	}

	// Explicit flags win over the profile
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "date-window":
			cfg.DateWindowDays = *dateWindow
		case "amount-tolerance":
			tol, err := decimal.NewFromString(*amountTolerance)
			if err != nil {
				flagErr = fmt.Errorf("amount-tolerance: %w", err)
				return
			}
			cfg.AmountTolerance = tol
		case "accept-threshold":
			cfg.AcceptThreshold = *acceptThreshold
		case "similarity":
			cfg.Similarity = recon.SimilarityMetric(*similarity)
		case "strategy":
			cfg.Strategy = recon.Strategy(*strategy)
		}
	})
	if flagErr == nil {
		flagErr = cfg.Validate()
	}
	if flagErr != nil {
		logger.Fatal("Invalid matching configuration", zap.Error(flagErr))
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.String("db", *dbPath), zap.Error(err))
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, cfg, logger)

	// Background bank pass
	if *bankInterval > 0 {
		scheduler := api.NewBankScheduler(store, handler.Service, logger)
		scheduler.CheckInterval = *bankInterval
		handler.Scheduler = scheduler
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting",
			zap.Int("port", *port),
			zap.String("db", *dbPath),
			zap.Int("date_window_days", cfg.DateWindowDays),
			zap.Stringer("amount_tolerance", cfg.AmountTolerance),
			zap.Float64("accept_threshold", cfg.AcceptThreshold),
			zap.String("similarity", string(cfg.Similarity)),
			zap.String("strategy", string(cfg.Strategy)))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadProfile resolves a preset name first, then a JSON file path.
func loadProfile(name string) (recon.MatchingConfig, error) {
	f := factory.NewProfileFactory()
	if preset, ok := factory.Presets()[name]; ok {
		return f.ParseProfile(preset)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return recon.MatchingConfig{}, fmt.Errorf("unknown profile %q: %w", name, err)
	}
	return f.ParseProfile(string(data))
}
