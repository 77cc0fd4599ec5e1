// Package main runs the pricescout automation service: a local JSON API that
// drives a shared Chrome session for competitor price scraping, POS listing
// automation, and stock record extraction.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/pricescout/pkg/automate"
	"github.com/entrhq/pricescout/pkg/browser"
	"github.com/entrhq/pricescout/pkg/config"
	"github.com/entrhq/pricescout/pkg/logging"
	"github.com/entrhq/pricescout/pkg/scrape"
	"github.com/entrhq/pricescout/pkg/server"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	BindAddress string
	ShowVersion bool
}

func main() {
	cliConfig := parseFlags()

	if cliConfig.ShowVersion {
		fmt.Printf("pricescout v%s\n", version)
		return
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cliConfig); err != nil {
		cancel()
		log.Printf("Execution failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cliConfig := &CLIConfig{}

	flag.StringVar(&cliConfig.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&cliConfig.BindAddress, "bind", "", "API bind address (overrides config)")
	flag.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pricescout - Browser Automation Service for Retail Pricing\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pricescout [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Run with defaults (API on 127.0.0.1:8077)\n")
		fmt.Fprintf(os.Stderr, "  pricescout\n\n")
		fmt.Fprintf(os.Stderr, "  # Run with a config file\n")
		fmt.Fprintf(os.Stderr, "  pricescout -config pricescout.yaml\n\n")
	}

	flag.Parse()
	return cliConfig
}

// run wires the service together and serves the API until shutdown.
func run(ctx context.Context, cliConfig *CLIConfig) error {
	cfg, err := loadConfig(cliConfig)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if validationErr := cfg.Validate(); validationErr != nil {
		return fmt.Errorf("invalid configuration: %w", validationErr)
	}

	logger, err := logging.NewLogger("pricescout")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Infof("Starting pricescout v%s (run %s)", version, logger.RunID())

	// One browser session shared by every operation. The manager attaches
	// lazily on first use and the watchdog terminates the process if the
	// browser dies.
	manager := browser.NewManager(cfg, logger)
	defer manager.Release()

	orchestrator := scrape.NewOrchestrator(manager, cfg.Scrape, logger)
	stockSync := automate.NewStockSync(manager, cfg, logger)
	lister := automate.NewLister(manager, cfg, logger, stockSync)

	apiServer := server.NewServer(cfg.Server, orchestrator, lister, stockSync, logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- apiServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}

	logger.Infof("Shutdown complete")
	return nil
}

// loadConfig loads configuration from file or defaults, applying CLI overrides.
func loadConfig(cliConfig *CLIConfig) (*config.Config, error) {
	path := cliConfig.ConfigFile
	if path == "" {
		defaultPath, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cliConfig.BindAddress != "" {
		cfg.Server.BindAddress = cliConfig.BindAddress
	}

	return cfg, nil
}
