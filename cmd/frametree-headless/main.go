// Package main provides the frametree headless runner for CI/CD page audits.
// It opens a page, prints its iframe tree on every poll, and writes a
// summary with the last observed trees when done.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/frametree/pkg/app"
	"github.com/entrhq/frametree/pkg/config"
	"github.com/entrhq/frametree/pkg/executor/headless"
	"github.com/entrhq/frametree/pkg/logging"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	StartURL    string
	ListenAddr  string
	Duration    time.Duration
	MaxPolls    int
	OutputDir   string
	Verbosity   string
	ShowVersion bool
}

func main() {
	cliConfig := parseFlags()

	if cliConfig.ShowVersion {
		fmt.Printf("frametree headless v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
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
	flag.StringVar(&cliConfig.StartURL, "url", "", "Page to open and track (required if no config file)")
	flag.StringVar(&cliConfig.ListenAddr, "listen", "", "Address for browser extension reports")
	flag.DurationVar(&cliConfig.Duration, "duration", 30*time.Second, "Stop after this long (0 runs until interrupted)")
	flag.IntVar(&cliConfig.MaxPolls, "polls", 0, "Stop after this many polls (0 means no limit)")
	flag.StringVar(&cliConfig.OutputDir, "output", "frametree-output", "Directory for execution.json and summary.md")
	flag.StringVar(&cliConfig.Verbosity, "verbosity", "", "quiet, normal, verbose or debug")
	flag.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "frametree headless - iframe tree audits for CI/CD\n\n")
		fmt.Fprintf(os.Stderr, "Usage: frametree-headless [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Watch a page for ten seconds\n")
		fmt.Fprintf(os.Stderr, "  frametree-headless -url https://example.com -duration 10s\n\n")
		fmt.Fprintf(os.Stderr, "  # Run with config file\n")
		fmt.Fprintf(os.Stderr, "  frametree-headless -config frametree.yaml -polls 5\n\n")
	}

	flag.Parse()
	return cliConfig
}

// loadConfig reads the config file, if any, and applies set flags over it
func loadConfig(cliConfig *CLIConfig) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cliConfig.ConfigFile)
	if err != nil {
		return nil, err
	}

	if cliConfig.StartURL != "" {
		cfg.StartURL = cliConfig.StartURL
	}
	if cliConfig.ListenAddr != "" {
		cfg.ListenAddr = cliConfig.ListenAddr
	}
	if cliConfig.Verbosity != "" {
		cfg.Logging.Verbosity = cliConfig.Verbosity
	}
	return cfg, nil
}

// run executes the headless mode
func run(ctx context.Context, cliConfig *CLIConfig) error {
	cfg, err := loadConfig(cliConfig)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return fmt.Errorf("invalid configuration: %w", validationErr)
	}

	logger, err := logging.NewLogger("frametree-headless")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	console := headless.NewLogger(headless.ParseLogLevel(cfg.Logging.Verbosity))

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	console.Step("Starting frame sources")
	startErr := a.Start(ctx)
	defer func() {
		cancel()
		if err := a.Close(); err != nil {
			console.Warningf("shutdown: %v", err)
		}
	}()
	if startErr != nil {
		return startErr
	}
	if cfg.ListenAddr != "" {
		console.Infof("Listening for extension reports on %s", cfg.ListenAddr)
	}
	for _, info := range a.BrowserSessions() {
		console.Infof("Tracking session %s at %s (%d frames)", info.ID, info.CurrentURL, info.Frames)
	}

	executor := headless.NewExecutor(a, headless.Config{
		StartURL:    cfg.StartURL,
		Interval:    cfg.PollInterval,
		Duration:    cliConfig.Duration,
		MaxPolls:    cliConfig.MaxPolls,
		JSON:        cfg.Output.JSON,
		Highlight:   cfg.Output.Highlight,
		ArtifactDir: cliConfig.OutputDir,
	}, console, logger.With("headless"))

	go func() {
		select {
		case err := <-a.Errors():
			console.Errorf("%v", err)
			cancel()
		case <-ctx.Done():
		}
	}()

	return executor.Run(ctx)
}
