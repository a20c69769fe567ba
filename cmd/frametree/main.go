// Package main provides the frametree terminal application.
// It opens a page in a playwright-driven browser (or listens for reports
// from a browser extension), tracks every iframe that loads, and shows the
// reconstructed iframe tree live in the terminal.
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
	"github.com/entrhq/frametree/pkg/executor/tui"
	"github.com/entrhq/frametree/pkg/logging"
)

const version = "0.1.0" // Version of frametree

// Flags holds the command line configuration
type Flags struct {
	ConfigFile  string
	StartURL    string
	ListenAddr  string
	Interval    time.Duration
	Headed      bool
	Evaluate    bool
	JSON        bool
	Highlight   bool
	Headless    bool
	Duration    time.Duration
	MaxPolls    int
	OutputDir   string
	Verbosity   string
	ShowVersion bool
}

func main() {
	flags := parseFlags()

	if flags.ShowVersion {
		fmt.Printf("frametree v%s\n", version)
		return
	}

	cfg, err := buildConfig(flags)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Create context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	if runErr := run(ctx, cfg, flags); runErr != nil {
		cancel()
		log.Fatalf("Application error: %v", runErr)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *Flags {
	flags := &Flags{}

	flag.StringVar(&flags.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&flags.StartURL, "url", "", "Page to open and track")
	flag.StringVar(&flags.ListenAddr, "listen", "", "Address for browser extension reports, e.g. 127.0.0.1:7878")
	flag.DurationVar(&flags.Interval, "interval", config.DefaultPollInterval, "How often to refresh the tree")
	flag.BoolVar(&flags.Headed, "headed", false, "Show the browser window")
	flag.BoolVar(&flags.Evaluate, "evaluate", false, "Measure depth inside each frame instead of via frame handles")
	flag.BoolVar(&flags.JSON, "json", false, "Show the JSON tree above the indented view")
	flag.BoolVar(&flags.Highlight, "highlight", false, "Syntax highlight the JSON tree")
	flag.BoolVar(&flags.Headless, "headless", false, "Print trees to stdout instead of running the TUI")
	flag.DurationVar(&flags.Duration, "duration", 0, "Headless: stop after this long (0 runs until interrupted)")
	flag.IntVar(&flags.MaxPolls, "polls", 0, "Headless: stop after this many polls (0 means no limit)")
	flag.StringVar(&flags.OutputDir, "output", "", "Headless: directory for execution.json and summary.md")
	flag.StringVar(&flags.Verbosity, "verbosity", "", "Headless: quiet, normal, verbose or debug")
	flag.BoolVar(&flags.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "frametree - live iframe tree of a web page\n\n")
		fmt.Fprintf(os.Stderr, "Usage: frametree [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # TUI Mode (default)\n")
		fmt.Fprintf(os.Stderr, "  frametree -url https://example.com\n")
		fmt.Fprintf(os.Stderr, "  frametree -listen 127.0.0.1:7878              # Browser extension reports\n")
		fmt.Fprintf(os.Stderr, "  frametree -config frametree.yaml\n")
		fmt.Fprintf(os.Stderr, "\n  # Headless Mode (CI/CD)\n")
		fmt.Fprintf(os.Stderr, "  frametree -headless -url https://example.com -polls 3 -output ./frametree-out\n")
	}

	flag.Parse()
	return flags
}

// buildConfig loads the config file and applies explicitly set flags over it
func buildConfig(flags *Flags) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(flags.ConfigFile)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.StartURL = flags.StartURL
		case "listen":
			cfg.ListenAddr = flags.ListenAddr
		case "interval":
			cfg.PollInterval = flags.Interval
		case "headed":
			cfg.Browser.Headless = !flags.Headed
		case "evaluate":
			cfg.Browser.Evaluate = flags.Evaluate
		case "json":
			cfg.Output.JSON = flags.JSON
		case "highlight":
			cfg.Output.Highlight = flags.Highlight
		case "verbosity":
			cfg.Logging.Verbosity = flags.Verbosity
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run starts the frame sources and the selected executor
func run(ctx context.Context, cfg *config.Config, flags *Flags) error {
	logger, err := logging.NewLogger("frametree")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case err := <-a.Errors():
			logger.Errorf("Stopping: %v", err)
			cancel()
		case <-ctx.Done():
		}
	}()

	startErr := a.Start(ctx)
	defer func() {
		cancel()
		if err := a.Close(); err != nil {
			logger.Warnf("Shutdown: %v", err)
		}
	}()
	if startErr != nil {
		return startErr
	}

	if flags.Headless {
		return runHeadless(ctx, a, cfg, flags, logger)
	}
	return runTUI(ctx, a, cfg, logger)
}

// runTUI executes the TUI mode
func runTUI(ctx context.Context, a *app.App, cfg *config.Config, logger *logging.Logger) error {
	title := cfg.StartURL
	if title == "" {
		title = "listening on " + cfg.ListenAddr
	}

	executor := tui.NewExecutor(a, tui.Options{
		Interval:  cfg.PollInterval,
		JSON:      cfg.Output.JSON,
		Highlight: cfg.Output.Highlight,
		Title:     title,
	}, logger.With("tui"))
	return executor.Run(ctx)
}

// runHeadless executes the headless mode
func runHeadless(ctx context.Context, a *app.App, cfg *config.Config, flags *Flags, logger *logging.Logger) error {
	console := headless.NewLogger(headless.ParseLogLevel(cfg.Logging.Verbosity))
	console.Verbosef("Log file: %s", logger.LogPath())

	executor := headless.NewExecutor(a, headless.Config{
		StartURL:    cfg.StartURL,
		Interval:    cfg.PollInterval,
		Duration:    flags.Duration,
		MaxPolls:    flags.MaxPolls,
		JSON:        cfg.Output.JSON,
		Highlight:   cfg.Output.Highlight,
		ArtifactDir: flags.OutputDir,
	}, console, logger.With("headless"))
	return executor.Run(ctx)
}
