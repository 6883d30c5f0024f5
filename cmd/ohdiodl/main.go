package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ohdiodl/internal/config"
	"ohdiodl/internal/download"
	"ohdiodl/internal/fetch"
	"ohdiodl/internal/scrape"
)

func main() {
	var (
		configFlag   = flag.String("config", "", "Path to config file")
		urlFlag      = flag.String("url", "", "Single audiobook page URL to download")
		categoryFlag = flag.String("category", "", "Category page URL (defaults to Jeunesse)")
		outputFlag   = flag.String("output", "", "Output directory (overrides config)")
		verboseFlag  = flag.Bool("verbose", false, "Show verbose output")
		dryRunFlag   = flag.Bool("dry-run", false, "Discover and extract metadata without downloading")
	)
	flag.Parse()

	// Load config
	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if *outputFlag != "" {
		settings.OutputDirectory = *outputFlag
	}

	logger := newLogger(*verboseFlag)
	defer logger.Sync()

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cancelling...")
		cancel()
	}()

	fmt.Println("OHdio Downloader")
	fmt.Println("----------------------------------------")
	fmt.Println()

	if *dryRunFlag {
		if err := dryRun(ctx, settings, logger, *urlFlag, *categoryFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	manager := download.NewManager(settings, func(event download.ProgressEvent) {
		if event.Level == download.LevelVerbose && !*verboseFlag {
			return
		}
		prefix := "   "
		switch event.Level {
		case download.LevelError:
			prefix = "[x] "
		case download.LevelWarning:
			prefix = "[!] "
		case download.LevelSuccess:
			prefix = "[+] "
		case download.LevelInfo:
			prefix = "[i] "
		}
		fmt.Println(prefix + event.Message)
	}, logger)

	var err error
	if *urlFlag != "" {
		err = manager.RunSingle(ctx, *urlFlag)
	} else {
		err = manager.Run(ctx, *categoryFlag)
	}
	if err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nRun cancelled.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	s := manager.Stats().Snapshot()
	fmt.Println()
	fmt.Println("----------------------------------------")
	fmt.Printf("Complete! %d downloaded, %d skipped, %d failed out of %d (%.0f%% success)\n",
		s.Downloaded, s.Skipped, s.Failed, s.Discovered, s.SuccessRate())
}

// dryRun discovers and extracts metadata without touching the
// downloader.
func dryRun(ctx context.Context, settings *config.Settings, logger *zap.Logger, bookURL, categoryURL string) error {
	client := fetch.NewClient(fetch.Options{
		MaxRetries: settings.RetryAttempts,
		BaseDelay:  time.Duration(settings.DelayBetweenRequests * float64(time.Second)),
		Headers:    settings.Headers(),
	}, logger)
	extractor := scrape.NewExtractor(client, scrape.NewResolver(client, logger), logger)

	urls := []string{bookURL}
	if bookURL == "" {
		entries, err := scrape.NewDiscoverer(client, logger).Discover(ctx, categoryURL)
		if err != nil {
			return err
		}
		fmt.Printf("Found %d audiobook(s)\n\n", len(entries))
		urls = urls[:0]
		for _, entry := range entries {
			urls = append(urls, entry.URL)
		}
	}

	for _, u := range urls {
		md, err := extractor.Extract(ctx, u)
		if err != nil {
			fmt.Printf("[x] %s: %v\n", u, err)
			continue
		}
		playlist := md.PlaylistURL
		if playlist == "" {
			playlist = "(not resolved)"
		}
		fmt.Printf("[+] %s by %s\n    playlist: %s\n", md.Title, md.Author, playlist)
	}

	fmt.Println("\n[Dry run - nothing downloaded]")
	return nil
}

// newLogger builds the zap logger: human-readable debug output in
// verbose mode, warnings and up otherwise.
func newLogger(verbose bool) *zap.Logger {
	if verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
		return zap.NewNop()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
