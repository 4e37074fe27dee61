// Package main provides the bibtex2dblp CLI entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/bilgehanertan/bibtex2dblp/internal/bibtex"
	"github.com/bilgehanertan/bibtex2dblp/internal/checkpoint"
	"github.com/bilgehanertan/bibtex2dblp/internal/config"
	"github.com/bilgehanertan/bibtex2dblp/internal/dblp"
	"github.com/bilgehanertan/bibtex2dblp/internal/match"
	"github.com/bilgehanertan/bibtex2dblp/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	defaultOutputFile = "output.bib"
	defaultLogFile    = "log.csv"
)

var (
	flagConfig  string
	flagLimit   int
	flagCacheDB string
	flagVerbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bibtex2dblp <input.bib> [output.bib] [log.csv]",
	Short: "Convert BibTeX entries to canonical DBLP entries",
	Long: `bibtex2dblp rewrites the entries of a BibTeX file with canonical DBLP
metadata. Each entry is looked up against the DBLP search API; candidates
are scored by fuzzy title similarity and author-list distance, and only
confident matches are rewritten. Everything else passes through unchanged.

The CSV log doubles as a checkpoint ledger: re-running with the same log
file skips entries that are already processed, so interrupted runs resume
where they left off.

Defaults: output.bib and log.csv in the working directory.`,
	Args:          cobra.RangeArgs(1, 3),
	RunE:          runConvert,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Load .env if present (for DBLP_API_URL)
	_ = godotenv.Load()

	rootCmd.Version = Version
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "Path to config.yml (default: ~/.config/bibtex2dblp/config.yml)")
	rootCmd.Flags().IntVar(&flagLimit, "limit", 0, "Stop after processing this many new entries (0 = no limit)")
	rootCmd.Flags().StringVar(&flagCacheDB, "cache-db", "", "SQLite lookup cache path (overrides config)")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}

func runConvert(cmd *cobra.Command, args []string) error {
	logger := newLogger(flagVerbose)
	slog.SetDefault(logger)

	inputPath := args[0]
	outputPath := defaultOutputFile
	logPath := defaultLogFile
	if len(args) > 1 {
		outputPath = args[1]
	}
	if len(args) > 2 {
		logPath = args[2]
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if flagCacheDB != "" {
		cfg.CacheDB = flagCacheDB
	}

	entries, syntaxErrs, err := bibtex.ParseFile(inputPath)
	if err != nil {
		exitWithError(ExitDataError, "reading %s: %v", inputPath, err)
	}
	for _, se := range syntaxErrs {
		logger.Warn("malformed bibtex input", "key", se.Key, "err", se.Msg)
	}
	logger.Info("loaded input", "file", inputPath, "entries", len(entries))

	store, err := checkpoint.Open(logPath)
	if err != nil {
		exitWithError(ExitError, "opening log file: %v", err)
	}
	defer store.Close()
	if store.Count() > 0 {
		logger.Info("resuming run", "already_processed", store.Count())
	}

	clientOpts := []dblp.ClientOption{
		dblp.WithBaseURL(cfg.APIURL),
		dblp.WithMaxResults(cfg.MaxResults),
		dblp.WithRateLimit(cfg.RatePerSecond),
		dblp.WithRetry(cfg.Retry.MaxAttempts, cfg.RetryBaseDelay(), cfg.RetryMaxDelay()),
		dblp.WithHTTPClient(newHTTPClient(cfg)),
	}
	if cfg.CacheDB != "" {
		cache, err := dblp.OpenCache(cfg.CacheDB)
		if err != nil {
			exitWithError(ExitError, "opening lookup cache: %v", err)
		}
		defer cache.Close()
		clientOpts = append(clientOpts, dblp.WithCache(cache))
	}
	client := dblp.NewClient(clientOpts...)

	matcher := match.Matcher{
		TitleThreshold:  cfg.TitleThreshold(),
		AuthorThreshold: cfg.AuthorThreshold(),
	}

	p := pipeline.New(client, matcher, store, outputPath,
		pipeline.WithLimit(flagLimit),
		pipeline.WithLogger(logger),
	)

	summary, err := p.Run(context.Background(), entries)
	if err != nil {
		exitWithError(ExitError, "run aborted: %v", err)
	}

	logger.Info("run complete",
		"total", summary.Total,
		"skipped", summary.Skipped,
		"processed", summary.Processed,
		"matched", summary.Matched,
		"unmatched", summary.Unmatched,
		"failed", summary.Failed)
	fmt.Printf("Processed %d entries (%d matched, %d unmatched, %d failed, %d skipped). See %s and %s.\n",
		summary.Processed, summary.Matched, summary.Unmatched, summary.Failed, summary.Skipped,
		outputPath, logPath)

	return nil
}

func newHTTPClient(cfg config.Config) *http.Client {
	return &http.Client{Timeout: cfg.Timeout()}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitWithError prints an error to stderr and exits.
func exitWithError(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(code)
}
