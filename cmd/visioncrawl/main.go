package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cryptohist/visioncrawl/internal/archive"
	"github.com/cryptohist/visioncrawl/internal/config"
	"github.com/cryptohist/visioncrawl/internal/fetch"
	"github.com/cryptohist/visioncrawl/internal/manifest"
	"github.com/cryptohist/visioncrawl/internal/pipeline"
	"github.com/cryptohist/visioncrawl/internal/series"
)

const version = "v1.2.0"

var (
	flagConfig      string
	flagAssets      []string
	flagGranularity string
	flagDataDir     string
	flagConcurrency int
	flagClearCache  bool
	flagDebug       bool
)

// rootCmd is the base command for the visioncrawl CLI.
var rootCmd = &cobra.Command{
	Use:     "visioncrawl",
	Short:   "Historical kline archive crawler",
	Version: version,
	Long: `visioncrawl ingests the monthly kline archives published by the public
data store, verifies their integrity, normalizes them into per-asset series
and records coverage gaps in a run manifest.`,
}

// crawlCmd runs the ingestion for a set of assets.
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl archive history for the given assets",
	Long: `Crawl walks each asset backward month-by-month from two months before
today until the store reports no earlier data, then writes the assembled
series and the coverage manifest under the data directory.

Example usage:
  visioncrawl crawl --assets BTC,ETH --granularity 1m
  visioncrawl crawl --assets SOL --granularity 1h --concurrency 8`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVar(&flagConfig, "config", "config/crawler.yaml", "Path to the crawler configuration file")
	crawlCmd.Flags().StringSliceVar(&flagAssets, "assets", nil, "Asset symbols to crawl (required)")
	crawlCmd.Flags().StringVar(&flagGranularity, "granularity", "", "Sampling interval label, e.g. 1m or 1h")
	crawlCmd.Flags().StringVar(&flagDataDir, "data-dir", "", "Root of the local data directory")
	crawlCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Concurrent asset pipelines")
	crawlCmd.Flags().BoolVar(&flagClearCache, "clear-cache", false, "Remove the download tier after the run")
	crawlCmd.Flags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	cobra.CheckErr(crawlCmd.MarkFlagRequired("assets"))
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	if flagDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagGranularity != "" {
		cfg.Granularity = flagGranularity
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagConcurrency > 0 {
		cfg.Concurrency = flagConcurrency
	}
	if flagClearCache {
		cfg.ClearCache = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	assets := make([]string, 0, len(flagAssets))
	for _, asset := range flagAssets {
		asset = strings.ToUpper(strings.TrimSpace(asset))
		if asset != "" {
			assets = append(assets, asset)
		}
	}
	if len(assets) == 0 {
		return fmt.Errorf("no assets given")
	}

	end := archive.EndUnit(time.Now())
	man := manifest.New(cfg.Granularity)
	starts, err := manifest.LoadStartDates(filepath.Join(cfg.DataDir, "start_dates.json"))
	if err != nil {
		return err
	}

	client := fetch.New(fetchConfig(cfg.Fetch))
	downloader := archive.NewDownloader(client, cfg.BaseURL, cfg.DataDir)
	extractor := series.NewExtractor(cfg.DataDir)

	log.Info().
		Str("run_id", man.RunID()).
		Str("granularity", cfg.Granularity).
		Int("assets", len(assets)).
		Int("concurrency", cfg.Concurrency).
		Stringer("end", end).
		Msg("crawl starting")

	sched := pipeline.NewScheduler(pipeline.SchedulerConfig{
		Quote:         cfg.Quote,
		Granularity:   cfg.Granularity,
		BirthYear:     cfg.BirthYear,
		End:           end,
		Concurrency:   cfg.Concurrency,
		ClearExtracts: cfg.ClearExtracts,
	}, downloader, extractor, man, starts)

	summary := sched.Run(cmd.Context(), assets)

	manifestPath := filepath.Join(cfg.DataDir, archive.ResultsTier, cfg.Granularity, "manifest.json")
	if err := manifest.Save(man.Finalize(), manifestPath); err != nil {
		return err
	}
	if err := starts.Save(); err != nil {
		return err
	}

	if cfg.ClearCache {
		if err := os.RemoveAll(filepath.Join(cfg.DataDir, archive.DownloadsTier)); err != nil {
			log.Warn().Err(err).Msg("could not clear download cache")
		}
	}

	for _, failure := range summary.Failures {
		log.Warn().Str("asset", failure.Asset).Err(failure.Err).Msg("asset failed")
	}
	log.Info().
		Int("completed", summary.Completed).
		Int("empty", summary.Empty).
		Int("failed", len(summary.Failures)).
		Dur("elapsed", summary.Elapsed).
		Str("manifest", manifestPath).
		Msg("crawl finished")

	if summary.Completed == 0 && len(summary.Failures) > 0 {
		return fmt.Errorf("all %d assets failed", len(summary.Failures))
	}
	return nil
}

func fetchConfig(fc config.FetchConfig) fetch.Config {
	cfg := fetch.DefaultConfig()
	if fc.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Duration(fc.RequestTimeoutSeconds) * time.Second
	}
	if fc.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = fc.RequestsPerSecond
	}
	if fc.Burst > 0 {
		cfg.Burst = fc.Burst
	}
	return cfg
}
