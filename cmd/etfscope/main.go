// etfscope — ETF holdings extraction pipeline and snapshot API.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rvellore/etfscope/api"
	"github.com/rvellore/etfscope/internal/config"
	"github.com/rvellore/etfscope/internal/lake"
	"github.com/rvellore/etfscope/internal/news"
	"github.com/rvellore/etfscope/internal/pipeline"
	"github.com/rvellore/etfscope/internal/scraper"
	"github.com/rvellore/etfscope/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	// A local .env may carry overrides during development; absence is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "etfscope",
	Short: "etfscope — ETF holdings extraction pipeline and snapshot API",
	Long: `etfscope scrapes ETF holdings from the upstream research site,
normalizes them into snapshot records, persists raw and processed
artifacts into a local data lake, and serves the latest snapshot per
symbol over a read-side HTTP API.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		configureLogging(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(startCmd)
}

// configureLogging applies the logging section of the config.
func configureLogging(cfg *config.Config) {
	if lvl, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.Logging.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("etfscope %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Run Command ---

var runCmd = &cobra.Command{
	Use:   "run [symbols...]",
	Short: "Run one ETL pass over the configured (or given) symbols",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, p, err := buildPipeline(cfg, nil)
		if err != nil {
			return err
		}

		symbols := cfg.Scraper.ETFSymbols
		if len(args) > 0 {
			symbols = args
		}

		result := p.Run(cmd.Context(), symbols)
		printRunResult(result)
		return nil
	},
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-side API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveAPI(cfg)
	},
}

// --- Start Command ---

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run one ETL pass, then start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, p, err := buildPipeline(cfg, nil)
		if err != nil {
			return err
		}

		result := p.Run(cmd.Context(), cfg.Scraper.ETFSymbols)
		printRunResult(result)

		return serveAPI(cfg)
	},
}

// buildPipeline wires the scraper, the lake, and the pipeline from config.
func buildPipeline(cfg *config.Config, sink pipeline.EventSink) (*lake.Lake, *pipeline.Pipeline, error) {
	lk, err := lake.New(cfg.Lake.BasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open data lake: %w", err)
	}

	sc := scraper.New(scraper.Config{
		BaseURL:        cfg.Scraper.BaseURL,
		MaxRows:        cfg.Scraper.MaxHoldings,
		RequestsPerSec: cfg.Scraper.RequestsPerSec,
	})

	p := pipeline.New(sc, lk, pipeline.Options{
		Workers: cfg.Scraper.MaxWorkers,
		Sink:    sink,
	})
	return lk, p, nil
}

// serveAPI builds and runs the read-side server until interrupted.
func serveAPI(cfg *config.Config) error {
	lk, err := lake.New(cfg.Lake.BasePath)
	if err != nil {
		return fmt.Errorf("open data lake: %w", err)
	}

	srv := api.NewServer(cfg, lk, news.New(), newRunner(cfg))
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	return srv.ListenAndServe(addr)
}

// newRunner returns the on-demand refresh runner used by the API.
func newRunner(cfg *config.Config) api.Runner {
	return func(ctx context.Context, sink pipeline.EventSink) models.PipelineRunResult {
		_, p, err := buildPipeline(cfg, sink)
		if err != nil {
			log.WithField("cause", err.Error()).Error("refresh pipeline setup failed")
			return models.PipelineRunResult{}
		}
		return p.Run(ctx, cfg.Scraper.ETFSymbols)
	}
}

// printRunResult renders the run counters the way operators expect them.
func printRunResult(result models.PipelineRunResult) {
	line := strings.Repeat("=", 50)
	fmt.Println("\n" + line)
	fmt.Println("ETL PIPELINE RESULTS")
	fmt.Println(line)
	fmt.Printf("Symbols processed: %d\n", result.SymbolsProcessed)
	fmt.Printf("Successful extractions: %d\n", result.SuccessfulExtractions)
	fmt.Printf("Successful transformations: %d\n", result.SuccessfulTransformations)
	fmt.Printf("Duration: %.2f seconds\n", result.DurationSeconds)
	fmt.Println(line)
}
