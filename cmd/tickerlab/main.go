// tickerlab aggregates equity ticker metadata, news and price history from
// several upstream sources.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/tickerlab/api"
	"github.com/seenimoa/tickerlab/internal/analysis/gaps"
	"github.com/seenimoa/tickerlab/internal/config"
	"github.com/seenimoa/tickerlab/internal/datasource"
	"github.com/seenimoa/tickerlab/internal/logger"
	"github.com/seenimoa/tickerlab/internal/reconcile"
	"github.com/seenimoa/tickerlab/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global state initialised in PersistentPreRunE.
var (
	cfg *config.Config
	log zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tickerlab",
	Short: "tickerlab: multi-source equity ticker aggregator",
	Long: `tickerlab merges ticker profiles, news, intraday candles and
gap-and-fade statistics from Yahoo Finance, Polygon, Finviz, Google Finance,
KnowTheFloat and DilutionTracker into one normalized response.`,
	SilenceUsage: true,
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

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		log = logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		logger.SetGlobalLogger(log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(intradayCmd)
	rootCmd.AddCommand(gapsCmd)
}

// newAggregator wires the adapter client from config.
func newAggregator() *datasource.Aggregator {
	client := datasource.NewFromConfig(cfg, log)
	return datasource.NewAggregator(client, reconcile.NewsOptions{
		RecencyDays: cfg.News.RecencyDays,
		MaxItems:    cfg.News.MaxItems,
	})
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func symbolArg(args []string) (string, error) {
	return utils.NormalizeSymbol(args[0])
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tickerlab %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.API.Port = port
		}
		agg := newAggregator()
		if !agg.Client().HasPolygonKey() {
			log.Warn().Msg("POLYGON_API_KEY not configured; polygon sources will report a configuration error")
		}
		srv := api.NewServer(cfg, agg, agg.Client().Location(), log)
		return srv.ListenAndServe(cfg.Addr())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
}

// --- Profile Command ---

var profileCmd = &cobra.Command{
	Use:   "profile [symbol]",
	Short: "Print the merged profile for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sym, err := symbolArg(args)
		if err != nil {
			return err
		}
		return printJSON(newAggregator().Profile(cmd.Context(), sym))
	},
}

// --- News Command ---

var newsCmd = &cobra.Command{
	Use:   "news [symbol]",
	Short: "Print merged recent news for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sym, err := symbolArg(args)
		if err != nil {
			return err
		}
		return printJSON(newAggregator().News(cmd.Context(), sym))
	},
}

// --- Intraday Command ---

var intradayCmd = &cobra.Command{
	Use:   "intraday [symbol]",
	Short: "Print 1-minute candles for one trading day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sym, err := symbolArg(args)
		if err != nil {
			return err
		}
		agg := newAggregator()
		loc := agg.Client().Location()

		day := time.Now().In(loc)
		if d, _ := cmd.Flags().GetString("date"); d != "" {
			if day, err = utils.ParseDay(d, loc); err != nil {
				return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
			}
		}

		resp, err := agg.Intraday(cmd.Context(), sym, day)
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

func init() {
	intradayCmd.Flags().String("date", "", "trading day YYYY-MM-DD (default: today in the market timezone)")
}

// --- Gaps Command ---

var gapsCmd = &cobra.Command{
	Use:   "gaps [symbol]",
	Short: "Print gap-and-fade statistics over daily bars",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sym, err := symbolArg(args)
		if err != nil {
			return err
		}
		months := cfg.Gaps.DefaultMonths
		if cmd.Flags().Changed("months") {
			months, _ = cmd.Flags().GetInt("months")
		}
		if err := gaps.ValidateMonths(months); err != nil {
			return err
		}
		threshold := cfg.Gaps.DefaultThreshold
		if cmd.Flags().Changed("threshold") {
			threshold, _ = cmd.Flags().GetFloat64("threshold")
		}
		if err := gaps.ValidateThreshold(threshold); err != nil {
			return err
		}
		return printJSON(newAggregator().Gaps(cmd.Context(), sym, months, threshold))
	},
}

func init() {
	gapsCmd.Flags().Int("months", gaps.DefaultMonths, "lookback in months, 6-12 (default from config)")
	gapsCmd.Flags().Float64("threshold", gaps.DefaultThreshold, "minimum gap-up percentage, 0-200")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc := utils.LoadLocation(cfg.Market.Timezone)
		now := time.Now().In(loc)

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  tickerlab System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Market Status: %s\n", utils.MarketStatus(now, loc))
		fmt.Printf("  Time (%s): %s\n", loc.String(), now.Format("2006-01-02 15:04:05"))
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    API Server:    %s\n", cfg.Addr())
		fmt.Printf("    Polygon:       %s (timeout %s)\n", cfg.Polygon.BaseURL, cfg.Polygon.Timeout)
		fmt.Printf("    Scrape:        timeout %s\n", cfg.Sources.ScrapeTimeout)
		fmt.Printf("    Caches:        profile %d/%s, intraday %d/%s, daily %d/%s\n",
			cfg.Cache.Profile.Capacity, cfg.Cache.Profile.TTL,
			cfg.Cache.Intraday.Capacity, cfg.Cache.Intraday.TTL,
			cfg.Cache.Daily.Capacity, cfg.Cache.Daily.TTL)
		fmt.Printf("    News:          last %d days, max %d items\n", cfg.News.RecencyDays, cfg.News.MaxItems)
		fmt.Printf("    Gaps:          %d months, threshold %g%%\n", cfg.Gaps.DefaultMonths, cfg.Gaps.DefaultThreshold)
		fmt.Println()

		// API keys status
		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
