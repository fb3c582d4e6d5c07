package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/priceowl/priceowl/internal/check"
	"github.com/priceowl/priceowl/internal/config"
	"github.com/priceowl/priceowl/internal/database"
	"github.com/priceowl/priceowl/internal/fetch"
	"github.com/priceowl/priceowl/internal/importer"
	"github.com/priceowl/priceowl/internal/ingest"
	"github.com/priceowl/priceowl/internal/render"
	"github.com/priceowl/priceowl/internal/scrape"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "priceowl",
	Short:   "Price-comparison scraping pipeline",
	Long:    "PriceOwl scrapes partner storefronts with per-store selector profiles and ingests their catalogs into a shared product table.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q", logLevel)
		}
		log.SetLevel(level)

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Logging.Level != "" && !cmd.Flags().Changed("loglevel") {
			if level, err := log.ParseLevel(cfg.Logging.Level); err == nil {
				log.SetLevel(level)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(storesCmd)
	rootCmd.AddCommand(queriesCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(reimportCmd)
	rootCmd.AddCommand(clicksCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("priceowl", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/priceowl/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to tune workers and politeness intervals, then add store profiles.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog and pipeline status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Stores:")
		fmt.Printf("  Total: %d\n", stats.TotalStores)
		fmt.Printf("  Scrapable: %d\n", stats.ScrapableStores)
		fmt.Println("\nImport queries:")
		fmt.Printf("  Total: %d\n", stats.TotalQueries)
		fmt.Printf("  Active: %d\n", stats.ActiveQueries)
		fmt.Println("\nProducts:")
		fmt.Printf("  Total: %d\n", stats.TotalProducts)
		fmt.Printf("  Active: %d\n", stats.ActiveProducts)
		fmt.Printf("  Available: %d\n", stats.AvailableProducts)
		fmt.Printf("\nClicks recorded: %d\n", stats.TotalClicks)

		top, err := db.TopClickedProducts(5)
		if err != nil {
			return err
		}
		if len(top) > 0 {
			fmt.Println("\nMost clicked products:")
			for _, cc := range top {
				fmt.Printf("  %4d  %s\n", cc.Clicks, cc.Product.Name)
			}
		}
		return nil
	},
}

// --- check command ---

var checkCmd = &cobra.Command{
	Use:   "check [store]",
	Short: "Check that a store profile still yields usable data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		store, err := db.GetStoreByName(args[0])
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("store %q not found", args[0])
		}

		client, browser := newFetcher()
		defer browser.Close()
		extractor := scrape.NewExtractor(client, searchPageDelay())

		checker := check.New(db, client, extractor, cfg.Check.Queries)
		ok, err := checker.Check(store)
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("%s is compatible with scraping.\n", store.Name)
		} else {
			reason := ""
			if store.NotScrapableReason != nil {
				reason = *store.NotScrapableReason
			}
			fmt.Printf("%s is NOT scrapable: %s\n", store.Name, reason)
		}
		return nil
	},
}

// --- import / reimport commands ---

var (
	importStore  string
	importRegion string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Search every active query and import the resulting products",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		imp, browser := newImporter(db)
		defer browser.Close()
		ctx := context.Background()

		var result *importer.Result
		if importStore != "" {
			store, err := db.GetStoreByName(importStore)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("store %q not found", importStore)
			}
			result, err = imp.ImportStore(ctx, store)
			if err != nil {
				return err
			}
		} else {
			result, err = imp.ImportAll(ctx, importRegion)
			if err != nil {
				return err
			}
		}

		fmt.Println("Import complete:")
		fmt.Printf("  Units run: %d (%d with failures)\n", result.Units, result.FailedUnits)
		fmt.Printf("  Products created: %d\n", result.Created)
		fmt.Printf("  Products updated: %d\n", result.Updated)
		return nil
	},
}

var reimportStore string

var reimportCmd = &cobra.Command{
	Use:   "reimport",
	Short: "Re-fetch and re-ingest already-known products, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		imp, browser := newImporter(db)
		defer browser.Close()
		ctx := context.Background()

		var result *importer.Result
		if reimportStore != "" {
			store, err := db.GetStoreByName(reimportStore)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("store %q not found", reimportStore)
			}
			result, err = imp.ReimportStore(ctx, store)
			if err != nil {
				return err
			}
		} else {
			result, err = imp.ReimportAll(ctx)
			if err != nil {
				return err
			}
		}

		fmt.Println("Re-import complete:")
		fmt.Printf("  Products created: %d\n", result.Created)
		fmt.Printf("  Products updated: %d\n", result.Updated)
		fmt.Printf("  Products deactivated: %d\n", result.Deactivated)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importStore, "store", "", "Import a single store by name")
	importCmd.Flags().StringVar(&importRegion, "region", "", "Limit import to stores in a region (USA, ITA, CHN, OTH)")
	reimportCmd.Flags().StringVar(&reimportStore, "store", "", "Re-import a single store by name")
}

// --- clicks command ---

var clicksCmd = &cobra.Command{
	Use:   "clicks",
	Short: "Record product click feedback",
}

var (
	clickQuery string
	clickPage  int
)

var clicksAddCmd = &cobra.Command{
	Use:   "add [product-id]",
	Short: "Record a click on a product, bumping its query's priority",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var query *string
		if clickQuery != "" {
			query = &clickQuery
		}
		var page *int
		if clickPage > 0 {
			page = &clickPage
		}

		if err := db.RecordClick(args[0], query, page); err != nil {
			return err
		}
		fmt.Printf("Recorded click for %s\n", args[0])
		return nil
	},
}

func init() {
	clicksAddCmd.Flags().StringVar(&clickQuery, "query", "", "Search query the click came from")
	clicksAddCmd.Flags().IntVar(&clickPage, "page", 0, "Result page the click came from")
	clicksCmd.AddCommand(clicksAddCmd)
}

// --- queries command ---

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Manage import queries",
}

var (
	queryPriority string
	queryBrand    string
)

var queriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all import queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		queries, err := db.GetAllQueries()
		if err != nil {
			return err
		}
		if len(queries) == 0 {
			fmt.Println("No import queries defined. Add one with: priceowl queries add")
			return nil
		}

		fmt.Println("Import queries:")
		for _, q := range queries {
			icon := " "
			if q.IsActive {
				icon = "*"
			}
			fmt.Printf("  [%d] %s %-30s score %.2f (%d clicks)\n", q.ID, icon, q.Text, q.PriorityScore, q.Clicks)
		}
		return nil
	},
}

var queriesAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add a new import query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		priority, err := parsePriority(queryPriority)
		if err != nil {
			return err
		}
		var brand *string
		if queryBrand != "" {
			brand = &queryBrand
		}

		id, err := db.InsertImportQuery(args[0], priority, brand)
		if err != nil {
			return err
		}
		fmt.Printf("Added query [%d]: %s\n", id, args[0])
		return nil
	},
}

var queriesToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Toggle a query's active state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid query ID: %s", args[0])
		}

		query, err := db.GetQuery(id)
		if err != nil {
			return err
		}
		if query == nil {
			return fmt.Errorf("query %d not found", id)
		}

		if err := db.ToggleQuery(id); err != nil {
			return err
		}
		newState := "disabled"
		if !query.IsActive {
			newState = "enabled"
		}
		fmt.Printf("Query [%d] %s: %s\n", id, query.Text, newState)
		return nil
	},
}

func init() {
	queriesAddCmd.Flags().StringVar(&queryPriority, "priority", "medium", "Priority tier (low, medium, high)")
	queriesAddCmd.Flags().StringVar(&queryBrand, "brand", "", "Brand to tag on matching products")
	queriesCmd.AddCommand(queriesListCmd)
	queriesCmd.AddCommand(queriesAddCmd)
	queriesCmd.AddCommand(queriesToggleCmd)
}

func parsePriority(s string) (int, error) {
	switch s {
	case "low":
		return database.PriorityLow, nil
	case "medium":
		return database.PriorityMedium, nil
	case "high":
		return database.PriorityHigh, nil
	}
	return 0, fmt.Errorf("invalid priority %q (want low, medium or high)", s)
}

// --- shared wiring ---

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "priceowl.db")
	return database.Open(dbPath)
}

func newFetcher() (*fetch.Client, *render.Browser) {
	browser := render.New(cfg.Render.RemoteURL, time.Duration(cfg.Render.TimeoutSeconds)*time.Second)
	client := fetch.NewClient(browser, time.Duration(cfg.Import.FetchTimeoutSeconds)*time.Second)
	return client, browser
}

func newImporter(db *database.DB) (*importer.Importer, *render.Browser) {
	client, browser := newFetcher()
	extractor := scrape.NewExtractor(client, searchPageDelay())
	ingestor := ingest.New(db)
	imp := importer.New(db, extractor, ingestor, importer.Options{
		Workers:         cfg.Import.Workers,
		CreatedDelayMin: time.Duration(cfg.Import.CreatedDelayMinSeconds) * time.Second,
		CreatedDelayMax: time.Duration(cfg.Import.CreatedDelayMaxSeconds) * time.Second,
		ReimportDelay:   time.Duration(cfg.Import.ReimportDelaySeconds) * time.Second,
	})
	return imp, browser
}

func searchPageDelay() time.Duration {
	return time.Duration(cfg.Import.SearchPageDelaySeconds) * time.Second
}
