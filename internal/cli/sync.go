package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kotosync/kotosync/internal/cache"
	"github.com/kotosync/kotosync/internal/model"
	"github.com/kotosync/kotosync/internal/remote"
	"github.com/kotosync/kotosync/internal/store"
	"github.com/kotosync/kotosync/internal/syncer"
)

var (
	dbPath      string
	cacheDir    string
	manifestURL string
	categoryURL string
	workers     int
	noCache     bool
	resetStore  bool
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the local store with the published bundle",
	Long: `Sync fetches the bundle manifest, refetches the categories whose cached
snapshot is older than the manifest timestamp, and merges the results into
the local store. Previously seen sentences are skipped, so repeated runs
against an unchanged bundle insert nothing.

A failing category is reported and skipped; the run continues. Only an
unreachable manifest or an unopenable store fails the whole run.

Example:
  kotosync sync
  kotosync sync --db ./sentences.db --cache-dir ./cache
  kotosync sync --workers 4`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	syncCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "snapshot cache directory")
	syncCmd.Flags().StringVar(&manifestURL, "manifest-url", "", "bundle manifest URL")
	syncCmd.Flags().StringVar(&categoryURL, "category-url", "", "per-category payload URL (%s = key)")
	syncCmd.Flags().IntVar(&workers, "workers", 0, "concurrent category fetches (default 1)")
	syncCmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore cached snapshots (force refetch)")
	syncCmd.Flags().BoolVar(&resetStore, "reset", false, "drop and recreate the sentences table (DELETES all synced data)")
}

// loadConfig builds the effective configuration: defaults, then config
// file / environment via viper, then flags.
func loadConfig() *model.Config {
	cfg := model.DefaultConfig()

	if v := viper.GetString("store.path"); v != "" {
		cfg.Store.Path = v
	}
	if v := viper.GetString("cache.dir"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := viper.GetString("remote.manifest_url"); v != "" {
		cfg.Remote.ManifestURL = v
	}
	if v := viper.GetString("remote.category_url"); v != "" {
		cfg.Remote.CategoryURL = v
	}
	if v := viper.GetDuration("remote.manifest_timeout"); v > 0 {
		cfg.Remote.ManifestTimeout = v
	}
	if v := viper.GetDuration("remote.category_timeout"); v > 0 {
		cfg.Remote.CategoryTimeout = v
	}
	if v := viper.GetString("remote.user_agent"); v != "" {
		cfg.Remote.UserAgent = v
	}
	if v := viper.GetInt64("remote.max_body_bytes"); v > 0 {
		cfg.Remote.MaxBodyBytes = v
	}
	if v := viper.GetFloat64("remote.rate_per_second"); v > 0 {
		cfg.Remote.RatePerSecond = v
	}
	if v := viper.GetInt("remote.rate_burst"); v > 0 {
		cfg.Remote.RateBurst = v
	}
	if v := viper.GetString("remote.http_proxy"); v != "" {
		cfg.Remote.HTTPProxy = v
	}
	if v := viper.GetString("remote.https_proxy"); v != "" {
		cfg.Remote.HTTPSProxy = v
	}
	if v := viper.GetDuration("cache.memory_ttl"); v > 0 {
		cfg.Cache.MemoryTTL = v
	}
	if viper.IsSet("cache.enabled") {
		cfg.Cache.Enabled = viper.GetBool("cache.enabled")
	}
	if v := viper.GetInt("sync.workers"); v > 0 {
		cfg.Sync.Workers = v
	}
	if v := viper.GetString("serve.addr"); v != "" {
		cfg.Serve.Addr = v
	}

	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	if cacheDir != "" {
		cfg.Cache.Dir = cacheDir
	}
	if manifestURL != "" {
		cfg.Remote.ManifestURL = manifestURL
	}
	if categoryURL != "" {
		cfg.Remote.CategoryURL = categoryURL
	}
	if workers > 0 {
		cfg.Sync.Workers = workers
	}

	return cfg
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()

	if verbose {
		fmt.Fprintf(os.Stderr, "Store: %s\n", cfg.Store.Path)
		fmt.Fprintf(os.Stderr, "Cache: %s (enabled: %v)\n", cfg.Cache.Dir, !noCache && cfg.Cache.Enabled)
		fmt.Fprintf(os.Stderr, "Manifest: %s\n", cfg.Remote.ManifestURL)
		fmt.Fprintln(os.Stderr)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if resetStore {
		fmt.Fprintln(os.Stderr, "WARNING: --reset drops the sentences table; all previously synced data is lost")
		if err := st.Reset(ctx); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
	}

	var snapshots cache.Store = cache.NewLayeredStore(cfg.Cache.MemoryTTL, cfg.Cache.Dir)
	if noCache || !cfg.Cache.Enabled {
		snapshots = cache.NewWriteOnly(snapshots)
	}

	s := syncer.New(remote.NewSource(cfg.Remote), snapshots, st, syncer.Options{
		Workers: cfg.Sync.Workers,
		Verbose: verbose,
	})

	summary, err := s.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if summary.Cancelled {
		fmt.Fprintln(os.Stderr, "sync interrupted; in-flight category completed, remaining categories skipped")
	}
	fmt.Printf("inserted %d new sentences (%d categories synced, %d from cache",
		summary.Inserted, summary.CategoriesSynced, summary.CacheHits)
	if summary.CategoriesFailed > 0 {
		fmt.Printf(", %d failed", summary.CategoriesFailed)
	}
	if summary.CategoriesSkipped > 0 {
		fmt.Printf(", %d skipped", summary.CategoriesSkipped)
	}
	if summary.MappingFailures > 0 {
		fmt.Printf(", %d entries unmappable", summary.MappingFailures)
	}
	fmt.Println(")")

	return nil
}
