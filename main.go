package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"presale_scraper/config"
	"presale_scraper/logging"
	"presale_scraper/scraper"
	"presale_scraper/storage"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree. Search flags are persistent so every
// scraping subcommand shares them.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presale_scraper",
		Short: "Scrape Taiwanese pre-sale housing listings",
		Long: `presale_scraper collects pre-sale (預售屋) project listings from the
actual-price-registration portal and the 591 new-house portal, stores them in
SQLite and exports Excel/CSV files.

Flags override the matching environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringSlice("cities", nil, "cities to search (PRESALE_CITIES)")
	f.StringSlice("districts", nil, "districts to search, empty for the whole city (PRESALE_DISTRICTS)")
	f.Int("start-year", 0, "start ROC year (PRESALE_START_YEAR)")
	f.Int("start-month", 0, "start month (PRESALE_START_MONTH)")
	f.Int("end-year", 0, "end ROC year (PRESALE_END_YEAR)")
	f.Int("end-month", 0, "end month (PRESALE_END_MONTH)")
	f.String("output-excel", "", "Excel file name (OUTPUT_EXCEL)")
	f.String("output-csv", "", "CSV file name (OUTPUT_CSV)")
	f.String("output-dir", "", "directory for exports and debug files (OUTPUT_DIR)")
	f.Bool("headless", false, "run the browser headless (HEADLESS)")
	f.Int("max-pages", 0, "page cap per query, 0 for none (MAX_PAGES)")
	f.String("log-level", "", "log level (LOG_LEVEL)")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newNewhouseCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newCheckURLCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newRunsCmd())
	cmd.AddCommand(newTUICmd())

	return cmd
}

// app is the wired runtime shared by subcommands.
type app struct {
	cfg          *config.Config
	store        *storage.SQLiteStore
	pgStore      *storage.PostgresStore
	orchestrator *scraper.Orchestrator
	logFile      *logging.RotatingWriter
}

// loadConfig reads env/YAML configuration and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error
	setInt := func(name string, dst *int) {
		if err == nil && f.Changed(name) {
			*dst, err = f.GetInt(name)
		}
	}
	setString := func(name string, dst *string) {
		if err == nil && f.Changed(name) {
			*dst, err = f.GetString(name)
		}
	}
	setSlice := func(name string, dst *[]string) {
		if err == nil && f.Changed(name) {
			*dst, err = f.GetStringSlice(name)
		}
	}

	setSlice("cities", &cfg.Search.Cities)
	setSlice("districts", &cfg.Search.Districts)
	setInt("start-year", &cfg.Search.Start.Year)
	setInt("start-month", &cfg.Search.Start.Month)
	setInt("end-year", &cfg.Search.End.Year)
	setInt("end-month", &cfg.Search.End.Month)
	setString("output-excel", &cfg.Output.ExcelName)
	setString("output-csv", &cfg.Output.CSVName)
	setString("output-dir", &cfg.Output.Dir)
	setInt("max-pages", &cfg.Scraper.MaxPages)
	setString("log-level", &cfg.LogLevel)
	if err == nil && f.Changed("headless") {
		cfg.Scraper.Headless, err = f.GetBool("headless")
	}
	return err
}

// setup loads configuration and opens every configured store. Postgres and
// S3 are optional and only warn when they cannot be reached.
func setup(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	a.logFile, err = logging.Setup(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warn("could not set up file logging")
	}

	log.WithField("sites", len(cfg.Sites)).Info("Loaded site configs")
	for _, id := range sortedSites(cfg) {
		log.WithFields(log.Fields{"id": id, "name": cfg.Sites[id].Name, "handler": cfg.Sites[id].Handler}).Debug("site")
	}

	a.store, err = storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	log.WithField("path", cfg.DBPath).Info("SQLite database ready")

	var opts []scraper.OrchestratorOption
	if cfg.Postgres.URL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.Postgres.URL)
		if err != nil {
			log.WithError(err).Warn("Postgres unavailable, continuing without mirror")
		} else {
			a.pgStore = pg
			opts = append(opts, scraper.WithPostgres(pg))
			log.WithField("url", maskConnectionString(cfg.Postgres.URL)).Info("Connected to Postgres")
		}
	}
	if cfg.S3.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.WithError(err).Warn("S3 unavailable, exports stay local")
		} else {
			opts = append(opts, scraper.WithUploader(uploader))
			log.WithField("bucket", cfg.S3.Bucket).Info("Uploading exports to S3")
		}
	}

	a.orchestrator = scraper.NewOrchestrator(cfg, a.store, opts...)
	return a, nil
}

func (a *app) close() {
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	a.logFile.Close()
}

func sortedSites(cfg *config.Config) []string {
	ids := make([]string, 0, len(cfg.Sites))
	for id := range cfg.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// maskConnectionString hides the password in a connection URL.
func maskConnectionString(connStr string) string {
	start := strings.Index(connStr, "://")
	if start < 0 {
		return connStr
	}
	start += 3
	at := strings.LastIndex(connStr, "@")
	if at < start {
		return connStr
	}
	colon := strings.Index(connStr[start:at], ":")
	if colon < 0 {
		return connStr
	}
	return connStr[:start+colon+1] + "****" + connStr[at:]
}
