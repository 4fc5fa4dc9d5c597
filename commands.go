package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"presale_scraper/httputil"
	"presale_scraper/logging"
	"presale_scraper/models"
	"presale_scraper/scheduler"
	"presale_scraper/scraper"
	"presale_scraper/services"
	"presale_scraper/storage"
	"presale_scraper/tui"
)

const (
	defaultBrowserSite = "lvr_land"
	defaultAPISite     = "newhouse591"
)

func newScrapeCmd() *cobra.Command {
	var site string
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape of a site and export the results",
		Example: `  presale_scraper scrape --cities 臺北市 --districts 中正區,大安區
  presale_scraper scrape --start-year 112 --end-year 113 --headless`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, site)
		},
	}
	cmd.Flags().StringVar(&site, "site", defaultBrowserSite, "site id from the sites directory")
	return cmd
}

func newNewhouseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "newhouse",
		Short: "Scrape the 591 new-house portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, defaultAPISite)
		},
	}
}

func runOnce(cmd *cobra.Command, siteID string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	base, err := a.orchestrator.DefaultQuery(siteID)
	if err != nil {
		return err
	}
	result, err := a.orchestrator.RunSite(ctx, siteID, base)
	if result != nil {
		run := result.Run
		log.WithFields(log.Fields{
			"status":  run.Status,
			"queries": run.QueriesRun,
			"failed":  run.QueriesFailed,
			"records": run.RecordsFound,
			"new":     run.RecordsNew,
			"pages":   run.PagesScraped,
		}).Info("Scrape finished")
		for _, f := range result.Files {
			log.WithFields(log.Fields{"format": f.Format, "rows": f.Rows, "s3_key": f.S3Key}).Info(f.Path)
		}
	}
	return err
}

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run on a schedule and process queued commands",
		Long: `daemon runs every configured site on SCRAPE_CRON or SCRAPE_INTERVAL and
polls the commands table for scrape_now, scrape_site, pause and resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			sched := scheduler.New(a.cfg.Scheduler, a.orchestrator, a.store)
			if err := sched.Start(ctx); err != nil {
				return err
			}
			log.Info("Daemon running. Press Ctrl+C to stop.")

			<-ctx.Done()
			log.Info("Shutting down...")
			sched.Stop()
			return nil
		},
	}
}

func newCheckURLCmd() *cobra.Command {
	var saveDir string
	cmd := &cobra.Command{
		Use:   "check-url [url...]",
		Short: "Probe portal URLs for the pre-sale search",
		Long: `check-url fetches each URL with browser headers and reports the status,
timing, content type and whether the pre-sale keywords appear. With no
arguments the known portal pages are checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logging.SetLevel(cfg.LogLevel)

			urls := args
			if len(urls) == 0 {
				urls = services.PortalURLs
			}
			clients := httputil.NewClients(&cfg.Proxy)
			checker := services.NewURLChecker(clients.Scraping, 30*time.Second)

			failed := 0
			for i, u := range urls {
				res := checker.Check(cmd.Context(), u)
				res.Log()
				if !res.OK() {
					failed++
					continue
				}
				if saveDir == "" {
					continue
				}
				path := filepath.Join(saveDir, fmt.Sprintf("response_content_%d.txt", i+1))
				if err := os.MkdirAll(saveDir, 0755); err != nil {
					return err
				}
				if err := res.SaveSnippet(path); err != nil {
					log.WithError(err).Warn("could not save response content")
					continue
				}
				log.WithField("path", path).Info("Saved response content")
			}
			if failed == len(urls) {
				return fmt.Errorf("all %d URLs failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&saveDir, "save", "", "directory to save the first 10000 characters of each response")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var (
		site     string
		jsonPath string
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Open the pre-sale page and list its form controls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logging.SetLevel(cfg.LogLevel)

			siteCfg, err := cfg.Site(site)
			if err != nil {
				return err
			}
			h := scraper.NewLVRHandler(siteCfg, scraper.Options{
				Scraper:   cfg.Scraper,
				Proxy:     cfg.Proxy,
				OutputDir: cfg.Output.Dir,
			})
			defer h.Close()

			report, err := h.Inspect(cmd.Context())
			if err != nil {
				return err
			}
			report.Log()

			if jsonPath == "" {
				return nil
			}
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			return os.WriteFile(jsonPath, data, 0644)
		},
	}
	cmd.Flags().StringVar(&site, "site", defaultBrowserSite, "browser site to inspect")
	cmd.Flags().StringVar(&jsonPath, "json", "", "also write the report as JSON")
	return cmd
}

func newRunsCmd() *cobra.Command {
	var (
		site  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent scrape runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logging.SetLevel(cfg.LogLevel)

			a := &app{cfg: cfg}
			if a.store, err = storage.NewSQLiteStore(cfg.DBPath); err != nil {
				return err
			}
			defer a.close()

			runs, err := a.store.RecentRuns(site, limit)
			if err != nil {
				return err
			}

			renderRuns(cmd.OutOrStdout(), runs)

			if site == "" {
				return nil
			}
			stats, err := a.store.GetSiteStats(site)
			if err != nil || stats == nil {
				return err
			}
			last, err := a.store.GetLastRunTime(site)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", siteSummary(site, stats, last))
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "only show runs of this site")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func renderRuns(w io.Writer, runs []models.ScrapeRun) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Site", "Started", "Status", "Queries", "Failed", "Records", "New", "Pages"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID, r.SiteID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status,
			r.QueriesRun, r.QueriesFailed, r.RecordsFound, r.RecordsNew, r.PagesScraped,
		})
	}
	t.Render()
}

func siteSummary(site string, stats *models.SiteStats, lastOK time.Time) string {
	last := "never"
	if !lastOK.IsZero() {
		last = lastOK.Local().Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%s: %d records, %.0f%% success, avg %ds per run, last successful run %s",
		site, stats.TotalRecords, stats.SuccessRate*100, stats.AvgRunDurationSec, last)
}

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal dashboard",
		Long: `tui shows site stats, recent runs, stored records and logs from the
SQLite database, and queues scrape/pause/resume commands for a running daemon.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// Anything written to stdout would corrupt the screen.
			log.SetOutput(io.Discard)

			store, err := storage.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			return tui.Run(store, cfg.LogFile)
		},
	}
}
