package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"presale_scraper/config"
	"presale_scraper/exporter"
	"presale_scraper/identity"
	"presale_scraper/models"
	"presale_scraper/storage"
)

// HandlerFactory builds the handler for one site run.
type HandlerFactory func(siteCfg *config.SiteConfig, opts Options) (Handler, error)

// Targets narrows the cities and districts a browser site is queried for.
// Empty lists fall back to the configured search.
type Targets struct {
	Cities    []string
	Districts []string
}

// RunResult is the outcome of one site run.
type RunResult struct {
	Run     models.ScrapeRun
	Records []models.Record
	Files   []models.ExportFile
}

type Orchestrator struct {
	cfg        *config.Config
	store      *storage.SQLiteStore
	pgStore    *storage.PostgresStore
	uploader   *storage.S3Uploader
	newHandler HandlerFactory

	// runMu keeps scheduled and command-driven runs from overlapping.
	runMu  sync.Mutex
	mu     sync.Mutex
	paused bool
}

type OrchestratorOption func(*Orchestrator)

func WithPostgres(pg *storage.PostgresStore) OrchestratorOption {
	return func(o *Orchestrator) { o.pgStore = pg }
}

func WithUploader(u *storage.S3Uploader) OrchestratorOption {
	return func(o *Orchestrator) { o.uploader = u }
}

func WithHandlerFactory(f HandlerFactory) OrchestratorOption {
	return func(o *Orchestrator) { o.newHandler = f }
}

func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		store:      store,
		newHandler: NewHandler,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) handlerOptions() Options {
	return Options{
		Scraper:   o.cfg.Scraper,
		Proxy:     o.cfg.Proxy,
		OutputDir: o.cfg.Output.Dir,
	}
}

// DefaultQuery is the configured search for a site with no city set.
func (o *Orchestrator) DefaultQuery(siteID string) (models.Query, error) {
	site, err := o.cfg.Site(siteID)
	if err != nil {
		return models.Query{}, err
	}
	return o.cfg.Query(site, "", ""), nil
}

// plan expands a base query into the queries a run performs. Browser sites
// get one query per city and district; a base with a city set pins it.
func (o *Orchestrator) plan(browser bool, base models.Query, t Targets) []models.Query {
	if !browser {
		return []models.Query{base}
	}

	cities := t.Cities
	if len(cities) == 0 && base.City != "" {
		cities = []string{base.City}
	}
	if len(cities) == 0 {
		cities = o.cfg.Search.Cities
	}
	districts := t.Districts
	if len(districts) == 0 && base.District != "" {
		districts = []string{base.District}
	}
	if len(districts) == 0 {
		districts = o.cfg.Search.Districts
	}
	if len(districts) == 0 {
		districts = []string{""}
	}

	var queries []models.Query
	for _, city := range cities {
		for _, district := range districts {
			q := base
			q.City = city
			q.District = district
			queries = append(queries, q)
		}
	}
	return queries
}

func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.IsPaused() {
		log.Info("Scraper is paused, skipping run")
		return nil
	}

	var errs []error
	for _, siteID := range o.SiteIDs() {
		base, err := o.DefaultQuery(siteID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := o.RunSite(ctx, siteID, base); err != nil {
			log.WithError(err).WithField("site", siteID).Error("site run failed")
			errs = append(errs, fmt.Errorf("%s: %w", siteID, err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) RunSite(ctx context.Context, siteID string, base models.Query) (*RunResult, error) {
	return o.RunTargets(ctx, siteID, base, Targets{})
}

// RunTargets runs every planned query for a site, persists what it finds and
// exports the combined records. The error is non-nil only when no query
// succeeded.
func (o *Orchestrator) RunTargets(ctx context.Context, siteID string, base models.Query, t Targets) (*RunResult, error) {
	site, err := o.cfg.Site(siteID)
	if err != nil {
		return nil, err
	}
	base.Site = siteID

	o.runMu.Lock()
	defer o.runMu.Unlock()

	handler, err := o.newHandler(site, o.handlerOptions())
	if err != nil {
		return nil, err
	}
	defer handler.Close()

	run := models.ScrapeRun{
		RunKey:    uuid.NewString(),
		SiteID:    siteID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := o.store.CreateRun(&run)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	run.ID = runID
	o.mirrorRun(ctx, &run)

	name := site.Name
	if name == "" {
		name = siteID
	}
	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting scrape for %s", name), siteID)

	result := &RunResult{}
	var mirror []storage.MirrorRecord
	var lastErr error
	storeCtx := context.WithoutCancel(ctx)

	queries := o.plan(handler.Browser(), base, t)
	for i, q := range queries {
		if i > 0 {
			if err := sleep(ctx, o.cfg.QueryDelay(site)); err != nil {
				lastErr = err
				break
			}
		}

		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Query %d/%d: %s", i+1, len(queries), q), siteID)
		res, err := handler.Scrape(ctx, q)
		if err != nil {
			lastErr = err
			run.QueriesFailed++
			run.ErrorsCount++
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("Query %s failed: %v", q, err), siteID)
		} else {
			run.QueriesRun++
		}

		// A failed query still hands back the pages read before the failure.
		if res != nil {
			run.PagesScraped += res.Pages
			mirror = append(mirror, o.persist(storeCtx, &run, handler.Browser(), q, res.Records, result)...)
			o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Query %s: %d records over %d pages", q, len(res.Records), res.Pages), siteID)
		}
		if err != nil && ctx.Err() != nil {
			break
		}
	}
	run.RecordsFound = len(result.Records)

	if o.pgStore != nil && len(mirror) > 0 {
		if _, err := o.pgStore.UpsertRecords(storeCtx, siteID, run.RunKey, time.Now(), mirror); err != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Postgres mirror failed: %v", err), siteID)
		}
	}

	result.Files = o.export(ctx, &run, result.Records)

	switch {
	case run.QueriesRun == 0 && lastErr != nil:
		run.Status = models.RunStatusFailed
	case run.QueriesFailed > 0 || lastErr != nil:
		run.Status = models.RunStatusPartial
	default:
		run.Status = models.RunStatusCompleted
	}
	if lastErr != nil {
		run.ErrorMessage = lastErr.Error()
	}

	now := time.Now()
	run.FinishedAt = &now
	if err := o.store.UpdateRun(&run); err != nil {
		log.WithError(err).Error("failed to update run")
	}
	if err := o.store.UpdateSiteStats(siteID); err != nil {
		log.WithError(err).Error("failed to update site stats")
	}
	o.mirrorRun(context.WithoutCancel(ctx), &run)

	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Finished %s: %d queries, %d failed, %d records, %d new, %d pages",
			run.Status, run.QueriesRun, run.QueriesFailed, run.RecordsFound, run.RecordsNew, run.PagesScraped), siteID)

	result.Run = run
	if run.Status == models.RunStatusFailed {
		return result, fmt.Errorf("all queries failed: %w", lastErr)
	}
	return result, nil
}

// persist tags, stores and collects one query's records and returns the rows
// to mirror to Postgres.
func (o *Orchestrator) persist(ctx context.Context, run *models.ScrapeRun, browser bool, q models.Query, records []models.Record, result *RunResult) []storage.MirrorRecord {
	var mirror []storage.MirrorRecord
	for _, rec := range records {
		if browser {
			rec.Set(models.ColumnCity, q.City)
			rec.Set(models.ColumnDistrict, q.DistrictLabel())
		}
		result.Records = append(result.Records, rec)

		fp := identity.Fingerprint(run.SiteID, rec)
		isNew, err := o.store.UpsertRecord(ctx, run.SiteID, fp, q.City, q.DistrictLabel(), rec, run.ID, time.Now())
		if err != nil {
			run.ErrorsCount++
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("Persist record: %v", err), run.SiteID)
			continue
		}
		if isNew {
			run.RecordsNew++
		}
		if o.pgStore != nil {
			mirror = append(mirror, storage.MirrorRecord{Fingerprint: fp, City: q.City, District: q.DistrictLabel(), Record: rec})
		}
	}
	return mirror
}

func (o *Orchestrator) export(ctx context.Context, run *models.ScrapeRun, records []models.Record) []models.ExportFile {
	files, err := exporter.Export(o.cfg.Output.Dir, records, exporter.Options{
		ExcelName: o.cfg.Output.ExcelName,
		CSVName:   o.cfg.Output.CSVName,
		Normalize: o.cfg.Scraper.Normalize,
	})
	if err != nil {
		run.ErrorsCount++
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Export failed: %v", err), run.SiteID)
	}

	for i := range files {
		f := &files[i]
		f.RunID = run.ID
		if o.uploader != nil {
			key, err := o.uploader.UploadExport(ctx, run.RunKey, f.Path)
			if err != nil {
				run.ErrorsCount++
				o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Upload %s failed: %v", f.Path, err), run.SiteID)
			} else {
				f.S3Key = key
				o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Uploaded %s", o.uploader.PublicURL(key)), run.SiteID)
			}
		}
		if err := o.store.AddExport(f); err != nil {
			log.WithError(err).WithField("path", f.Path).Error("failed to record export")
		}
	}
	return files
}

func (o *Orchestrator) mirrorRun(ctx context.Context, run *models.ScrapeRun) {
	if o.pgStore == nil {
		return
	}
	if err := o.pgStore.SaveRun(ctx, run); err != nil {
		log.WithError(err).WithField("run_key", run.RunKey).Warn("failed to mirror run to Postgres")
	}
}

func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := o.store.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	switch cmd.Command {
	case models.CmdScrapeNow:
		return o.RunAll(ctx)
	case models.CmdScrapeSite:
		if params.Site == "" {
			return o.RunAll(ctx)
		}
		base, err := o.DefaultQuery(params.Site)
		if err != nil {
			return err
		}
		_, err = o.RunTargets(ctx, params.Site, base, Targets{Cities: params.Cities, Districts: params.Districts})
		return err
	case models.CmdPause:
		o.setPaused(true)
		log.Info("Scraper paused")
	case models.CmdResume:
		o.setPaused(false)
		log.Info("Scraper resumed")
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}

	return nil
}

func (o *Orchestrator) setPaused(p bool) {
	o.mu.Lock()
	o.paused = p
	o.mu.Unlock()
}

func (o *Orchestrator) IsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, siteID string) {
	entry := log.WithFields(log.Fields{"site": siteID, "run": runID})
	switch level {
	case models.LogLevelDebug:
		entry.Debug(message)
	case models.LogLevelWarn:
		entry.Warn(message)
	case models.LogLevelError:
		entry.Error(message)
	default:
		entry.Info(message)
	}
	if err := o.store.Log(&runID, level, message, siteID); err != nil {
		log.WithError(err).Debug("failed to persist log line")
	}
}

// SiteIDs lists configured sites in a stable order.
func (o *Orchestrator) SiteIDs() []string {
	ids := make([]string, 0, len(o.cfg.Sites))
	for id := range o.cfg.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
