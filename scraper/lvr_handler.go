package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	log "github.com/sirupsen/logrus"

	"presale_scraper/config"
	"presale_scraper/httputil"
	"presale_scraper/models"
)

const PresaleURL = "https://lvr.land.moi.gov.tw/jsp/list.jsp#pills-saleremark"

// LVRHandler scrapes the disclosure portal's pre-sale tab through a real
// browser. One persistent context is reused across queries of a run.
type LVRHandler struct {
	cfg  *config.SiteConfig
	opts Options

	mu          sync.Mutex
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	page        *pwPage
	initialized bool
}

func NewLVRHandler(cfg *config.SiteConfig, opts Options) *LVRHandler {
	return &LVRHandler{cfg: cfg, opts: opts}
}

func (h *LVRHandler) ID() string {
	return h.cfg.ID
}

func (h *LVRHandler) Browser() bool {
	return true
}

func (h *LVRHandler) url() string {
	if h.cfg.URL != "" {
		return h.cfg.URL
	}
	return PresaleURL
}

func (h *LVRHandler) form() *presaleForm {
	return &presaleForm{
		page:       h.page,
		strategies: DefaultStrategies().WithOverrides(h.cfg.Selectors),
		delay:      time.Duration(h.opts.Scraper.DelayMS) * time.Millisecond,
		headers:    h.cfg.DefaultHeaders,
		debugDir:   h.opts.OutputDir,
	}
}

func (h *LVRHandler) Scrape(ctx context.Context, q models.Query) (*Result, error) {
	if err := q.Validate(true); err != nil {
		return nil, err
	}
	if err := h.ensureBrowser(); err != nil {
		return nil, err
	}

	log.WithField("query", q.String()).Info("scraping presale listings")
	return h.form().Scrape(ctx, h.url(), q)
}

// Inspect opens the presale page and reports the controls it finds.
func (h *LVRHandler) Inspect(ctx context.Context) (PageReport, error) {
	if err := h.ensureBrowser(); err != nil {
		return PageReport{}, err
	}
	f := h.form()
	if err := f.GotoPresalePage(ctx, h.url()); err != nil {
		log.WithError(err).Warn("presale page not confirmed, inspecting anyway")
	}
	f.saveDebug("inspect")
	return InspectPage(h.page, f.strategies), nil
}

func (h *LVRHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	cwd, _ := os.Getwd()
	userDataDir := filepath.Join(cwd, "browser_data")
	launch := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(h.opts.Scraper.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
		Viewport:          &playwright.Size{Width: 1920, Height: 1080},
		UserAgent:         playwright.String(httputil.DesktopUserAgent),
		IgnoreHttpsErrors: playwright.Bool(true),
		Locale:            playwright.String("zh-TW"),
	}
	if h.opts.Proxy.URL != "" {
		launch.Proxy = &playwright.Proxy{Server: h.opts.Proxy.URL}
	}
	h.context, err = h.pw.Chromium.LaunchPersistentContext(userDataDir, launch)
	if err != nil {
		h.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	var page playwright.Page
	if pages := h.context.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = h.context.NewPage(); err != nil {
		h.context.Close()
		h.pw.Stop()
		return fmt.Errorf("failed to create page: %w", err)
	}
	h.page = newPlaywrightPage(page, float64(h.opts.Scraper.Timeout.Milliseconds()))

	h.initialized = true
	log.WithField("headless", h.opts.Scraper.Headless).Info("browser started")
	return nil
}

func (h *LVRHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.context != nil {
		h.context.Close()
		h.context = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
	h.page = nil
	h.initialized = false
}
