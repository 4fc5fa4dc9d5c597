package scraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"presale_scraper/models"
)

const (
	presalePaneControls = "#pills-saleremark select, #pills-saleremark input, #pills-saleremark button"
	formControls        = "select, input, button"
	saleRemarkScript    = `(() => {
	const q = document.querySelector('#qryType');
	if (q) { q.value = 'saleRemark'; q.dispatchEvent(new Event('change')); }
	const p = document.querySelector('#SaleResultPost1');
	if (p) { p.style.display = 'block'; p.removeAttribute('hidden'); }
	return !!(q || p);
})()`
)

var cityKeywords = []string{"臺北", "台北", "新北"}

// SearchOutcome says what the portal showed after submitting the form.
type SearchOutcome int

const (
	OutcomeResults SearchOutcome = iota
	OutcomeEmpty
)

// presaleForm drives the disclosure portal's pre-sale search tab on any Page.
type presaleForm struct {
	page       Page
	strategies Strategies
	delay      time.Duration
	headers    []string
	debugDir   string
}

func (f *presaleForm) strategy(name string) Strategy {
	return f.strategies[name]
}

// GotoPresalePage opens the portal and makes sure the pre-sale tab is active.
func (f *presaleForm) GotoPresalePage(ctx context.Context, url string) error {
	if err := f.page.Goto(ctx, url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	log.WithField("url", url).Info("opened presale page")
	if err := sleep(ctx, 2*f.delay); err != nil {
		return err
	}

	tab, res, err := Resolve(f.page, f.strategy(StrategyPresaleTab))
	switch {
	case err == nil && (hasClass(tab, "active") || hasClass(tab, "show")):
		log.Debug("presale tab already active")
	case err == nil:
		script := fmt.Sprintf(`document.querySelectorAll(%s)[%d].click()`, strconv.Quote(res.Selector), res.Index)
		if _, err := f.page.Evaluate(script); err != nil {
			log.WithError(err).Warn("clicking presale tab failed, it may already be active")
		} else {
			log.Info("clicked presale tab")
		}
		if err := sleep(ctx, f.delay); err != nil {
			return err
		}
	default:
		log.Warn("presale tab not found, switching query type by script")
		if _, err := f.page.Evaluate(saleRemarkScript); err != nil {
			log.WithError(err).Warn("query type script failed")
		}
	}

	return f.confirmPresalePage()
}

func (f *presaleForm) confirmPresalePage() error {
	if pane, _, err := Resolve(f.page, f.strategy(StrategyPresalePane)); err == nil && pane.Visible() {
		if els, _ := f.page.Query(presalePaneControls); len(els) > 0 {
			log.WithField("controls", len(els)).Info("presale pane is showing its form")
			return nil
		}
	}
	if els, _ := f.page.Query(formControls); len(els) > 0 {
		log.WithField("controls", len(els)).Info("page has form controls")
		return nil
	}

	content, err := f.page.Content()
	if err == nil {
		doc, derr := NewHTMLDocument(content)
		if derr == nil {
			body := doc.Selection().Find("body").Text()
			if strings.Contains(body, "預售屋") && (strings.Contains(body, "查詢") || strings.Contains(body, "建案")) {
				log.Info("page text mentions presale search")
				return nil
			}
		}
	}
	if selects, _ := f.page.Query("select"); len(selects) > 0 {
		for _, s := range selects {
			for _, label := range optionLabels(s.Options()) {
				for _, kw := range cityKeywords {
					if strings.Contains(label, kw) {
						log.Info("found a select listing Taipei cities")
						return nil
					}
				}
			}
		}
	}
	return errors.New("could not confirm the presale search page")
}

// SelectCity picks the city option, falling back to the first non-blank one.
func (f *presaleForm) SelectCity(ctx context.Context, city string) (string, error) {
	el, res, err := Resolve(f.page, f.strategy(StrategyCity))
	if err != nil {
		return "", fmt.Errorf("city select: %w", err)
	}
	labels := optionLabels(el.Options())
	log.WithFields(log.Fields{"resolution": res.String(), "options": labels}).Debug("city select found")

	label, ok := ChooseOption(labels, city, true)
	if !ok {
		return "", fmt.Errorf("city select has no options: %w", ErrNotResolved)
	}
	if label != city {
		log.WithFields(log.Fields{"want": city, "chosen": label}).Warn("city not matched exactly")
	}
	if err := f.page.SelectLabel(el, label); err != nil {
		return "", fmt.Errorf("select city %s: %w", label, err)
	}
	log.WithField("city", label).Info("selected city")
	return label, sleep(ctx, f.delay)
}

// SelectDistrict is optional: a missing select or option returns
// ErrNotResolved for the caller to downgrade.
func (f *presaleForm) SelectDistrict(ctx context.Context, district string) (string, error) {
	if district == "" {
		return "", nil
	}
	el, res, err := Resolve(f.page, f.strategy(StrategyDistrict))
	if err != nil {
		return "", fmt.Errorf("district select: %w", err)
	}
	labels := optionLabels(el.Options())
	log.WithFields(log.Fields{"resolution": res.String(), "options": labels}).Debug("district select found")

	label, ok := ChooseOption(labels, district, false)
	if !ok {
		return "", fmt.Errorf("district %s not in options: %w", district, ErrNotResolved)
	}
	if err := f.page.SelectLabel(el, label); err != nil {
		return "", fmt.Errorf("select district %s: %w", label, err)
	}
	log.WithField("district", label).Info("selected district")
	return label, sleep(ctx, f.delay)
}

// SetDateRange fills the ROC year inputs and month selects. Missing fields
// are logged; it fails only when none of the four could be set.
func (f *presaleForm) SetDateRange(ctx context.Context, start, end models.ROCMonth) error {
	set := 0
	if f.fillYear(StrategyStartYear, start.Year) {
		set++
	}
	if f.selectMonth(StrategyStartMonth, start.Month) {
		set++
	}
	if f.fillYear(StrategyEndYear, end.Year) {
		set++
	}
	if f.selectMonth(StrategyEndMonth, end.Month) {
		set++
	}
	if set == 0 {
		return fmt.Errorf("date range %s-%s: %w", start, end, ErrNotResolved)
	}
	log.WithFields(log.Fields{"start": start.String(), "end": end.String(), "fields": set}).Info("set date range")
	return sleep(ctx, f.delay)
}

func (f *presaleForm) fillYear(strategy string, year int) bool {
	el, _, err := Resolve(f.page, f.strategy(strategy))
	if err != nil {
		log.WithField("field", strategy).Warn("year input not found")
		return false
	}
	if err := f.page.Fill(el, strconv.Itoa(year)); err != nil {
		log.WithField("field", strategy).WithError(err).Warn("could not fill year")
		return false
	}
	return true
}

func (f *presaleForm) selectMonth(strategy string, month int) bool {
	el, _, err := Resolve(f.page, f.strategy(strategy))
	if err != nil {
		log.WithField("field", strategy).Warn("month select not found")
		return false
	}
	if err := f.page.SelectValue(el, strconv.Itoa(month)); err == nil {
		return true
	}
	if err := f.page.SelectIndex(el, month); err != nil {
		log.WithField("field", strategy).WithError(err).Warn("could not select month")
		return false
	}
	log.WithField("field", strategy).Debug("month selected by index")
	return true
}

// SubmitSearch clicks the search button and waits for the portal to render
// either a result table or its empty-result message.
func (f *presaleForm) SubmitSearch(ctx context.Context) (SearchOutcome, error) {
	btn, res, err := Resolve(f.page, f.strategy(StrategySearchButton))
	if err != nil {
		return OutcomeEmpty, fmt.Errorf("search button: %w", err)
	}
	if err := f.page.Click(btn); err != nil {
		return OutcomeEmpty, fmt.Errorf("click search: %w", err)
	}
	log.WithField("resolution", res.String()).Info("submitted search")
	if err := sleep(ctx, 2*f.delay); err != nil {
		return OutcomeEmpty, err
	}

	if _, res, err := Resolve(f.page, f.strategy(StrategyResultTable)); err == nil {
		log.WithField("resolution", res.String()).Info("results loaded")
		return OutcomeResults, nil
	}
	if _, res, err := Resolve(f.page, f.strategy(StrategyNoResult)); err == nil {
		log.WithField("resolution", res.String()).Info("search returned no data")
		return OutcomeEmpty, nil
	}

	content, err := f.page.Content()
	if err != nil {
		return OutcomeEmpty, fmt.Errorf("read page: %w", err)
	}
	counts, err := CountTableElements(content)
	if err == nil && counts.Loaded() {
		log.WithFields(log.Fields{"tr": counts.TR, "td": counts.TD, "th": counts.TH}).Info("assuming results loaded")
		return OutcomeResults, nil
	}

	f.saveDebug("search")
	return OutcomeEmpty, errors.New("could not confirm search results")
}

// ScrapeAllPages walks the result pages.
func (f *presaleForm) ScrapeAllPages(ctx context.Context, maxPages int) ([]models.Record, int, error) {
	return Traverse(ctx, f, maxPages)
}

func (f *presaleForm) Extract(ctx context.Context) (TableResult, error) {
	content, err := f.page.Content()
	if err != nil {
		return TableResult{}, fmt.Errorf("read page: %w", err)
	}
	res, err := ExtractTable(content, f.headers)
	if errors.Is(err, ErrNoResults) {
		log.Warn("no result table on page")
		return TableResult{}, nil
	}
	if err != nil {
		return TableResult{}, err
	}
	if res.DefaultHeaders {
		log.WithField("headers", res.Headers).Warn("no header row, using default headers")
	}
	return res, sleep(ctx, f.delay)
}

func (f *presaleForm) HasNext(ctx context.Context) bool {
	return HasNext(f.page, f.strategy(StrategyNextPage))
}

func (f *presaleForm) Next(ctx context.Context) error {
	el, res, err := Resolve(f.page, f.strategy(StrategyNextPage))
	if err != nil {
		return err
	}
	if err := f.page.Click(el); err != nil {
		return fmt.Errorf("click next (%s): %w", res, err)
	}
	return sleep(ctx, 2*f.delay)
}

// Scrape runs one complete query: navigate, fill, submit, paginate.
func (f *presaleForm) Scrape(ctx context.Context, url string, q models.Query) (*Result, error) {
	if err := f.GotoPresalePage(ctx, url); err != nil {
		f.saveDebug("navigate")
		return nil, err
	}
	if _, err := f.SelectCity(ctx, q.City); err != nil {
		return nil, err
	}
	if _, err := f.SelectDistrict(ctx, q.District); err != nil {
		if !errors.Is(err, ErrNotResolved) {
			return nil, err
		}
		log.WithField("district", q.District).WithError(err).Warn("district not selected, searching whole city")
	}
	if err := f.SetDateRange(ctx, q.Start, q.End); err != nil {
		return nil, err
	}

	outcome, err := f.SubmitSearch(ctx)
	if err != nil {
		return nil, err
	}
	if outcome == OutcomeEmpty {
		return &Result{}, nil
	}

	records, pages, err := f.ScrapeAllPages(ctx, q.MaxPages)
	return &Result{Records: records, Pages: pages}, err
}

// saveDebug writes a screenshot and the page HTML for post-mortem.
func (f *presaleForm) saveDebug(step string) {
	if f.debugDir == "" {
		return
	}
	stamp := time.Now().Format("20060102_150405")
	shot := filepath.Join(f.debugDir, fmt.Sprintf("debug_%s_%s.png", step, stamp))
	if err := f.page.Screenshot(shot); err != nil {
		log.WithError(err).Debug("debug screenshot failed")
	}
	content, err := f.page.Content()
	if err != nil {
		return
	}
	htmlPath := filepath.Join(f.debugDir, fmt.Sprintf("debug_%s_%s.html", step, stamp))
	if err := writeFile(htmlPath, []byte(content)); err != nil {
		log.WithError(err).Debug("debug html dump failed")
		return
	}
	log.WithFields(log.Fields{"screenshot": shot, "html": htmlPath}).Warn("saved debug files")
}
