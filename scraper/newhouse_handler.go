package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"presale_scraper/config"
	"presale_scraper/httputil"
	"presale_scraper/models"
)

const (
	newhouseListURL   = "https://newhouse.591.com.tw/list"
	newhouseSearchURL = "https://newhouse.591.com.tw/home/housing/list-search"
	newhouseDetailURL = "https://bff.591.com.tw/v1/housing/detail-info"
	newhouseReferer   = "https://newhouse.591.com.tw/"
	defaultDeviceID   = "1234567890"
)

// Flattened 591 columns.
const (
	ColRegion       = "縣市"
	ColSection      = "行政區"
	ColBuildName    = "建案名稱"
	ColHouseholds   = "戶數"
	ColLandDivision = "使用分區"
	ColBuilder      = "起造人"
	ColLicense      = "建照執照"
	ColProjectID    = "建案編號"
)

// NewhouseHandler reads the 591 new-house JSON API.
type NewhouseHandler struct {
	cfg         *config.SiteConfig
	client      *resty.Client
	pageDelay   config.DelayRange
	detailDelay config.DelayRange
}

func NewNewhouseHandler(cfg *config.SiteConfig, opts Options) *NewhouseHandler {
	clients := httputil.NewClients(&opts.Proxy)
	client := httputil.NewResty(clients.Scraping, opts.Scraper.Timeout)
	client.SetHeader("device", "pc")
	client.SetHeader("deviceid", defaultDeviceID)
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}
	if opts.Scraper.MaxRetries > 0 {
		client.SetRetryCount(opts.Scraper.MaxRetries)
		client.AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	}

	return &NewhouseHandler{
		cfg:         cfg,
		client:      client,
		pageDelay:   cfg.PageDelay(),
		detailDelay: cfg.DetailDelay(),
	}
}

func (h *NewhouseHandler) ID() string {
	return h.cfg.ID
}

func (h *NewhouseHandler) Browser() bool {
	return false
}

func (h *NewhouseHandler) Close() {}

func (h *NewhouseHandler) deviceID() string {
	if v := h.cfg.Headers["deviceid"]; v != "" {
		return v
	}
	return defaultDeviceID
}

type searchResponse struct {
	Status json.Number `json:"status"`
	Msg    string      `json:"msg"`
	Data   struct {
		Total     json.Number      `json:"total"`
		TotalPage json.Number      `json:"total_page"`
		Items     []models.Project `json:"items"`
	} `json:"data"`
}

type detailResponse struct {
	Status json.Number          `json:"status"`
	Msg    string               `json:"msg"`
	Data   models.ProjectDetail `json:"data"`
}

func (h *NewhouseHandler) searchParams(filters, sort map[string]string) url.Values {
	params := url.Values{}
	params.Set("device", "pc")
	params.Set("device_id", h.deviceID())
	for k, v := range filters {
		params.Set(k, v)
	}
	for k, v := range sort {
		params.Set(k, v)
	}
	return params
}

// Search pages through list-search until total_page or wantPages
// (0 = every page). A failed first page is an error; later failures end the
// search with what was collected.
func (h *NewhouseHandler) Search(ctx context.Context, filters, sort map[string]string, wantPages int) (int, []models.Project, int, error) {
	endpoint := h.cfg.Endpoint("search", newhouseSearchURL)
	params := h.searchParams(filters, sort)
	referer := h.cfg.Endpoint("list_page", newhouseListURL) + "?" + params.Encode()

	var (
		total    int
		projects []models.Project
		pages    int
	)
	for page := 1; wantPages <= 0 || page <= wantPages; page++ {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))

		var body searchResponse
		res, err := h.client.R().
			SetContext(ctx).
			SetHeader("referer", referer).
			SetQueryParamsFromValues(q).
			SetResult(&body).
			Get(endpoint)
		if err == nil && res.IsError() {
			err = fmt.Errorf("status %d", res.StatusCode())
		}
		if err != nil {
			if page == 1 {
				return 0, nil, 0, fmt.Errorf("search page 1: %w", err)
			}
			log.WithError(err).WithField("page", page).Warn("search page failed, stopping")
			break
		}

		pages = page
		if n, err := body.Data.Total.Int64(); err == nil {
			total = int(n)
		}
		projects = append(projects, body.Data.Items...)
		log.WithFields(log.Fields{"page": page, "items": len(body.Data.Items), "total": total}).Info("591 search page")

		totalPages, err := body.Data.TotalPage.Int64()
		if err != nil || page >= int(totalPages) || len(body.Data.Items) == 0 {
			break
		}
		if wantPages > 0 && page >= wantPages {
			break
		}
		if err := humanDelay(ctx, h.pageDelay); err != nil {
			return total, projects, pages, err
		}
	}

	return total, projects, pages, nil
}

// Detail fetches detail-info for one project.
func (h *NewhouseHandler) Detail(ctx context.Context, hid string) (*models.ProjectDetail, error) {
	var body detailResponse
	res, err := h.client.R().
		SetContext(ctx).
		SetHeader("referer", newhouseReferer).
		SetQueryParam("id", hid).
		SetQueryParam("is_auth", "0").
		SetResult(&body).
		Get(h.cfg.Endpoint("detail", newhouseDetailURL))
	if err != nil {
		return nil, fmt.Errorf("detail %s: %w", hid, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("detail %s: status %d", hid, res.StatusCode())
	}
	return &body.Data, nil
}

func (h *NewhouseHandler) Scrape(ctx context.Context, q models.Query) (*Result, error) {
	if err := q.Validate(false); err != nil {
		return nil, err
	}

	total, projects, pages, err := h.Search(ctx, q.Filters, q.Sort, q.MaxPages)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"total": total, "fetched": len(projects), "pages": pages}).Info("591 search finished")

	records := make([]models.Record, 0, len(projects))
	for i, p := range projects {
		if !h.cfg.WantsDetails() {
			records = append(records, summaryRecord(p))
			continue
		}

		detail, err := h.Detail(ctx, p.HID.String())
		if err != nil {
			if ctx.Err() != nil {
				return &Result{Records: records, Pages: pages}, ctx.Err()
			}
			log.WithError(err).WithField("hid", p.HID.String()).Warn("detail failed, using list summary")
			records = append(records, summaryRecord(p))
		} else {
			records = append(records, detailRecord(p, detail))
		}

		if i < len(projects)-1 {
			if err := humanDelay(ctx, h.detailDelay); err != nil {
				return &Result{Records: records, Pages: pages}, err
			}
		}
	}

	return &Result{Records: records, Pages: pages}, nil
}

func orUnknown(s string) string {
	if s == "" {
		return models.Unknown
	}
	return s
}

func detailRecord(p models.Project, d *models.ProjectDetail) models.Record {
	return models.RecordFrom(
		ColRegion, orUnknown(d.Region),
		ColSection, orUnknown(d.Section),
		ColBuildName, orUnknown(d.BuildName),
		ColHouseholds, orUnknown(d.Households.String()),
		ColLandDivision, orUnknown(d.LandDivision),
		ColBuilder, orUnknown(d.Builder()),
		ColLicense, orUnknown(d.License),
		ColProjectID, p.HID.String(),
	)
}

func summaryRecord(p models.Project) models.Record {
	return models.RecordFrom(
		ColRegion, orUnknown(p.Region),
		ColSection, orUnknown(p.Section),
		ColBuildName, orUnknown(p.BuildName),
		ColHouseholds, models.Unknown,
		ColLandDivision, models.Unknown,
		ColBuilder, models.Unknown,
		ColLicense, models.Unknown,
		ColProjectID, p.HID.String(),
	)
}
