package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"presale_scraper/models"
)

var ErrUnknownSite = errors.New("unknown site")

type Config struct {
	Scheduler SchedulerConfig
	Scraper   ScraperConfig
	Search    SearchConfig
	Output    OutputConfig
	Proxy     ProxyConfig
	Postgres  PostgresConfig
	S3        S3Config
	DBPath    string
	LogLevel  string
	LogFile   string
	SitesDir  string
	Sites     map[string]*SiteConfig
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	DelayMS    int
	Timeout    time.Duration
	MaxRetries int
	MaxPages   int
	Headless   bool
	Normalize  bool
}

// SearchConfig is the default search applied to browser sites.
type SearchConfig struct {
	Cities    []string
	Districts []string
	Start     models.ROCMonth
	End       models.ROCMonth
}

type OutputConfig struct {
	Dir       string
	ExcelName string
	CSVName   string
}

type ProxyConfig struct {
	URL string
}

type PostgresConfig struct {
	URL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type SiteConfig struct {
	ID               string              `yaml:"id"`
	Name             string              `yaml:"name"`
	Handler          string              `yaml:"handler"`
	URL              string              `yaml:"url"`
	RateLimitMS      int                 `yaml:"rate_limit_ms"`
	Endpoints        map[string]string   `yaml:"endpoints"`
	Headers          map[string]string   `yaml:"headers"`
	Selectors        map[string][]string `yaml:"selectors"`
	DefaultHeaders   []string            `yaml:"default_headers"`
	Filters          map[string]string   `yaml:"filters"`
	Sort             map[string]string   `yaml:"sort"`
	MaxPages         int                 `yaml:"max_pages"`
	DelayMinMS       int                 `yaml:"delay_min_ms"`
	DelayMaxMS       int                 `yaml:"delay_max_ms"`
	DetailDelayMinMS int                 `yaml:"detail_delay_min_ms"`
	DetailDelayMaxMS int                 `yaml:"detail_delay_max_ms"`
	FetchDetails     *bool               `yaml:"fetch_details"`
}

// DelayRange is an inclusive bound for a randomised wait.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

func msRange(minMS, maxMS int, def DelayRange) DelayRange {
	if minMS <= 0 && maxMS <= 0 {
		return def
	}
	r := DelayRange{Min: time.Duration(minMS) * time.Millisecond, Max: time.Duration(maxMS) * time.Millisecond}
	if r.Max < r.Min {
		r.Max = r.Min
	}
	return r
}

// PageDelay is the wait between listing pages.
func (s *SiteConfig) PageDelay() DelayRange {
	return msRange(s.DelayMinMS, s.DelayMaxMS, DelayRange{Min: 2 * time.Second, Max: 6 * time.Second})
}

// DetailDelay is the wait after each detail request.
func (s *SiteConfig) DetailDelay() DelayRange {
	return msRange(s.DetailDelayMinMS, s.DetailDelayMaxMS, DelayRange{Min: 8 * time.Second, Max: 15 * time.Second})
}

func (s *SiteConfig) Endpoint(name, def string) string {
	if v := s.Endpoints[name]; v != "" {
		return v
	}
	return def
}

func (s *SiteConfig) WantsDetails() bool {
	return s.FetchDetails == nil || *s.FetchDetails
}

func (s *SiteConfig) IsBrowser() bool {
	return s.Handler == "browser"
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Scraper: ScraperConfig{
			DelayMS:    getEnvInt("SCRAPE_DELAY_MS", 3000),
			Timeout:    getEnvDuration("SCRAPE_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvInt("MAX_RETRIES", 3),
			MaxPages:   getEnvInt("MAX_PAGES", 0),
			Headless:   getEnvBool("HEADLESS", false),
			Normalize:  getEnvBool("NORMALIZE_RECORDS", false),
		},
		Search: SearchConfig{
			Cities:    getEnvList("PRESALE_CITIES", []string{"臺北市", "新北市"}),
			Districts: getEnvList("PRESALE_DISTRICTS", nil),
			Start: models.ROCMonth{
				Year:  getEnvInt("PRESALE_START_YEAR", 110),
				Month: getEnvInt("PRESALE_START_MONTH", 1),
			},
			End: models.ROCMonth{
				Year:  getEnvInt("PRESALE_END_YEAR", 114),
				Month: getEnvInt("PRESALE_END_MONTH", 12),
			},
		},
		Output: OutputConfig{
			Dir:       getEnv("OUTPUT_DIR", "data"),
			ExcelName: getEnv("OUTPUT_EXCEL", "預售屋建案查詢.xlsx"),
			CSVName:   getEnv("OUTPUT_CSV", "預售屋建案查詢.csv"),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("PG_DB_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "ap-northeast-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DBPath:   getEnv("DB_PATH", "scraper.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "scraper.log"),
		SitesDir: getEnv("SITES_DIR", "config/sites"),
		Sites:    make(map[string]*SiteConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	entries, err := os.ReadDir(c.SitesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		path := filepath.Join(c.SitesDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if site.ID == "" {
			return fmt.Errorf("parse %s: missing id", path)
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

func (c *Config) Site(id string) (*SiteConfig, error) {
	site, ok := c.Sites[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSite, id)
	}
	return site, nil
}

// Query builds the default query for a site. Browser sites take the
// configured date range and the given city/district; the site's own filters,
// sort and page cap are carried for API sites.
func (c *Config) Query(site *SiteConfig, city, district string) models.Query {
	q := models.Query{
		Site:     site.ID,
		City:     city,
		District: district,
		Start:    c.Search.Start,
		End:      c.Search.End,
		Filters:  site.Filters,
		Sort:     site.Sort,
		MaxPages: c.Scraper.MaxPages,
	}
	if site.MaxPages > 0 && (q.MaxPages == 0 || site.MaxPages < q.MaxPages) {
		q.MaxPages = site.MaxPages
	}
	return q
}

// QueryDelay is the pause between consecutive queries against one site.
func (c *Config) QueryDelay(site *SiteConfig) time.Duration {
	if site.RateLimitMS > 0 {
		return time.Duration(site.RateLimitMS) * time.Millisecond
	}
	return time.Duration(c.Scraper.DelayMS) * time.Millisecond
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
