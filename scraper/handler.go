package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"presale_scraper/config"
	"presale_scraper/models"
)

// Result is what one query produced.
type Result struct {
	Records []models.Record
	Pages   int
}

type Handler interface {
	ID() string
	// Browser reports whether queries need a city (form-driven sites).
	Browser() bool
	Scrape(ctx context.Context, q models.Query) (*Result, error)
	Close()
}

// Options carries the run-wide settings handlers need.
type Options struct {
	Scraper   config.ScraperConfig
	Proxy     config.ProxyConfig
	OutputDir string
}

func NewHandler(siteCfg *config.SiteConfig, opts Options) (Handler, error) {
	switch siteCfg.Handler {
	case "browser":
		return NewLVRHandler(siteCfg, opts), nil
	case "api":
		return NewNewhouseHandler(siteCfg, opts), nil
	default:
		return nil, fmt.Errorf("site %s: unknown handler %q", siteCfg.ID, siteCfg.Handler)
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
