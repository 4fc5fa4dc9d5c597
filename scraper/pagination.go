package scraper

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"presale_scraper/models"
)

// Pager is a result listing that can be read and advanced one page at a time.
type Pager interface {
	Extract(ctx context.Context) (TableResult, error)
	HasNext(ctx context.Context) bool
	Next(ctx context.Context) error
}

// HasNext reports whether a usable "next page" control exists.
func HasNext(dom DOM, s Strategy) bool {
	el, res, err := Resolve(dom, s)
	if err != nil {
		log.Debug("no next page control, last page reached")
		return false
	}
	log.WithField("resolution", res.String()).Debugf("next page control found: %q", el.Text())
	return true
}

// Traverse collects records from every page. maxPages <= 0 means no cap. It
// stops when there is no next page, when advancing fails, when a page repeats
// the previous page's content, or when ctx is done. The records gathered so
// far are returned with ctx's error in the last case.
func Traverse(ctx context.Context, p Pager, maxPages int) ([]models.Record, int, error) {
	first, err := p.Extract(ctx)
	if err != nil {
		return nil, 0, err
	}
	records := append([]models.Record(nil), first.Records...)
	pages := 1
	prev := first.Signature()
	log.WithFields(log.Fields{"page": pages, "records": len(first.Records)}).Info("extracted page")

	for maxPages <= 0 || pages < maxPages {
		if err := ctx.Err(); err != nil {
			return records, pages, err
		}
		if !p.HasNext(ctx) {
			break
		}
		if err := p.Next(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return records, pages, err
			}
			log.WithError(err).WithField("page", pages+1).Warn("could not advance to next page")
			break
		}

		page, err := p.Extract(ctx)
		if err != nil {
			if errors.Is(err, ErrNoResults) {
				log.WithField("page", pages+1).Warn("next page has no result table")
				break
			}
			return records, pages, err
		}
		sig := page.Signature()
		if sig == prev {
			log.WithField("page", pages+1).Warn("page content unchanged after next, stopping")
			break
		}
		prev = sig
		pages++
		records = append(records, page.Records...)
		log.WithFields(log.Fields{"page": pages, "records": len(page.Records), "total": len(records)}).Info("extracted page")
	}

	if maxPages > 0 && pages >= maxPages {
		log.WithField("max_pages", maxPages).Info("page cap reached")
	}
	return records, pages, nil
}
