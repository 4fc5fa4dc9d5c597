package scraper

import (
	"context"
	"errors"
	"testing"

	"presale_scraper/models"
)

// scriptedPager serves pre-built pages; nextErr fails the Next call that
// would move past page failAt (1-based).
type scriptedPager struct {
	pages   []TableResult
	current int
	failAt  int
	nextErr error
	onNext  func()
}

func (p *scriptedPager) Extract(context.Context) (TableResult, error) {
	return p.pages[p.current], nil
}

func (p *scriptedPager) HasNext(context.Context) bool {
	return p.current < len(p.pages)-1
}

func (p *scriptedPager) Next(context.Context) error {
	if p.onNext != nil {
		p.onNext()
	}
	if p.nextErr != nil && p.current+1 == p.failAt {
		return p.nextErr
	}
	p.current++
	return nil
}

func page(names ...string) TableResult {
	var res TableResult
	for _, n := range names {
		res.Records = append(res.Records, models.RecordFrom("建案名稱", n))
	}
	return res
}

func TestTraverseCollectsEveryPage(t *testing.T) {
	p := &scriptedPager{pages: []TableResult{page("a", "b"), page("c"), page("d")}}
	records, pages, err := Traverse(context.Background(), p, 0)
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if pages != 3 || len(records) != 4 {
		t.Fatalf("got %d pages, %d records", pages, len(records))
	}
	if records[3].Get("建案名稱") != "d" {
		t.Fatalf("records out of order: %v", records[3].Map())
	}
}

func TestTraverseHonoursMaxPages(t *testing.T) {
	p := &scriptedPager{pages: []TableResult{page("a"), page("b"), page("c")}}
	records, pages, err := Traverse(context.Background(), p, 2)
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if pages != 2 || len(records) != 2 {
		t.Fatalf("got %d pages, %d records", pages, len(records))
	}
}

func TestTraverseStopsOnRepeatedPage(t *testing.T) {
	p := &scriptedPager{pages: []TableResult{page("a"), page("a"), page("b")}}
	records, pages, err := Traverse(context.Background(), p, 0)
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if pages != 1 || len(records) != 1 {
		t.Fatalf("expected to stop after the first page, got %d pages, %d records", pages, len(records))
	}
}

func TestTraverseStopsWhenNextFails(t *testing.T) {
	p := &scriptedPager{
		pages:   []TableResult{page("a"), page("b"), page("c")},
		failAt:  2,
		nextErr: errors.New("click intercepted"),
	}
	records, pages, err := Traverse(context.Background(), p, 0)
	if err != nil {
		t.Fatalf("a failed next should not be an error, got %v", err)
	}
	if pages != 2 || len(records) != 2 {
		t.Fatalf("got %d pages, %d records", pages, len(records))
	}
}

func TestTraverseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &scriptedPager{pages: []TableResult{page("a"), page("b"), page("c")}}
	p.onNext = cancel

	records, pages, err := Traverse(ctx, p, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if pages != 2 || len(records) != 2 {
		t.Fatalf("expected the pages read before cancel, got %d pages, %d records", pages, len(records))
	}
}
