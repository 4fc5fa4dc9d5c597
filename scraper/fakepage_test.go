package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return string(data)
}

func mustDocument(t *testing.T, html string) *HTMLDocument {
	t.Helper()
	doc, err := NewHTMLDocument(html)
	if err != nil {
		t.Fatalf("NewHTMLDocument: %v", err)
	}
	return doc
}

// fakePage is a Page over static HTML. Clicking an element whose id is a key
// of clicks swaps in that page's HTML.
type fakePage struct {
	t      *testing.T
	doc    *HTMLDocument
	html   string
	pages  map[string]string
	clicks map[string]string

	filled  map[string]string
	labels  map[string]string
	values  map[string]string
	indexes map[string]int
	scripts []string
	shots   []string
	clicked []string
}

func newFakePage(t *testing.T, pages, clicks map[string]string) *fakePage {
	return &fakePage{
		t:       t,
		pages:   pages,
		clicks:  clicks,
		filled:  make(map[string]string),
		labels:  make(map[string]string),
		values:  make(map[string]string),
		indexes: make(map[string]int),
	}
}

func (p *fakePage) load(html string) {
	p.html = html
	p.doc = mustDocument(p.t, html)
}

func (p *fakePage) Query(selector string) ([]Element, error) {
	if p.doc == nil {
		return nil, nil
	}
	return p.doc.Query(selector)
}

func (p *fakePage) Goto(_ context.Context, url string) error {
	html, ok := p.pages[url]
	if !ok {
		return fmt.Errorf("no page for %s", url)
	}
	p.load(html)
	return nil
}

func elementID(el Element) string {
	id, _ := el.Attr("id")
	return id
}

func (p *fakePage) Click(el Element) error {
	id := elementID(el)
	p.clicked = append(p.clicked, id)
	if next, ok := p.clicks[id]; ok {
		p.load(next)
	}
	return nil
}

func (p *fakePage) Fill(el Element, value string) error {
	p.filled[elementID(el)] = value
	return nil
}

func (p *fakePage) SelectLabel(el Element, label string) error {
	for _, o := range el.Options() {
		if o.Label == label {
			p.labels[elementID(el)] = label
			return nil
		}
	}
	return fmt.Errorf("no option labelled %q", label)
}

func (p *fakePage) SelectValue(el Element, value string) error {
	for _, o := range el.Options() {
		if o.Value == value {
			p.values[elementID(el)] = value
			return nil
		}
	}
	return fmt.Errorf("no option with value %q", value)
}

func (p *fakePage) SelectIndex(el Element, index int) error {
	if index < 0 || index >= len(el.Options()) {
		return fmt.Errorf("option index %d out of range", index)
	}
	p.indexes[elementID(el)] = index
	return nil
}

func (p *fakePage) Evaluate(script string) (interface{}, error) {
	p.scripts = append(p.scripts, script)
	return nil, nil
}

func (p *fakePage) Content() (string, error) {
	return p.html, nil
}

func (p *fakePage) Screenshot(path string) error {
	p.shots = append(p.shots, path)
	return nil
}
