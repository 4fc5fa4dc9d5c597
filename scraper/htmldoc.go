package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"presale_scraper/parse"
)

// HTMLDocument answers DOM queries against a static HTML snapshot.
type HTMLDocument struct {
	doc *goquery.Document
}

func NewHTMLDocument(html string) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &HTMLDocument{doc: doc}, nil
}

func (d *HTMLDocument) Query(selector string) ([]Element, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}
	var out []Element
	d.doc.FindMatcher(m).Each(func(_ int, s *goquery.Selection) {
		out = append(out, htmlElement{s: s})
	})
	return out, nil
}

func (d *HTMLDocument) Selection() *goquery.Selection {
	return d.doc.Selection
}

type htmlElement struct {
	s *goquery.Selection
}

func (e htmlElement) Tag() string {
	return goquery.NodeName(e.s)
}

func (e htmlElement) Attr(name string) (string, bool) {
	return e.s.Attr(name)
}

func (e htmlElement) Text() string {
	return parse.CleanText(e.s.Text())
}

// Visible approximates layout visibility from markup: hidden attributes,
// inline display/visibility styles and hidden inputs on the node or any
// ancestor.
func (e htmlElement) Visible() bool {
	if t, _ := e.s.Attr("type"); e.Tag() == "input" && strings.EqualFold(t, "hidden") {
		return false
	}
	for n := e.s; n.Length() > 0; n = n.Parent() {
		if _, ok := n.Attr("hidden"); ok {
			return false
		}
		style, _ := n.Attr("style")
		style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

func (e htmlElement) Enabled() bool {
	_, disabled := e.s.Attr("disabled")
	return !disabled
}

func (e htmlElement) Options() []Option {
	var out []Option
	e.s.Find("option").Each(func(_ int, o *goquery.Selection) {
		label := parse.CleanText(o.Text())
		value, ok := o.Attr("value")
		if !ok {
			value = label
		}
		out = append(out, Option{Value: value, Label: label})
	})
	return out
}
