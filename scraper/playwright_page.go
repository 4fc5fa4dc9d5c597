package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"

	"presale_scraper/parse"
)

// pwPage adapts a playwright page to Page. Every element it returns carries
// its own locator so actions land on the node that was resolved.
type pwPage struct {
	page    playwright.Page
	timeout float64
}

func newPlaywrightPage(page playwright.Page, timeoutMS float64) *pwPage {
	return &pwPage{page: page, timeout: timeoutMS}
}

type pwElement struct {
	loc playwright.Locator
}

func (p *pwPage) Query(selector string) ([]Element, error) {
	locs, err := p.page.Locator(selector).All()
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}
	out := make([]Element, len(locs))
	for i, l := range locs {
		out[i] = pwElement{loc: l}
	}
	return out, nil
}

func (p *pwPage) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(p.timeout),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}

func locatorOf(el Element) (playwright.Locator, error) {
	pe, ok := el.(pwElement)
	if !ok {
		return nil, fmt.Errorf("element %T does not belong to a browser page", el)
	}
	return pe.loc, nil
}

func (p *pwPage) Click(el Element) error {
	loc, err := locatorOf(el)
	if err != nil {
		return err
	}
	return loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(p.timeout)})
}

func (p *pwPage) Fill(el Element, value string) error {
	loc, err := locatorOf(el)
	if err != nil {
		return err
	}
	return loc.Fill(value, playwright.LocatorFillOptions{Timeout: playwright.Float(p.timeout)})
}

func (p *pwPage) selectOption(el Element, values playwright.SelectOptionValues) error {
	loc, err := locatorOf(el)
	if err != nil {
		return err
	}
	_, err = loc.SelectOption(values, playwright.LocatorSelectOptionOptions{Timeout: playwright.Float(p.timeout)})
	return err
}

func (p *pwPage) SelectLabel(el Element, label string) error {
	return p.selectOption(el, playwright.SelectOptionValues{Labels: playwright.StringSlice(label)})
}

func (p *pwPage) SelectValue(el Element, value string) error {
	return p.selectOption(el, playwright.SelectOptionValues{Values: playwright.StringSlice(value)})
}

func (p *pwPage) SelectIndex(el Element, index int) error {
	return p.selectOption(el, playwright.SelectOptionValues{Indexes: playwright.IntSlice(index)})
}

func (p *pwPage) Evaluate(script string) (interface{}, error) {
	return p.page.Evaluate(script)
}

func (p *pwPage) Content() (string, error) {
	return p.page.Content()
}

func (p *pwPage) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (e pwElement) Tag() string {
	v, err := e.loc.Evaluate("el => el.tagName.toLowerCase()", nil)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (e pwElement) Attr(name string) (string, bool) {
	v, err := e.loc.Evaluate("(el, name) => el.getAttribute(name)", name)
	if err != nil || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (e pwElement) Text() string {
	text, err := e.loc.InnerText()
	if err != nil {
		return ""
	}
	return parse.CleanText(text)
}

func (e pwElement) Visible() bool {
	ok, err := e.loc.IsVisible()
	return err == nil && ok
}

func (e pwElement) Enabled() bool {
	ok, err := e.loc.IsEnabled()
	return err == nil && ok
}

func (e pwElement) Options() []Option {
	v, err := e.loc.Evaluate("el => Array.from(el.options || []).map(o => [o.value, o.text])", nil)
	if err != nil {
		return nil
	}
	rows, _ := v.([]interface{})
	out := make([]Option, 0, len(rows))
	for _, row := range rows {
		pair, ok := row.([]interface{})
		if !ok || len(pair) != 2 {
			continue
		}
		value, _ := pair[0].(string)
		label, _ := pair[1].(string)
		out = append(out, Option{Value: value, Label: strings.TrimSpace(label)})
	}
	return out
}
