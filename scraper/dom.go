package scraper

import (
	"context"
	"errors"
)

var (
	ErrNotResolved = errors.New("element not resolved")
	ErrNoResults   = errors.New("no result table")
)

// Option is one entry of a <select>.
type Option struct {
	Value string
	Label string
}

// Element is a read-only view of a DOM node, shared by static HTML and the
// live browser.
type Element interface {
	Tag() string
	Attr(name string) (string, bool)
	Text() string
	Visible() bool
	Enabled() bool
	Options() []Option
}

type DOM interface {
	Query(selector string) ([]Element, error)
}

// Page is an interactive document. Elements passed back must come from the
// same page's Query.
type Page interface {
	DOM
	Goto(ctx context.Context, url string) error
	Click(el Element) error
	Fill(el Element, value string) error
	SelectLabel(el Element, label string) error
	SelectValue(el Element, value string) error
	SelectIndex(el Element, index int) error
	Evaluate(script string) (interface{}, error)
	Content() (string, error)
	Screenshot(path string) error
}

func hasClass(el Element, class string) bool {
	v, _ := el.Attr("class")
	return class != "" && containsFold(v, class)
}
