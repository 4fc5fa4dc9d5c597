package scraper

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Stage names the step of a strategy that produced a match.
type Stage string

const (
	StageSelector Stage = "selector"
	StagePosition Stage = "position"
	StageKeyword  Stage = "keyword"
)

// Candidate is a CSS selector, optionally narrowed to elements whose text
// (or value attribute) contains, or equals when Exact, the given Text.
type Candidate struct {
	Selector string
	Text     string
	Exact    bool
}

type FallbackKind int

const (
	ByPosition FallbackKind = iota
	ByKeyword
)

// Fallback runs after every candidate failed. ByPosition takes the Index-th
// acceptable element matched by Selector; ByKeyword takes the first whose
// text or value contains (or equals, when Exact) any keyword.
type Fallback struct {
	Kind        FallbackKind
	Selector    string
	Index       int
	Keywords    []string
	Exact       bool
	VisibleOnly bool
}

// Strategy is an ordered plan for locating one page element.
type Strategy struct {
	Name           string
	Candidates     []Candidate
	Fallbacks      []Fallback
	RequireVisible bool
	RequireEnabled bool
	ExcludeClass   string
}

type Resolution struct {
	Strategy string
	Stage    Stage
	Selector string
	Index    int
	Keyword  string
}

func (r Resolution) String() string {
	s := fmt.Sprintf("%s via %s %q[%d]", r.Strategy, r.Stage, r.Selector, r.Index)
	if r.Keyword != "" {
		s += fmt.Sprintf(" keyword %q", r.Keyword)
	}
	return s
}

func (s Strategy) accepts(el Element) bool {
	if s.RequireVisible && !el.Visible() {
		return false
	}
	if s.RequireEnabled && !el.Enabled() {
		return false
	}
	if s.ExcludeClass != "" && hasClass(el, s.ExcludeClass) {
		return false
	}
	return true
}

func (c Candidate) matches(el Element) bool {
	if c.Text == "" {
		return true
	}
	return textMatches(el, c.Text, c.Exact)
}

func textMatches(el Element, want string, exact bool) bool {
	texts := []string{el.Text()}
	if v, ok := el.Attr("value"); ok {
		texts = append(texts, strings.TrimSpace(v))
	}
	for _, t := range texts {
		if exact && t == want {
			return true
		}
		if !exact && strings.Contains(t, want) {
			return true
		}
	}
	return false
}

// Resolve walks the candidates in order, then the fallbacks in order, and
// returns the first acceptable element.
func Resolve(dom DOM, s Strategy) (Element, Resolution, error) {
	for _, c := range s.Candidates {
		els, err := dom.Query(c.Selector)
		if err != nil {
			log.WithFields(log.Fields{"strategy": s.Name, "selector": c.Selector}).WithError(err).Debug("selector failed")
			continue
		}
		for i, el := range els {
			if c.matches(el) && s.accepts(el) {
				return el, Resolution{Strategy: s.Name, Stage: StageSelector, Selector: c.Selector, Index: i}, nil
			}
		}
	}

	for _, f := range s.Fallbacks {
		els, err := dom.Query(f.Selector)
		if err != nil {
			log.WithFields(log.Fields{"strategy": s.Name, "selector": f.Selector}).WithError(err).Debug("fallback selector failed")
			continue
		}
		switch f.Kind {
		case ByPosition:
			n := 0
			for i, el := range els {
				if !s.accepts(el) || (f.VisibleOnly && !(el.Visible() && el.Enabled())) {
					continue
				}
				if n == f.Index {
					return el, Resolution{Strategy: s.Name, Stage: StagePosition, Selector: f.Selector, Index: i}, nil
				}
				n++
			}
		case ByKeyword:
			for i, el := range els {
				if !s.accepts(el) || (f.VisibleOnly && !(el.Visible() && el.Enabled())) {
					continue
				}
				for _, kw := range f.Keywords {
					if textMatches(el, kw, f.Exact) {
						return el, Resolution{Strategy: s.Name, Stage: StageKeyword, Selector: f.Selector, Index: i, Keyword: kw}, nil
					}
				}
			}
		}
	}

	return nil, Resolution{Strategy: s.Name}, fmt.Errorf("%w: %s", ErrNotResolved, s.Name)
}

// Exists reports whether the strategy resolves at all.
func Exists(dom DOM, s Strategy) bool {
	_, _, err := Resolve(dom, s)
	return err == nil
}

// ChooseOption picks the label to select for want: an exact label match,
// then the first label containing want, then (when firstNonEmpty) the first
// non-blank label.
func ChooseOption(options []string, want string, firstNonEmpty bool) (string, bool) {
	want = strings.TrimSpace(want)
	for _, o := range options {
		if strings.TrimSpace(o) == want {
			return o, true
		}
	}
	if want != "" {
		for _, o := range options {
			if strings.Contains(o, want) {
				return o, true
			}
		}
	}
	if firstNonEmpty {
		for _, o := range options {
			if strings.TrimSpace(o) != "" {
				return o, true
			}
		}
	}
	return "", false
}

func optionLabels(opts []Option) []string {
	labels := make([]string, len(opts))
	for i, o := range opts {
		labels[i] = o.Label
	}
	return labels
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
