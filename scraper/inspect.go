package scraper

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// ControlInfo describes one form control for diagnostics.
type ControlInfo struct {
	Tag         string   `json:"tag"`
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name,omitempty"`
	Class       string   `json:"class,omitempty"`
	Type        string   `json:"type,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Value       string   `json:"value,omitempty"`
	Text        string   `json:"text,omitempty"`
	Visible     bool     `json:"visible"`
	Options     []string `json:"options,omitempty"`
}

// PageReport lists the controls found on a page.
type PageReport struct {
	Selects  []ControlInfo     `json:"selects"`
	Inputs   []ControlInfo     `json:"inputs"`
	Buttons  []ControlInfo     `json:"buttons"`
	Forms    []ControlInfo     `json:"forms"`
	Pane     []ControlInfo     `json:"presale_pane"`
	Resolved map[string]string `json:"resolved"`
}

// InspectPage catalogues form controls and reports how each strategy
// resolves against the page.
func InspectPage(dom DOM, strategies Strategies) PageReport {
	report := PageReport{
		Selects:  describe(dom, "select"),
		Inputs:   describe(dom, "input"),
		Buttons:  describe(dom, "button"),
		Forms:    describe(dom, "form"),
		Pane:     describe(dom, "#pills-saleremark > *"),
		Resolved: make(map[string]string),
	}
	for name, s := range strategies {
		if _, res, err := Resolve(dom, s); err == nil {
			report.Resolved[name] = res.String()
		} else {
			report.Resolved[name] = "unresolved"
		}
	}
	return report
}

func describe(dom DOM, selector string) []ControlInfo {
	els, err := dom.Query(selector)
	if err != nil {
		return nil
	}
	out := make([]ControlInfo, 0, len(els))
	for _, el := range els {
		info := ControlInfo{Tag: el.Tag(), Visible: el.Visible()}
		info.ID, _ = el.Attr("id")
		info.Name, _ = el.Attr("name")
		info.Class, _ = el.Attr("class")
		info.Type, _ = el.Attr("type")
		info.Placeholder, _ = el.Attr("placeholder")
		info.Value, _ = el.Attr("value")
		if el.Tag() != "form" {
			info.Text = truncate(el.Text(), 80)
		}
		if el.Tag() == "select" {
			info.Options = optionLabels(el.Options())
		}
		out = append(out, info)
	}
	return out
}

// Log writes the report at info level.
func (r PageReport) Log() {
	for group, controls := range map[string][]ControlInfo{
		"select": r.Selects, "input": r.Inputs, "button": r.Buttons, "form": r.Forms, "pane": r.Pane,
	} {
		log.WithFields(log.Fields{"kind": group, "count": len(controls)}).Info("page controls")
		for i, c := range controls {
			fields := log.Fields{"kind": group, "index": i, "tag": c.Tag, "id": c.ID, "name": c.Name, "class": c.Class, "visible": c.Visible}
			if c.Type != "" {
				fields["type"] = c.Type
			}
			if c.Placeholder != "" {
				fields["placeholder"] = c.Placeholder
			}
			if c.Text != "" {
				fields["text"] = c.Text
			}
			if len(c.Options) > 0 {
				fields["options"] = strings.Join(c.Options, ",")
			}
			log.WithFields(fields).Info("control")
		}
	}
	for name, res := range r.Resolved {
		log.WithFields(log.Fields{"strategy": name, "result": res}).Info("strategy")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
