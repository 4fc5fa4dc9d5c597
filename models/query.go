package models

import (
	"errors"
	"fmt"
)

var ErrInvalidQuery = errors.New("invalid query")

// rocOffset is the difference between the common-era and ROC calendars.
const rocOffset = 1911

// ROCMonth is a year/month on the ROC calendar, as the disclosure portal's
// date inputs expect it.
type ROCMonth struct {
	Year  int `json:"year" yaml:"year"`
	Month int `json:"month" yaml:"month"`
}

func (m ROCMonth) ADYear() int {
	return m.Year + rocOffset
}

func (m ROCMonth) String() string {
	return fmt.Sprintf("%d/%02d", m.Year, m.Month)
}

func (m ROCMonth) before(o ROCMonth) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Query is one search against a portal.
type Query struct {
	Site     string            `json:"site"`
	City     string            `json:"city,omitempty"`
	District string            `json:"district,omitempty"`
	Start    ROCMonth          `json:"start"`
	End      ROCMonth          `json:"end"`
	Filters  map[string]string `json:"filters,omitempty"`
	Sort     map[string]string `json:"sort,omitempty"`
	MaxPages int               `json:"max_pages,omitempty"`
}

// Validate checks the date range; requireCity is set for browser sites where
// the city drives the form.
func (q Query) Validate(requireCity bool) error {
	if requireCity && q.City == "" {
		return fmt.Errorf("%w: city is required", ErrInvalidQuery)
	}
	for _, m := range []ROCMonth{q.Start, q.End} {
		if m.Month < 1 || m.Month > 12 {
			return fmt.Errorf("%w: month %d out of range", ErrInvalidQuery, m.Month)
		}
		if m.Year <= 0 {
			return fmt.Errorf("%w: ROC year %d out of range", ErrInvalidQuery, m.Year)
		}
	}
	if q.End.before(q.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidQuery, q.End, q.Start)
	}
	if q.MaxPages < 0 {
		return fmt.Errorf("%w: max pages %d", ErrInvalidQuery, q.MaxPages)
	}
	return nil
}

// DistrictLabel is the value written to the district column.
func (q Query) DistrictLabel() string {
	if q.District == "" {
		return WholeCity
	}
	return q.District
}

func (q Query) String() string {
	if q.City == "" {
		return fmt.Sprintf("%s %s-%s", q.Site, q.Start, q.End)
	}
	return fmt.Sprintf("%s %s/%s %s-%s", q.Site, q.City, q.DistrictLabel(), q.Start, q.End)
}
