package models

import (
	"errors"
	"testing"
)

func TestQueryValidate(t *testing.T) {
	base := Query{
		Site:  "lvr_land",
		City:  "臺北市",
		Start: ROCMonth{Year: 110, Month: 1},
		End:   ROCMonth{Year: 114, Month: 12},
	}
	if err := base.Validate(true); err != nil {
		t.Fatalf("expected valid query, got %v", err)
	}

	cases := map[string]func(q *Query){
		"missing city":  func(q *Query) { q.City = "" },
		"month zero":    func(q *Query) { q.Start.Month = 0 },
		"month 13":      func(q *Query) { q.End.Month = 13 },
		"end before":    func(q *Query) { q.End = ROCMonth{Year: 109, Month: 12} },
		"same year rev": func(q *Query) { q.Start = ROCMonth{Year: 114, Month: 12}; q.End = ROCMonth{Year: 114, Month: 11} },
		"negative page": func(q *Query) { q.MaxPages = -1 },
	}
	for name, mutate := range cases {
		q := base
		mutate(&q)
		if err := q.Validate(true); !errors.Is(err, ErrInvalidQuery) {
			t.Fatalf("%s: expected ErrInvalidQuery, got %v", name, err)
		}
	}

	noCity := base
	noCity.City = ""
	if err := noCity.Validate(false); err != nil {
		t.Fatalf("api query without city should be valid: %v", err)
	}
}

func TestROCMonth(t *testing.T) {
	m := ROCMonth{Year: 113, Month: 5}
	if m.ADYear() != 2024 {
		t.Fatalf("expected 2024, got %d", m.ADYear())
	}
	if m.String() != "113/05" {
		t.Fatalf("unexpected string %s", m.String())
	}
}

func TestQueryDistrictLabel(t *testing.T) {
	q := Query{City: "新北市"}
	if q.DistrictLabel() != WholeCity {
		t.Fatalf("expected %s, got %s", WholeCity, q.DistrictLabel())
	}
	q.District = "板橋區"
	if q.DistrictLabel() != "板橋區" {
		t.Fatalf("unexpected label %s", q.DistrictLabel())
	}
}
