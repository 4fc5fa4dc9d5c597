package exporter

import (
	"strconv"
	"strings"

	"presale_scraper/models"
	"presale_scraper/parse"
)

const (
	suffixAD       = "(西元)"
	suffixPriceMin = "最低"
	suffixPriceMax = "最高"
	ColumnBuilding = "建築類型"
)

// Normalize returns copies of the records with derived columns appended.
// Original values are left as scraped.
func Normalize(records []models.Record) []models.Record {
	out := make([]models.Record, len(records))
	for i, r := range records {
		out[i] = normalizeRecord(r)
	}
	return out
}

func normalizeRecord(r models.Record) models.Record {
	n := r.Clone()
	var texts []string
	for _, k := range r.Keys() {
		v := r.Get(k)
		if v == "" {
			continue
		}
		texts = append(texts, v)

		if parse.IsDate(v) {
			n.Set(k+suffixAD, parse.Date(v))
			continue
		}
		if strings.Contains(k, "價") {
			if lo, hi, ok := parse.PriceRange(v); ok {
				n.Set(k+suffixPriceMin, strconv.Itoa(lo))
				n.Set(k+suffixPriceMax, strconv.Itoa(hi))
			}
		}
	}
	if _, exists := r.Lookup(ColumnBuilding); !exists {
		n.Set(ColumnBuilding, parse.BuildingType(strings.Join(texts, " ")))
	}
	return n
}
