package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/width"

	"presale_scraper/models"
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

// Fingerprint identifies a record for first/last-seen bookkeeping. Column
// order does not matter; empty cells are ignored.
func Fingerprint(site string, r models.Record) string {
	keys := r.Keys()
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(strings.ToLower(site))
	for _, k := range keys {
		v := NormalizeText(r.Get(k))
		if v == "" {
			continue
		}
		b.WriteByte('|')
		b.WriteString(NormalizeText(k))
		b.WriteByte('=')
		b.WriteString(v)
	}
	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:16])
}

// NormalizeText folds full-width characters, lowercases and strips
// punctuation so cosmetic differences between scrapes hash the same.
func NormalizeText(s string) string {
	s = width.Fold.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	s = punctRegex.ReplaceAllString(s, " ")
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
