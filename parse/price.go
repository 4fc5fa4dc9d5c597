package parse

import (
	"strconv"
	"strings"
)

// PriceRange reads "總價 1,000~2,000萬" style text. A single value yields
// min == max. Units are left to the caller.
func PriceRange(text string) (min, max int, ok bool) {
	text = strings.NewReplacer(" ", "", ",", "", "　", "").Replace(text)
	if text == "" {
		return 0, 0, false
	}
	text = strings.ReplaceAll(text, "～", "~")

	if lo, hi, found := strings.Cut(text, "~"); found {
		a, okA := digitSpan(lo)
		b, okB := digitSpan(hi)
		if !okA || !okB {
			return 0, 0, false
		}
		return a, b, true
	}

	v, ok := digitSpan(text)
	if !ok {
		return 0, 0, false
	}
	return v, v, true
}

// digitSpan parses the text between the first and last digit.
func digitSpan(s string) (int, bool) {
	start := strings.IndexFunc(s, isDigit)
	end := strings.LastIndexFunc(s, isDigit)
	if start < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[start : end+1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
