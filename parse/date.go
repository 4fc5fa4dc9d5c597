package parse

import (
	"fmt"
	"strconv"
	"strings"
)

// Date normalises ROC or common-era dates to YYYY-MM-DD. Accepted forms:
// 民國111年01月01日, 111/01/01, 111-01-01, 2022/01/01. Anything else is
// returned cleaned but otherwise untouched.
func Date(text string) string {
	s := CleanText(text)
	if s == "" {
		return ""
	}

	roc := false
	switch {
	case strings.Contains(s, "民國"):
		s = strings.NewReplacer("民國", "", "年", "/", "月", "/", "日", "", " ", "").Replace(s)
		roc = true
	case strings.ContainsAny(s, "/-"):
		s = strings.ReplaceAll(s, "-", "/")
	default:
		return s
	}

	parts := strings.Split(s, "/")
	if len(parts) < 3 {
		return CleanText(text)
	}
	year, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	day, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return CleanText(text)
	}
	if roc || len(parts[0]) <= 3 {
		year = ROCToAD(year)
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// IsDate reports whether Date would reformat the text.
func IsDate(text string) bool {
	out := Date(text)
	return out != "" && out != CleanText(text)
}
