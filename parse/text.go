package parse

import "strings"

// CleanText trims and collapses runs of whitespace into single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var buildingTypes = []string{
	"住宅大樓", "商辦大樓", "住商混合", "透天厝", "店面", "辦公室",
	"套房", "公寓", "華廈", "廠辦", "倉庫", "其他",
}

const Unclassified = "未分類"

// BuildingType returns the first known building type found in text.
func BuildingType(text string) string {
	for _, bt := range buildingTypes {
		if strings.Contains(text, bt) {
			return bt
		}
	}
	return Unclassified
}
