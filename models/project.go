package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Unknown fills a 591 column the API left empty.
const Unknown = "未知"

// FlexString decodes a JSON string or number as text. The 591 API is not
// consistent about which one it sends.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// Project is one item from the 591 new-house search list.
type Project struct {
	HID       FlexString `json:"hid"`
	BuildName string     `json:"build_name"`
	Region    string     `json:"region"`
	Section   string     `json:"section"`
	Address   string     `json:"address"`
	Price     FlexString `json:"price"`
}

// ProjectDetail is the subset of detail-info that gets flattened.
type ProjectDetail struct {
	Region         string       `json:"region"`
	Section        string       `json:"section"`
	BuildName      string       `json:"build_name"`
	Households     FlexString   `json:"households"`
	LandDivision   string       `json:"land_division"`
	License        string       `json:"license"`
	BuildingDesign []DesignItem `json:"building_design"`
}

type DesignItem struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Builder is the content of the "投資建設" design entry.
func (d *ProjectDetail) Builder() string {
	for _, item := range d.BuildingDesign {
		if item.Title == "投資建設" {
			return item.Content
		}
	}
	return ""
}
