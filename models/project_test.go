package models

import (
	"encoding/json"
	"testing"
)

func TestProjectDetailDecoding(t *testing.T) {
	data := []byte(`{
		"region": "台北市",
		"section": "內湖區",
		"build_name": "示範建案",
		"households": 168,
		"land_division": "第三種住宅區",
		"license": "110建字第0001號",
		"building_design": [
			{"title": "建築設計", "content": "某建築師事務所"},
			{"title": "投資建設", "content": "某建設股份有限公司"}
		]
	}`)

	var d ProjectDetail
	if err := json.Unmarshal(data, &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Households.String() != "168" {
		t.Fatalf("expected households 168, got %q", d.Households)
	}
	if d.Builder() != "某建設股份有限公司" {
		t.Fatalf("unexpected builder %q", d.Builder())
	}
}

func TestFlexStringAcceptsStringsAndNumbers(t *testing.T) {
	var p []Project
	data := []byte(`[{"hid": 120137, "price": "68萬/坪"}, {"hid": "135743", "price": null}]`)
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p[0].HID != "120137" || p[1].HID != "135743" {
		t.Fatalf("unexpected hids %q %q", p[0].HID, p[1].HID)
	}
	if p[0].Price != "68萬/坪" || p[1].Price != "" {
		t.Fatalf("unexpected prices %q %q", p[0].Price, p[1].Price)
	}
}
