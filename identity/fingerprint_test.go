package identity

import (
	"testing"

	"presale_scraper/models"
)

func TestFingerprintIgnoresColumnOrderAndNoise(t *testing.T) {
	a := models.RecordFrom("建案名稱", "信義之星", "地址", "臺北市信義區松仁路１號", "備註", "")
	b := models.RecordFrom("地址", " 臺北市信義區松仁路1號。", "建案名稱", "信義之星")

	if Fingerprint("lvr_land", a) != Fingerprint("lvr_land", b) {
		t.Fatal("expected equal fingerprints for cosmetically different records")
	}
	if Fingerprint("lvr_land", a) == Fingerprint("newhouse591", a) {
		t.Fatal("site must be part of the fingerprint")
	}
	if len(Fingerprint("lvr_land", a)) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(Fingerprint("lvr_land", a)))
	}
}

func TestFingerprintDiffersOnValue(t *testing.T) {
	a := models.RecordFrom("建案名稱", "A案", "總戶數", "120")
	b := models.RecordFrom("建案名稱", "A案", "總戶數", "121")
	if Fingerprint("s", a) == Fingerprint("s", b) {
		t.Fatal("different values must not collide")
	}
}

func TestNormalizeText(t *testing.T) {
	tests := map[string]string{
		"  Ｈello,   World! ": "hello world",
		"新北市（板橋區）":           "新北市 板橋區",
		"１２３":                "123",
	}
	for in, want := range tests {
		if got := NormalizeText(in); got != want {
			t.Fatalf("NormalizeText(%q) = %q, want %q", in, got, want)
		}
	}
}
