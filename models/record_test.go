package models

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecordKeepsInsertionOrder(t *testing.T) {
	r := NewRecord()
	r.Set("建案名稱", "A")
	r.Set("地址", "B")
	r.Set("建案名稱", "C")

	if diff := cmp.Diff([]string{"建案名稱", "地址"}, r.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if r.Get("建案名稱") != "C" {
		t.Fatalf("expected overwrite, got %s", r.Get("建案名稱"))
	}
}

func TestRecordJSONRoundTripPreservesOrder(t *testing.T) {
	r := RecordFrom("z", "1", "a", "<2>", "m", "")

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		t.Fatalf("encode: %v", err)
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	want := `{"z":"1","a":"<2>","m":""}`
	if string(data) != want {
		t.Fatalf("expected %s, got %s", want, data)
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(r.Keys(), back.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if back.Get("a") != "<2>" {
		t.Fatalf("unexpected value %q", back.Get("a"))
	}
}

func TestRecordUnmarshalNonStringValues(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"戶數":120,"備註":null,"ok":true}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Get("戶數") != "120" || r.Get("備註") != "" || r.Get("ok") != "true" {
		t.Fatalf("unexpected values %v", r.Map())
	}
}

func TestRecordCloneIsIndependent(t *testing.T) {
	r := RecordFrom("a", "1")
	c := r.Clone()
	c.Set("b", "2")
	c.Set("a", "x")
	if r.Len() != 1 || r.Get("a") != "1" {
		t.Fatalf("original mutated: %v", r.Map())
	}
}

func TestOverflowColumn(t *testing.T) {
	if OverflowColumn(12) != "欄位12" {
		t.Fatalf("unexpected %s", OverflowColumn(12))
	}
}
