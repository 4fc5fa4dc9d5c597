package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Column names added to every record by the orchestrator.
const (
	ColumnCity     = "城市"
	ColumnDistrict = "區域"
	WholeCity      = "全市"
)

// OverflowColumn names a cell that has no matching header (1-based).
func OverflowColumn(i int) string {
	return fmt.Sprintf("欄位%d", i)
}

// Record is one result row: column header -> cell text, in the order the
// columns were first set. Duplicate headers overwrite the earlier value.
type Record struct {
	keys   []string
	values map[string]string
}

func NewRecord() Record {
	return Record{values: make(map[string]string)}
}

// RecordFrom builds a record from alternating key/value pairs.
func RecordFrom(pairs ...string) Record {
	r := NewRecord()
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

func (r *Record) Set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

func (r Record) Get(key string) string {
	return r.values[key]
}

func (r Record) Lookup(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r Record) Len() int {
	return len(r.keys)
}

func (r Record) Clone() Record {
	c := Record{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]string, len(r.values)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Map returns a copy of the values without ordering.
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}

// MarshalJSON writes the columns in insertion order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONString(&buf, r.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record: expected object, got %v", tok)
	}

	*r = NewRecord()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: expected string key, got %v", tok)
		}

		var raw interface{}
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record: value for %q: %w", key, err)
		}
		switch v := raw.(type) {
		case nil:
			r.Set(key, "")
		case string:
			r.Set(key, v)
		default:
			r.Set(key, fmt.Sprint(v))
		}
	}
	_, err = dec.Token()
	return err
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// StoredRecord is a record as kept in the operational database.
type StoredRecord struct {
	Fingerprint string
	SiteID      string
	City        string
	District    string
	Record      Record
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	TimesSeen   int
}
