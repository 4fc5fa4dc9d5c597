package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestURLCheckerFindsKeywords(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><a href="#pills-SaleRemark">預售屋</a>` + strings.Repeat("字", 12000) + `</html>`))
	}))
	defer srv.Close()

	c := NewURLChecker(srv.Client(), 5*time.Second)
	res := c.Check(context.Background(), srv.URL+"/jsp/list.jsp#pills-saleremark")

	if !res.OK() {
		t.Fatalf("expected 200, got %d (%v)", res.Status, res.Err)
	}
	if res.Path != "/jsp/list.jsp" || res.Fragment != "pills-saleremark" || res.Scheme != "http" {
		t.Fatalf("unexpected URL parts: %+v", res)
	}
	if !res.Keywords["預售屋"] || !res.Keywords["pills-saleremark"] || res.Keywords["建案"] || res.Keywords["corporationfr"] {
		t.Fatalf("unexpected keywords %v", res.Keywords)
	}
	if n := len([]rune(res.Snippet)); n != snippetChars {
		t.Fatalf("snippet has %d chars, want %d", n, snippetChars)
	}
	if !strings.HasPrefix(res.ContentType, "text/html") {
		t.Fatalf("content type = %q", res.ContentType)
	}
	if gotHeaders.Get("Accept-Language") == "" || !strings.HasPrefix(gotHeaders.Get("User-Agent"), "Mozilla/5.0") {
		t.Fatalf("browser headers not sent: %v", gotHeaders)
	}

	path := filepath.Join(t.TempDir(), "response_content.txt")
	if err := res.SaveSnippet(path); err != nil {
		t.Fatalf("SaveSnippet: %v", err)
	}
	if data, err := os.ReadFile(path); err != nil || !strings.Contains(string(data), "預售屋") {
		t.Fatalf("snippet file = %q, %v", data, err)
	}
}

func TestURLCheckerNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	res := NewURLChecker(srv.Client(), time.Second).Check(context.Background(), srv.URL)
	if res.OK() || res.Status != http.StatusNotFound || res.Snippet != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := res.SaveSnippet(filepath.Join(t.TempDir(), "x.txt")); err == nil {
		t.Fatal("expected an error saving an empty snippet")
	}
}

func TestURLCheckerBadURL(t *testing.T) {
	res := NewURLChecker(nil, time.Second).Check(context.Background(), "://bad")
	if res.Err == nil {
		t.Fatal("expected a parse error")
	}
}
