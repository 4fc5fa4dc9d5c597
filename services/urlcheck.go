package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"presale_scraper/httputil"
)

// PortalURLs are the disclosure portal pages probed by check-url.
var PortalURLs = []string{
	"https://lvr.land.moi.gov.tw/",
	"https://lvr.land.moi.gov.tw/service/corporationfr.action",
	"https://lvr.land.moi.gov.tw/jsp/list.jsp",
	"https://lvr.land.moi.gov.tw/jsp/list.jsp#pills-saleremark",
}

// PresaleKeywords mark a response that carries the pre-sale search.
var PresaleKeywords = []string{"預售屋", "建案", "pills-saleremark", "corporationfr"}

const snippetChars = 10000

type CheckResult struct {
	URL         string
	Scheme      string
	Host        string
	Path        string
	Fragment    string
	Status      int
	Elapsed     time.Duration
	ContentType string
	Headers     http.Header
	Keywords    map[string]bool
	Snippet     string
	Err         error
}

// OK reports a 200 response.
func (r CheckResult) OK() bool {
	return r.Err == nil && r.Status == http.StatusOK
}

type URLChecker struct {
	client *resty.Client
}

func NewURLChecker(base *http.Client, timeout time.Duration) *URLChecker {
	client := httputil.NewResty(base, timeout)
	client.SetHeaders(map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7",
		"Referer":         "https://lvr.land.moi.gov.tw/",
	})
	return &URLChecker{client: client}
}

// Check fetches rawURL with browser headers and reports what came back. The
// fragment is recorded but never sent.
func (c *URLChecker) Check(ctx context.Context, rawURL string) CheckResult {
	result := CheckResult{URL: rawURL, Keywords: make(map[string]bool)}

	u, err := url.Parse(rawURL)
	if err != nil {
		result.Err = fmt.Errorf("parse url: %w", err)
		return result
	}
	result.Scheme, result.Host, result.Path, result.Fragment = u.Scheme, u.Host, u.Path, u.Fragment

	start := time.Now()
	res, err := c.client.R().SetContext(ctx).Get(rawURL)
	result.Elapsed = time.Since(start)
	if err != nil {
		result.Err = err
		return result
	}

	result.Status = res.StatusCode()
	result.Headers = res.Header()
	result.ContentType = res.Header().Get("Content-Type")
	if result.Status != http.StatusOK {
		return result
	}

	body := res.String()
	lower := strings.ToLower(body)
	for _, kw := range PresaleKeywords {
		result.Keywords[kw] = strings.Contains(lower, strings.ToLower(kw))
	}
	result.Snippet = truncateRunes(body, snippetChars)
	return result
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Log writes the result the way check-url prints it.
func (r CheckResult) Log() {
	entry := log.WithFields(log.Fields{
		"url":      r.URL,
		"scheme":   r.Scheme,
		"host":     r.Host,
		"path":     r.Path,
		"fragment": r.Fragment,
	})
	if r.Err != nil {
		entry.WithError(r.Err).Error("request failed")
		return
	}
	entry = entry.WithFields(log.Fields{
		"status":       r.Status,
		"elapsed":      r.Elapsed.Round(10 * time.Millisecond).String(),
		"content_type": r.ContentType,
	})
	if !r.OK() {
		entry.Warn("unexpected status")
		return
	}
	entry.Info("response received")
	for _, kw := range PresaleKeywords {
		log.WithFields(log.Fields{"keyword": kw, "present": r.Keywords[kw]}).Info("keyword check")
	}
}

// SaveSnippet writes the captured body prefix to path.
func (r CheckResult) SaveSnippet(path string) error {
	if r.Snippet == "" {
		return fmt.Errorf("no content captured for %s", r.URL)
	}
	return os.WriteFile(path, []byte(r.Snippet), 0644)
}
