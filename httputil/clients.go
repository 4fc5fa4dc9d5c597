package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"presale_scraper/config"
)

const DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Clients struct {
	Scraping *http.Client // proxied when PROXY_URL is set
}

func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	if proxyCfg != nil && proxyCfg.URL != "" {
		if proxyURL, err := url.Parse(proxyCfg.URL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			log.WithError(err).Warn("ignoring invalid PROXY_URL")
		}
	}

	scraping := &http.Client{
		Timeout:   15 * time.Second,
		Transport: transport,
	}

	return &Clients{Scraping: scraping}
}

// NewResty wraps an http.Client in a resty client with a desktop user agent
// and request/response debug logging.
func NewResty(base *http.Client, timeout time.Duration) *resty.Client {
	var client *resty.Client
	if base != nil {
		client = resty.NewWithClient(base)
	} else {
		client = resty.New()
	}
	client.SetHeader("user-agent", DesktopUserAgent)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		log.WithFields(log.Fields{"method": req.Method, "url": req.URL}).Debug("start request")
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		log.WithFields(log.Fields{
			"method":  res.Request.Method,
			"url":     res.Request.URL,
			"status":  res.StatusCode(),
			"elapsed": res.Time(),
		}).Debug("request finished")
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		log.WithFields(log.Fields{"method": req.Method, "url": req.URL}).WithError(err).Warn("request failed")
	})

	return client
}
