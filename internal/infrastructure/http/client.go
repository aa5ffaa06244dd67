package http

import (
	"net/http"
	"time"
)

// ClientConfig tunes an HTTP client used against the customs portals.
type ClientConfig struct {
	Timeout       time.Duration
	Transport     http.RoundTripper
	CheckRedirect func(req *http.Request, via []*http.Request) error
}

// NewClient builds an *http.Client for portal requests. A nil or zero config
// gets a 30s timeout and a transport with keep-alive pooling sized for a
// single upstream host, which is the shape of every customs endpoint this
// service talks to.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &http.Client{
		Timeout:       timeout,
		Transport:     transport,
		CheckRedirect: cfg.CheckRedirect,
	}
}
