package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Config holds outbound HTTP client configuration.
type Config struct {
	Timeout         time.Duration
	MaxConnsPerHost int
}

// DefaultConfig returns the settings used for the payment processor and the
// search cluster.
func DefaultConfig() Config {
	return Config{
		Timeout:         15 * time.Second,
		MaxConnsPerHost: 50,
	}
}

// NewTransport returns a pooled transport. It is shared by clients that take a
// RoundTripper rather than an *http.Client.
func NewTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// New returns an *http.Client with a pooled transport and an overall timeout.
// Requests are not retried; callers decide whether a failure is fatal.
func New(cfg Config) *http.Client {
	if cfg.Timeout == 0 {
		cfg = DefaultConfig()
	}
	return &http.Client{
		Transport: NewTransport(cfg),
		Timeout:   cfg.Timeout,
	}
}
