package tool

import (
	"net"
	"net/http"
	"time"
)

var DefaultDialTimeout = 30 * time.Second

// NewHTTPClient creates a keep-alive HTTP client for the local LLM server. It sets no
// overall timeout; callers bound each request through its context.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   DefaultDialTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}
	return &http.Client{
		Transport: transport,
	}
}
