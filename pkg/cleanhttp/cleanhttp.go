// Package cleanhttp builds HTTP clients that do not share state with
// net/http's globals.
package cleanhttp

import (
	"net"
	"net/http"
	"time"
)

const DefaultUserAgent = "lab47/mrinstall"

func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// New returns a client that stamps every request with userAgent. The API
// rejects anonymous clients, so an empty agent falls back to the default.
func New(userAgent string) *http.Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &http.Client{
		Transport: &agentTransport{
			agent: userAgent,
			inner: NewTransport(),
		},
		Timeout: 10 * time.Minute,
	}
}

type agentTransport struct {
	agent string
	inner http.RoundTripper
}

func (t *agentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}

	return t.inner.RoundTrip(req)
}
