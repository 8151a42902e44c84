package client

import (
	"net/http"
	"sync"
)

// BearerHolder is the current bearer token shared between the controller and outbound requests.
type BearerHolder struct {
	mu    sync.RWMutex
	token string
}

func (h *BearerHolder) Set(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

func (h *BearerHolder) Get() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// BearerTransport adds the current bearer token to requests that do not carry an Authorization header.
type BearerTransport struct {
	Base   http.RoundTripper
	Bearer *BearerHolder
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	token := t.Bearer.Get()
	if token == "" || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(clone)
}
