package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rryowa/blog_admin/internal/models"
)

var (
	// ErrUnavailable covers network failures, 5xx answers and unrecognised response shapes.
	ErrUnavailable = errors.New("service unreachable, try later")
	// ErrRejected is a 4xx answer outside the session protocol, such as bad credentials.
	ErrRejected = errors.New("request rejected")
)

const (
	maxErrorBody = 4 << 10

	// cookieStorageKey holds the refresh cookies between runs when the client is given a LocalStorage.
	cookieStorageKey = "blogadmin.cookies"
)

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type logoutRequest struct {
	SessionID string `json:"sessionId,omitempty"`
}

type errorResponse struct {
	Reason string `json:"reason"`
}

// SessionAPI is the server side of the session protocol as seen by the controller.
type SessionAPI interface {
	Verify(ctx context.Context, sessionID string) (models.Outcome, error)
	Refresh(ctx context.Context, sessionID string) (models.Outcome, error)
	Login(ctx context.Context, email, password string) (*models.LoginResponse, error)
	Logout(ctx context.Context, sessionID string) error
}

// HTTPClient talks to the admin API. Refresh cookies live in its cookie jar; the bearer token is
// attached by BearerTransport.
type HTTPClient struct {
	baseURL string
	origin  *url.URL
	http    *http.Client
	persist LocalStorage
}

var _ SessionAPI = (*HTTPClient)(nil)

// NewHTTPClient builds a client for baseURL. With a non-nil persist the cookie jar is restored from
// and saved to it, so a session survives process restarts.
func NewHTTPClient(baseURL string, timeout time.Duration, bearer *BearerHolder, persist LocalStorage) (*HTTPClient, error) {
	origin, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	c := &HTTPClient{
		baseURL: origin.String(),
		origin:  origin,
		http: &http.Client{
			Timeout:   timeout,
			Jar:       jar,
			Transport: &BearerTransport{Bearer: bearer},
		},
		persist: persist,
	}
	if err := c.restoreCookies(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *HTTPClient) Verify(ctx context.Context, sessionID string) (models.Outcome, error) {
	return c.postOutcome(ctx, "/api/session/verify", sessionID)
}

func (c *HTTPClient) Refresh(ctx context.Context, sessionID string) (models.Outcome, error) {
	return c.postOutcome(ctx, "/api/session/refresh", sessionID)
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var resp models.LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Logout(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout", logoutRequest{SessionID: sessionID}, nil)
}

// Me returns the profile of the current bearer token subject.
func (c *HTTPClient) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) postOutcome(ctx context.Context, path, sessionID string) (models.Outcome, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, path, sessionRequest{SessionID: sessionID}, &raw); err != nil {
		return nil, err
	}
	out, err := models.DecodeOutcome(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return out, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := c.persistCookies(); err != nil {
		return err
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrUnavailable, readReason(resp))
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrRejected, readReason(resp))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	return nil
}

func readReason(resp *http.Response) string {
	var e errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &e); err == nil && e.Reason != "" {
		return e.Reason
	}
	return resp.Status
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (c *HTTPClient) restoreCookies() error {
	if c.persist == nil {
		return nil
	}
	raw, ok, err := c.persist.Get(cookieStorageKey)
	if err != nil || !ok || raw == "" {
		return err
	}
	var stored []storedCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return fmt.Errorf("decode stored cookies: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		cookies = append(cookies, &http.Cookie{Name: sc.Name, Value: sc.Value})
	}
	c.http.Jar.SetCookies(c.origin, cookies)
	return nil
}

func (c *HTTPClient) persistCookies() error {
	if c.persist == nil {
		return nil
	}
	cookies := c.http.Jar.Cookies(c.origin)
	if len(cookies) == 0 {
		return c.persist.Remove(cookieStorageKey)
	}
	stored := make([]storedCookie, 0, len(cookies))
	for _, ck := range cookies {
		stored = append(stored, storedCookie{Name: ck.Name, Value: ck.Value})
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	return c.persist.Set(cookieStorageKey, string(raw))
}
