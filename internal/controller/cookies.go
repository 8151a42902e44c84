package controller

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rryowa/blog_admin/internal/service"
	"github.com/rryowa/blog_admin/internal/util"
)

func readRefreshCookies(r *http.Request, cfg *util.CookieConfig) service.RefreshCookies {
	return service.RefreshCookies{
		Payload:   cookieValue(r, cfg.PayloadName),
		Signature: cookieValue(r, cfg.SignatureName),
		Token:     cookieValue(r, cfg.TokenName),
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func setRefreshCookies(c echo.Context, cfg *util.CookieConfig, m *service.RefreshMaterial) {
	setCookie(c, cfg, cfg.PayloadName, m.Cookies.Payload, m.ExpiresAt)
	setCookie(c, cfg, cfg.SignatureName, m.Cookies.Signature, m.ExpiresAt)
	setCookie(c, cfg, cfg.TokenName, m.Cookies.Token, m.ExpiresAt)
}

func clearRefreshCookies(c echo.Context, cfg *util.CookieConfig) {
	for _, name := range []string{cfg.PayloadName, cfg.SignatureName, cfg.TokenName} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     cfg.Path,
			Domain:   cfg.Domain,
			Expires:  time.Unix(0, 0).UTC(),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.Secure,
			SameSite: cfg.SameSite,
		})
	}
}

func setCookie(c echo.Context, cfg *util.CookieConfig, name, value string, exp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

// applyCookies writes the cookie instruction carried by a session result.
func applyCookies(c echo.Context, cfg *util.CookieConfig, res *service.Result) {
	switch {
	case res.Refresh != nil:
		setRefreshCookies(c, cfg, res.Refresh)
	case res.ClearCookies:
		clearRefreshCookies(c, cfg)
	}
}
