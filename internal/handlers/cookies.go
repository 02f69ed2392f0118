package handlers

import (
	"net/http"
	"time"

	"github.com/msavelyev/authgate/internal/models"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"

	// The refresh cookie is only ever sent to the auth endpoints,
	// it never rides along on ordinary API requests
	accessCookiePath  = "/"
	refreshCookiePath = "/api/auth"
)

// CookieConfig controls the transport attributes of the auth cookies.
// Secure is validated against the environment at config load time.
type CookieConfig struct {
	Secure bool
	Domain string
}

func setAuthCookies(w http.ResponseWriter, cfg CookieConfig, pair models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    pair.Access.Value,
		Path:     accessCookiePath,
		Domain:   cfg.Domain,
		MaxAge:   int(time.Until(pair.Access.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    pair.Refresh.Value,
		Path:     refreshCookiePath,
		Domain:   cfg.Domain,
		MaxAge:   int(time.Until(pair.Refresh.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Path:     accessCookiePath,
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Path:     refreshCookiePath,
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// refreshFromRequest extracts the raw refresh secret, empty string if absent
func refreshFromRequest(r *http.Request) string {
	c, err := r.Cookie(refreshTokenCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// AccessFromRequest extracts the raw access token from the cookie,
// falling back to a bearer Authorization header for non-browser clients
func AccessFromRequest(r *http.Request) string {
	if c, err := r.Cookie(accessTokenCookie); err == nil {
		return c.Value
	}

	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}

	return ""
}
