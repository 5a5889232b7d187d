package security

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

type CookieOptions struct {
	Secure     bool
	Domain     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func SetAuthCookies(w http.ResponseWriter, opts CookieOptions, access, refresh string) {
	SetAccessCookie(w, opts, access)
	http.SetCookie(w, newCookie(opts, RefreshTokenCookie, refresh, opts.RefreshTTL))
}

func SetAccessCookie(w http.ResponseWriter, opts CookieOptions, access string) {
	http.SetCookie(w, newCookie(opts, AccessTokenCookie, access, opts.AccessTTL))
}

func ClearAuthCookies(w http.ResponseWriter, opts CookieOptions) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := newCookie(opts, name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func newCookie(opts CookieOptions, name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
