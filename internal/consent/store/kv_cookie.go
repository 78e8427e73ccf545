package store

import (
	"net/http"
	"net/url"
	"time"
)

// DefaultCookieTTL is how long a consent cookie survives when the embedder
// does not configure an expiry.
const DefaultCookieTTL = 7 * 24 * time.Hour // 604800 seconds

// CookieKV is a key-value store carried in the visitor's cookies. It is bound
// to a single request/response pair: reads come from the request's Cookie
// header, writes become Set-Cookie headers on the response.
//
// Values are URL-encoded on write and decoded on read. Writing an empty value
// deletes the cookie instead of storing an empty string.
//
// Cookie setting is a response-side concern, so writes also land in an
// overlay map to keep reads within the same request consistent.
type CookieKV struct {
	w       http.ResponseWriter
	r       *http.Request
	ttl     time.Duration
	overlay map[string]*string
}

// NewCookieKV binds a cookie store to one request/response pair. A zero or
// negative ttl falls back to DefaultCookieTTL.
func NewCookieKV(w http.ResponseWriter, r *http.Request, ttl time.Duration) *CookieKV {
	if ttl <= 0 {
		ttl = DefaultCookieTTL
	}
	return &CookieKV{w: w, r: r, ttl: ttl, overlay: make(map[string]*string)}
}

func (c *CookieKV) Get(key string) (string, error) {
	if v, ok := c.overlay[key]; ok {
		if v == nil {
			return "", nil
		}
		return *v, nil
	}
	cookie, err := c.r.Cookie(key)
	if err != nil || cookie == nil {
		return "", nil
	}
	decoded, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return "", nil
	}
	return decoded, nil
}

func (c *CookieKV) Set(key, value string) error {
	if value == "" {
		return c.Delete(key)
	}
	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    url.QueryEscape(value),
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
	c.overlay[key] = &value
	return nil
}

func (c *CookieKV) Delete(key string) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	})
	c.overlay[key] = nil
	return nil
}
