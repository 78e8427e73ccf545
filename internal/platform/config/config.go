package config

import (
	"os"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr       string
	Navigation bool
	IgnoreURLs []string
	CookieTTL  time.Duration
}

// DefaultCookieTTL is the agreement cookie lifetime when not overridden.
const DefaultCookieTTL = 7 * 24 * time.Hour

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CONSENTGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	navigation := os.Getenv("CONSENTGATE_NAVIGATION") == "true"

	var ignoreURLs []string
	if raw := os.Getenv("CONSENTGATE_IGNORE_URLS"); raw != "" {
		for _, u := range strings.Split(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				ignoreURLs = append(ignoreURLs, u)
			}
		}
	}

	cookieTTL := DefaultCookieTTL
	if raw := os.Getenv("CONSENTGATE_COOKIE_TTL"); raw != "" {
		if duration, err := time.ParseDuration(raw); err == nil && duration > 0 {
			cookieTTL = duration
		}
	}

	return Server{
		Addr:       addr,
		Navigation: navigation,
		IgnoreURLs: ignoreURLs,
		CookieTTL:  cookieTTL,
	}
}
