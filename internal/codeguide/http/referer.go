package http

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultAppURL is the last resort referer.
const DefaultAppURL = "http://localhost:3000"

// ResolveReferer picks the origin sent upstream as HTTP-Referer: the Origin
// header, then the request's own origin, then the Referer header's origin,
// then fallback.
func ResolveReferer(r *http.Request, fallback string) string {
	if o := strings.TrimSpace(r.Header.Get("Origin")); o != "" && o != "null" {
		return o
	}

	if r.Host != "" {
		return requestScheme(r) + "://" + r.Host
	}

	if ref := r.Header.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}

	if fallback == "" {
		return DefaultAppURL
	}
	return strings.TrimRight(fallback, "/")
}

func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		first, _, _ := strings.Cut(proto, ",")
		return strings.ToLower(strings.TrimSpace(first))
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
