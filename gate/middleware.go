package gate

import (
	"net/http"
	"net/url"
	"strings"
)

// Middleware enforces gate decisions in front of next.
//
//   - Allow passes the request through.
//   - AllowAndIssueCookie sets the session cookie and redirects to the
//     same URL with the token parameter removed.
//   - Deny redirects to the denial page. Every denial looks the same.
func (e *Engine) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := e.Decide(r)
		e.metrics.observe(d)
		e.audit.record(r, d)

		switch d.Disposition {
		case Allow:
			next.ServeHTTP(w, r)
		case AllowAndIssueCookie:
			http.SetCookie(w, d.Cookie(e.cfg))
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Referrer-Policy", "no-referrer")
			status := http.StatusFound
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				status = http.StatusTemporaryRedirect
			}
			http.Redirect(w, r, stripParam(r.URL, e.cfg.QueryParam), status)
		default:
			e.deny(w, r)
		}
	})
}

// deny is the single exit for every rejected request. Nothing about the
// failed candidate tokens reaches the response.
func (e *Engine) deny(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, e.cfg.DenialPath, http.StatusSeeOther)
}

// stripParam returns the path and query of u with every occurrence of
// param removed. Other parameters keep their original order and encoding.
func stripParam(u *url.URL, param string) string {
	path := u.EscapedPath()
	// Collapse leading slashes and backslashes so the Location header
	// cannot turn into a protocol-relative URL.
	path = "/" + strings.TrimLeft(path, `/\`)

	var kept []string
	for pair := range strings.SplitSeq(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil && k == param {
			continue
		}
		kept = append(kept, pair)
	}
	if len(kept) == 0 {
		return path
	}
	return path + "?" + strings.Join(kept, "&")
}
