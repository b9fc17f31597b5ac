package gate

import (
	"net/http"
	"time"

	"github.com/jmcleod/eventgate/token"
)

// Disposition is the outcome of a gate decision. The zero value is Deny.
type Disposition int

const (
	Deny Disposition = iota
	Allow
	AllowAndIssueCookie
)

func (d Disposition) String() string {
	switch d {
	case Allow:
		return "allow"
	case AllowAndIssueCookie:
		return "allow_issue_cookie"
	default:
		return "deny"
	}
}

// Source names the rule that produced a decision.
type Source string

const (
	SourceNone   Source = "none"
	SourceBypass Source = "bypass"
	SourceQuery  Source = "query"
	SourceCookie Source = "cookie"
	SourceExempt Source = "exempt"
)

// Decision is the result of evaluating one request.
type Decision struct {
	Disposition Disposition
	Source      Source
	// Token is the admitted query token. Set only for AllowAndIssueCookie.
	Token string
	// Claims are the verified claims of the admitting token, if any.
	Claims token.Claims
	// At is the instant the decision was evaluated.
	At time.Time

	// QueryReason and CookieReason record why each candidate token was
	// accepted or rejected. Empty when no candidate was present. They are
	// for logs and metrics only.
	QueryReason  token.Reason
	CookieReason token.Reason
}

// Cookie builds the session cookie for an AllowAndIssueCookie decision.
// Its Max-Age tracks the token's remaining lifetime so the cookie never
// outlives the token it carries. It returns nil for other dispositions.
func (d Decision) Cookie(cfg Config) *http.Cookie {
	if d.Disposition != AllowAndIssueCookie {
		return nil
	}
	return &http.Cookie{
		Name:     cfg.CookieName,
		Value:    d.Token,
		Path:     "/",
		MaxAge:   d.Claims.MaxAgeSeconds(d.At),
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: cfg.SameSite,
	}
}

// Decide evaluates r against the gate rules. It has no side effects.
func (e *Engine) Decide(r *http.Request) Decision {
	return e.decide(r, e.now())
}

func (e *Engine) decide(r *http.Request, now time.Time) Decision {
	d := Decision{At: now}

	if !e.cfg.Enforce {
		d.Disposition = Allow
		d.Source = SourceBypass
		return d
	}

	if raw := r.URL.Query().Get(e.cfg.QueryParam); raw != "" {
		c, reason := token.Inspect(raw, e.cfg.Secret, now)
		d.QueryReason = reason
		if reason == token.ReasonOK {
			d.Disposition = AllowAndIssueCookie
			d.Source = SourceQuery
			d.Token = raw
			d.Claims = c
			return d
		}
	}

	if ck, err := r.Cookie(e.cfg.CookieName); err == nil && ck.Value != "" {
		c, reason := token.Inspect(ck.Value, e.cfg.Secret, now)
		d.CookieReason = reason
		if reason == token.ReasonOK {
			d.Disposition = Allow
			d.Source = SourceCookie
			d.Claims = c
			return d
		}
	}

	if e.cfg.IsExempt(r.URL.Path) {
		d.Disposition = Allow
		d.Source = SourceExempt
		return d
	}

	d.Disposition = Deny
	d.Source = SourceNone
	return d
}

// misconfigured reports whether a candidate token failed only because no
// secret is configured.
func (d Decision) misconfigured() bool {
	return d.QueryReason == token.ReasonNoSecret || d.CookieReason == token.ReasonNoSecret
}
