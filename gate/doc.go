// Package gate decides, per request, whether a visitor may see the site.
//
// A request is admitted when it carries a valid signed token (see package
// token) either in the query string, typically from a scanned QR code, or
// in the session cookie set by an earlier admission. Everything else is
// redirected to a fixed denial page. The engine keeps no state between
// requests: a decision depends only on the request, the immutable Config
// and the clock.
//
// Rules are evaluated in order and the first match wins:
//
//  1. enforcement disabled: allow
//  2. valid query token: allow and issue the session cookie
//  3. valid session cookie: allow
//  4. exempt path prefix: allow
//  5. otherwise: deny
//
// The HTTP realization lives in Engine.Middleware. Admission through a
// query token answers with a redirect to the same URL minus the token
// parameter so the credential never stays in the address bar. Denials are
// uniform: the response never tells expired, forged and absent tokens apart.
package gate
