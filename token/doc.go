// Package token implements the signed access token carried by event links
// and the gate's session cookie.
//
// # Wire format
//
//	base64url(claims JSON) "." base64url(HMAC-SHA256(payload segment, secret))
//
// The signature covers the encoded payload segment exactly as it appears in
// the token, not the decoded JSON. Both segments use the unpadded URL-safe
// alphabet; trailing "=" padding is tolerated on input.
//
// A token is valid when it splits into exactly two non-empty segments, its
// signature verifies under the secret, and its "exp" claim (milliseconds
// since the Unix epoch) is a finite number strictly after now.
//
// Verify reports every failure as ErrInvalid. Inspect exposes the failure
// Reason for logs, metrics and offline diagnostics; it must never feed an
// HTTP response.
package token
