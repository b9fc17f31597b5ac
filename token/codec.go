package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// Separator joins the payload and signature segments.
	Separator = "."
	// MaxLength bounds accepted tokens to what fits in a browser cookie.
	MaxLength = 4096
)

var (
	// ErrInvalid is the only error Verify returns.
	ErrInvalid = errors.New("invalid token")
	// ErrNoSecret is returned by Encode and Mint when the secret is empty.
	ErrNoSecret = errors.New("signing secret not configured")
	// ErrBadTTL is returned by Mint for a non-positive validity duration.
	ErrBadTTL = errors.New("validity duration must be positive")
)

// Reason classifies the outcome of Inspect.
type Reason string

const (
	ReasonOK        Reason = "ok"
	ReasonNoSecret  Reason = "no_secret"
	ReasonTooLong   Reason = "too_long"
	ReasonMalformed Reason = "malformed"
	ReasonEncoding  Reason = "encoding"
	ReasonSignature Reason = "signature"
	ReasonClaims    Reason = "claims"
	ReasonExpired   Reason = "expired"
)

// Reasons lists every Reason in evaluation order.
var Reasons = []Reason{
	ReasonOK,
	ReasonNoSecret,
	ReasonTooLong,
	ReasonMalformed,
	ReasonEncoding,
	ReasonSignature,
	ReasonClaims,
	ReasonExpired,
}

var segmentEncoding = base64.RawURLEncoding.Strict()

// Encode serializes c and signs the payload segment with secret.
func Encode(c Claims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding claims: %w", err)
	}
	seg := segmentEncoding.EncodeToString(payload)
	return seg + Separator + segmentEncoding.EncodeToString(sign(seg, secret)), nil
}

// Mint issues a token valid for ttl from now. It is the producer side of
// Verify and is what printed links and QR codes carry.
func Mint(secret []byte, ttl time.Duration, now time.Time) (string, Claims, error) {
	if ttl <= 0 {
		return "", Claims{}, ErrBadTTL
	}
	c := Claims{Exp: now.Add(ttl).UnixMilli()}
	raw, err := Encode(c, secret)
	if err != nil {
		return "", Claims{}, err
	}
	return raw, c, nil
}

// Verify decodes raw and checks it against secret at now. Every failure,
// including an empty secret, yields ErrInvalid with zero Claims.
func Verify(raw string, secret []byte, now time.Time) (Claims, error) {
	c, reason := Inspect(raw, secret, now)
	if reason != ReasonOK {
		return Claims{}, ErrInvalid
	}
	return c, nil
}

// Inspect runs the same checks as Verify and reports which one failed.
// Claims are returned only with ReasonOK.
func Inspect(raw string, secret []byte, now time.Time) (Claims, Reason) {
	if len(raw) > MaxLength {
		return Claims{}, ReasonTooLong
	}

	parts := strings.Split(raw, Separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Claims{}, ReasonMalformed
	}

	payload, err := decodeSegment(parts[0])
	if err != nil {
		return Claims{}, ReasonEncoding
	}
	gotSig, err := decodeSegment(parts[1])
	if err != nil {
		return Claims{}, ReasonEncoding
	}

	if len(secret) == 0 {
		return Claims{}, ReasonNoSecret
	}
	if !hmac.Equal(sign(parts[0], secret), gotSig) {
		return Claims{}, ReasonSignature
	}

	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return Claims{}, ReasonClaims
	}
	if !c.ValidAt(now) {
		return Claims{}, ReasonExpired
	}
	return c, ReasonOK
}

// Peek decodes the claims of raw without checking its signature or expiry.
// It is for diagnostics only; nothing it returns may grant access.
func Peek(raw string) (Claims, error) {
	if len(raw) > MaxLength {
		return Claims{}, ErrInvalid
	}
	parts := strings.Split(raw, Separator)
	if len(parts) != 2 || parts[0] == "" {
		return Claims{}, ErrInvalid
	}
	payload, err := decodeSegment(parts[0])
	if err != nil {
		return Claims{}, ErrInvalid
	}
	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return Claims{}, ErrInvalid
	}
	return c, nil
}

// Fingerprint returns a short, stable identifier for raw that is safe to
// log or persist: the first 16 hex characters of its SHA-256 digest.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}

// sign computes the HMAC over the encoded payload segment.
func sign(segment string, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(segment))
	return mac.Sum(nil)
}

// errLineBreak rejects CR and LF, which the base64 decoder otherwise skips.
var errLineBreak = errors.New("line break in segment")

func decodeSegment(s string) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n") {
		return nil, errLineBreak
	}
	return segmentEncoding.DecodeString(strings.TrimRight(s, "="))
}
