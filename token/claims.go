package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"time"
)

// ExpClaim is the payload member holding the expiry instant.
const ExpClaim = "exp"

var errBadExp = errors.New("exp claim missing or not a finite number")

// Claims is the payload of a token.
type Claims struct {
	// Exp is the absolute expiry in milliseconds since the Unix epoch.
	Exp int64
	// Extra holds any other payload members. It never contains "exp".
	Extra map[string]any
}

// ExpiresAt returns Exp as a time.
func (c Claims) ExpiresAt() time.Time {
	return time.UnixMilli(c.Exp)
}

// ValidAt reports whether the claims have not yet expired at now.
func (c Claims) ValidAt(now time.Time) bool {
	return now.UnixMilli() < c.Exp
}

// Remaining returns the lifetime left at now, or zero once expired.
func (c Claims) Remaining(now time.Time) time.Duration {
	ms := c.Exp - now.UnixMilli()
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// MaxAgeSeconds returns the cookie Max-Age matching the remaining lifetime:
// max(1, floor((exp - now) / 1000)).
func (c Claims) MaxAgeSeconds(now time.Time) int {
	secs := (c.Exp - now.UnixMilli()) / 1000
	if secs < 1 {
		return 1
	}
	if secs > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(secs)
}

// MarshalJSON emits Extra merged with "exp". encoding/json sorts map keys,
// so the output is canonical for a given set of claims.
func (c Claims) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(c.Extra)+1)
	maps.Copy(m, c.Extra)
	m[ExpClaim] = c.Exp
	return json.Marshal(m)
}

// UnmarshalJSON requires a JSON object whose "exp" member is a finite
// number. Fractional values are rounded up to the next millisecond, which
// leaves "now >= exp" unchanged for whole-millisecond clocks.
func (c *Claims) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return fmt.Errorf("decoding claims: %w", err)
	}
	if m == nil {
		return errBadExp
	}

	num, ok := m[ExpClaim].(json.Number)
	if !ok {
		return errBadExp
	}
	exp, err := parseMillis(num)
	if err != nil {
		return err
	}
	delete(m, ExpClaim)

	c.Exp = exp
	c.Extra = nil
	if len(m) > 0 {
		c.Extra = m
	}
	return nil
}

func parseMillis(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errBadExp
	}
	f = math.Ceil(f)
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, errBadExp
	}
	return int64(f), nil
}
