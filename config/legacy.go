package config

import (
	"strconv"
	"strings"
	"time"
)

// legacyEnv maps the variables of the Node.js deployment onto config
// keys: EVENT_TOKEN_SECRET, NODE_ENV, FORCE_AUTH, BASE_URL and HOURS.
// They rank below EVENTGATE_* variables.
func legacyEnv(lookup func(string) (string, bool)) map[string]any {
	m := map[string]any{}
	if v, ok := lookup("EVENT_TOKEN_SECRET"); ok && v != "" {
		m["secret"] = v
	}
	if v, ok := lookup("NODE_ENV"); ok && v != "" {
		m["env"] = v
	}
	// Only the literal "1" enables the gate outside production. Any other
	// value leaves force_auth to the file and defaults.
	if v, ok := lookup("FORCE_AUTH"); ok && strings.TrimSpace(v) == "1" {
		m["force_auth"] = true
	}
	if v, ok := lookup("BASE_URL"); ok && v != "" {
		m["mint.base_url"] = v
	}
	if v, ok := lookup("HOURS"); ok {
		if h, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && h > 0 {
			m["mint.ttl"] = time.Duration(h * float64(time.Hour)).String()
		}
	}
	return m
}
