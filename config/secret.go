package config

import "github.com/jmcleod/eventgate/internal/secret"

// LoadSecret moves the configured key into protected memory. secret_file
// wins over secret. With neither set the result is an empty Secret. The
// plaintext copy in c is dropped.
func (c *Config) LoadSecret() (*secret.Secret, error) {
	defer func() { c.Secret = "" }()
	if c.SecretFile != "" {
		return secret.FromFile(c.SecretFile)
	}
	return secret.FromString(c.Secret), nil
}
