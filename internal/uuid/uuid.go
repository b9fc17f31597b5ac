// Package uuid generates random identifiers for gate decisions and ledger entries.
package uuid

import "github.com/google/uuid"

// New returns a random (version 4) UUID string.
func New() string {
	return uuid.NewString()
}
