// Package storage provides the issuance ledger: a record of the links an
// organizer has minted. The gate never reads it.
package storage

import (
	"cmp"
	"errors"
	"slices"
	"time"
)

var (
	// ErrNotFound is returned when no issue has the requested ID.
	ErrNotFound = errors.New("issue not found")
	// ErrExists is returned when recording an ID that is already present.
	ErrExists = errors.New("issue already recorded")
)

// Issue describes one minted link. The token itself is never stored; the
// fingerprint is enough to match a token back to its issue.
type Issue struct {
	ID          string    `json:"id"`
	Label       string    `json:"label,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the issued link is no longer valid at now.
func (i Issue) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Ledger stores issues.
type Ledger interface {
	// Record adds a new issue. It returns ErrExists if the ID is taken.
	Record(issue Issue) error
	Get(id string) (Issue, error)
	// List returns every issue, oldest first.
	List() ([]Issue, error)
	Delete(id string) error
	Close() error
}

// FindByFingerprint returns the issue whose fingerprint matches fp.
func FindByFingerprint(l Ledger, fp string) (Issue, error) {
	issues, err := l.List()
	if err != nil {
		return Issue{}, err
	}
	for _, is := range issues {
		if is.Fingerprint == fp {
			return is, nil
		}
	}
	return Issue{}, ErrNotFound
}

// Prune deletes every issue expired at now and returns how many it removed.
func Prune(l Ledger, now time.Time) (int, error) {
	issues, err := l.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, is := range issues {
		if !is.Expired(now) {
			continue
		}
		if err := l.Delete(is.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return n, err
		}
		n++
	}
	return n, nil
}

// SortIssues orders issues by issue time, then ID.
func SortIssues(issues []Issue) {
	slices.SortFunc(issues, func(a, b Issue) int {
		if c := a.IssuedAt.Compare(b.IssuedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
