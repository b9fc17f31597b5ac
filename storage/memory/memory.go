// Package memory provides a thread-safe in-memory implementation of
// storage.Ledger.
package memory

import (
	"fmt"
	"sync"

	"github.com/jmcleod/eventgate/storage"
)

// Ledger is a thread-safe in-memory storage.Ledger. Suitable for tests and
// for commands run without a ledger file.
type Ledger struct {
	mu     sync.RWMutex
	issues map[string]storage.Issue
}

var _ storage.Ledger = (*Ledger)(nil)

// NewLedger creates a new empty in-memory Ledger.
func NewLedger() *Ledger {
	return &Ledger{issues: make(map[string]storage.Issue)}
}

func (l *Ledger) Record(issue storage.Issue) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.issues[issue.ID]; ok {
		return fmt.Errorf("%s: %w", issue.ID, storage.ErrExists)
	}
	l.issues[issue.ID] = issue
	return nil
}

func (l *Ledger) Get(id string) (storage.Issue, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	issue, ok := l.issues[id]
	if !ok {
		return storage.Issue{}, fmt.Errorf("%s: %w", id, storage.ErrNotFound)
	}
	return issue, nil
}

func (l *Ledger) List() ([]storage.Issue, error) {
	l.mu.RLock()
	issues := make([]storage.Issue, 0, len(l.issues))
	for _, issue := range l.issues {
		issues = append(issues, issue)
	}
	l.mu.RUnlock()
	storage.SortIssues(issues)
	return issues, nil
}

func (l *Ledger) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.issues[id]; !ok {
		return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
	}
	delete(l.issues, id)
	return nil
}

// Close is a no-op.
func (l *Ledger) Close() error {
	return nil
}
