// Package bbolt provides a BBolt-backed issuance ledger.
package bbolt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/eventgate/storage"
)

var issuesBucket = []byte("issues")

// Store implements storage.Ledger backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Ledger = (*Store)(nil)

// NewLedger returns a Ledger backed by the given BBolt database.
func NewLedger(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(issuesBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating issues bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// NewLedgerFromFile opens a BBolt database at the given path and returns a
// new Ledger. A second process holding the file makes Open wait at most one
// second before failing.
func NewLedgerFromFile(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := NewLedger(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(issue storage.Issue) error {
	data, err := json.Marshal(issue)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(issuesBucket)
		if b.Get([]byte(issue.ID)) != nil {
			return fmt.Errorf("%s: %w", issue.ID, storage.ErrExists)
		}
		return b.Put([]byte(issue.ID), data)
	})
}

func (s *Store) Get(id string) (storage.Issue, error) {
	var issue storage.Issue
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(issuesBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &issue)
	})
	if err != nil {
		return storage.Issue{}, err
	}
	return issue, nil
}

func (s *Store) List() ([]storage.Issue, error) {
	var issues []storage.Issue
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(issuesBucket).ForEach(func(k, v []byte) error {
			var issue storage.Issue
			if err := json.Unmarshal(v, &issue); err != nil {
				return fmt.Errorf("decoding issue %s: %w", k, err)
			}
			issues = append(issues, issue)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	storage.SortIssues(issues)
	return issues, nil
}

func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(issuesBucket)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}
