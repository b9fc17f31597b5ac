// Package ledgertest holds the behaviour every storage.Ledger must share.
package ledgertest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/eventgate/storage"
)

var base = time.Date(2025, 10, 4, 9, 0, 0, 0, time.UTC)

func issue(id string, issuedAfter time.Duration, ttl time.Duration) storage.Issue {
	return storage.Issue{
		ID:          id,
		Label:       "table " + id,
		Fingerprint: "fp-" + id,
		IssuedAt:    base.Add(issuedAfter),
		ExpiresAt:   base.Add(issuedAfter + ttl),
	}
}

// Run exercises a fresh ledger from newLedger.
func Run(t *testing.T, newLedger func(t *testing.T) storage.Ledger) {
	t.Run("RecordGet", func(t *testing.T) {
		l := newLedger(t)
		want := issue("a", 0, time.Hour)
		require.NoError(t, l.Record(want))

		got, err := l.Get("a")
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Label, got.Label)
		assert.Equal(t, want.Fingerprint, got.Fingerprint)
		assert.True(t, want.IssuedAt.Equal(got.IssuedAt))
		assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("RecordDuplicate", func(t *testing.T) {
		l := newLedger(t)
		require.NoError(t, l.Record(issue("a", 0, time.Hour)))
		err := l.Record(issue("a", time.Minute, time.Hour))
		assert.ErrorIs(t, err, storage.ErrExists)
	})

	t.Run("GetMissing", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Get("nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListOrdered", func(t *testing.T) {
		l := newLedger(t)
		require.NoError(t, l.Record(issue("c", 2*time.Minute, time.Hour)))
		require.NoError(t, l.Record(issue("a", 0, time.Hour)))
		require.NoError(t, l.Record(issue("b", time.Minute, time.Hour)))

		issues, err := l.List()
		require.NoError(t, err)
		ids := make([]string, 0, len(issues))
		for _, is := range issues {
			ids = append(ids, is.ID)
		}
		assert.Equal(t, []string{"a", "b", "c"}, ids)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		l := newLedger(t)
		issues, err := l.List()
		require.NoError(t, err)
		assert.Empty(t, issues)
	})

	t.Run("Delete", func(t *testing.T) {
		l := newLedger(t)
		require.NoError(t, l.Record(issue("a", 0, time.Hour)))
		require.NoError(t, l.Delete("a"))
		_, err := l.Get("a")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, l.Delete("a"), storage.ErrNotFound)
	})

	t.Run("FindByFingerprint", func(t *testing.T) {
		l := newLedger(t)
		require.NoError(t, l.Record(issue("a", 0, time.Hour)))
		require.NoError(t, l.Record(issue("b", time.Minute, time.Hour)))

		got, err := storage.FindByFingerprint(l, "fp-b")
		require.NoError(t, err)
		assert.Equal(t, "b", got.ID)

		_, err = storage.FindByFingerprint(l, "fp-z")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Prune", func(t *testing.T) {
		l := newLedger(t)
		require.NoError(t, l.Record(issue("old", 0, time.Hour)))
		require.NoError(t, l.Record(issue("edge", 0, 2*time.Hour)))
		require.NoError(t, l.Record(issue("live", 0, 3*time.Hour)))

		n, err := storage.Prune(l, base.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		issues, err := l.List()
		require.NoError(t, err)
		require.Len(t, issues, 1)
		assert.Equal(t, "live", issues[0].ID)
	})
}
