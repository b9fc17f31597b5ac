package cmd

import (
	"github.com/jmcleod/eventgate/storage"
	bboltstorage "github.com/jmcleod/eventgate/storage/bbolt"
	"github.com/jmcleod/eventgate/storage/memory"
)

// openLedger opens the ledger file at path, or an in-memory ledger that
// lives only as long as the command when path is empty.
func openLedger(path string) (storage.Ledger, error) {
	if path == "" {
		return memory.NewLedger(), nil
	}
	return bboltstorage.NewLedgerFromFile(path)
}
