package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/easeaico/mirror-clarity/internal/types"
)

// JournalRepo stores entries at "journal:{userID}:{unixnano}:{id}".
type JournalRepo struct {
	db *badger.DB
}

// Append writes entry. Entries are never rewritten.
func (r *JournalRepo) Append(ctx context.Context, entry types.JournalEntry) error {
	if strings.TrimSpace(entry.UserID) == "" || strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("%w: journal entry needs user and id", types.ErrInvalidArgument)
	}
	data, err := serialize(entry)
	if err != nil {
		return err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(journalKey(entry.UserID, entry.CreatedAt, entry.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", translate(err))
	}
	return nil
}

// List returns up to limit entries of userID, newest first. A non-positive
// limit returns everything.
func (r *JournalRepo) List(ctx context.Context, userID string, limit int) ([]types.JournalEntry, error) {
	entries := make([]types.JournalEntry, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = journalUserPrefix(userID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var entry types.JournalEntry
			if err := deserialize(it.Item(), &entry); err != nil {
				return err
			}
			if entry.UserID != userID {
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
