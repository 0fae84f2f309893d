package store

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/dgraph-io/badger/v4"

	"github.com/geolabel/conflator/internal/core/model"
)

// Annotation records live under ann/<nanos>/<uuid>. Badger iterates keys in
// byte order, so zero-padded timestamps give replay the original append
// order.
const annPrefix = "ann/"

func annKey(ann model.Annotation) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", annPrefix, ann.CreatedAt.UnixNano(), ann.UUID))
}

// persist writes every record of one submission in a single transaction:
// a diff and its implied pair labels are durable together or not at all, so
// replay can never fold back a partial submission. Callers must hold mu.
// No-op without a backing database.
func (s *Store) persist(anns ...model.Annotation) error {
	if s.db == nil {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, ann := range anns {
			val, err := json.Marshal(ann)
			if err != nil {
				return fmt.Errorf("failed to encode annotation: %w", err)
			}
			if err := txn.Set(annKey(ann), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist annotations: %w", err)
	}
	return nil
}

// replay folds all persisted annotations back into the in-memory index,
// rematerializing neighborhood edge sets along the way. Records referencing
// items no longer in the dataset are skipped with a warning rather than
// failing startup.
func (s *Store) replay() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(annPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var ann model.Annotation
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ann)
			})
			if err != nil {
				return fmt.Errorf("failed to decode record %s: %w", it.Item().Key(), err)
			}

			switch ann.Kind {
			case model.KindPair:
				s.applyPair(ann)
			case model.KindNeighborhood:
				if s.ds.NeighborhoodByID(ann.Neighborhood) == nil {
					log.Printf("Skipping record for unknown neighborhood %s", ann.Neighborhood)
					continue
				}
				s.applyNeighborhood(ann)
			}
			n++
		}
		return nil
	})
	return n, err
}

// Sync flushes pending writes to disk. No-op without a backing database.
func (s *Store) Sync() error {
	if s.db == nil {
		return nil
	}
	return s.db.Sync()
}

// Close releases the backing database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// OpenBadger opens the annotation database at path with sane defaults.
// Badger's own chatter is silenced; it drowns out the labeling progress log.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil).WithSyncWrites(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open label store at '%s': %w", path, err)
	}
	return db, nil
}

// OpenInMemoryBadger opens a throwaway in-memory database for tests.
func OpenInMemoryBadger() (*badger.DB, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return badger.Open(opts)
}
