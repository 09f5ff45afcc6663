package txcontext

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketState = []byte("state")

// BoltStore is a bbolt-backed Store, giving a standalone transaction
// processor durable state across restarts. It follows a
// bucket-per-concern, db.Update-wrapped-mutation shape.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a bbolt database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "state.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("txcontext: open database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketState)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("txcontext: create state bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(address string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		v := b.Get([]byte(address))
		if v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("txcontext: get %s: %w", address, err)
	}
	return data, data != nil, nil
}

func (s *BoltStore) Set(entries map[string][]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		for address, data := range entries {
			if err := b.Put([]byte(address), data); err != nil {
				return fmt.Errorf("txcontext: put %s: %w", address, err)
			}
		}
		return nil
	})
}

func (s *BoltStore) Delete(addresses []string) ([]string, error) {
	var removed []string
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		for _, address := range addresses {
			if b.Get([]byte(address)) != nil {
				if err := b.Delete([]byte(address)); err != nil {
					return fmt.Errorf("txcontext: delete %s: %w", address, err)
				}
				removed = append(removed, address)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
