package batchstore

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/gridfabric/pkg/metrics"
)

var bucketBatches = []byte("batches")

// Store is a bbolt-backed batch tracking store, following a
// bucket-per-concern, db.Update-wrapped-mutation shape.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt database under dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "batches.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("batchstore: open database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBatches)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("batchstore: create batches bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func batchKey(serviceID, batchHeader string) []byte {
	return []byte(serviceID + "/" + batchHeader)
}

// Add inserts new batches, enforcing the service_id scoping rule: an
// empty service_id is rejected rather than silently substituting the
// sentinel, so callers are explicit about "no circuit scope".
func (s *Store) Add(batches []*Batch) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBatches)
		for _, batch := range batches {
			if batch.ServiceID == "" {
				return fmt.Errorf("batchstore: service_id is required (use %q for no scope)", NonSplinterServiceID)
			}
			if batch.Status == "" {
				batch.Status = StatusUnknown
			}
			data, err := json.Marshal(batch)
			if err != nil {
				return fmt.Errorf("batchstore: encode batch %s: %w", batch.BatchHeader, err)
			}
			if err := b.Put(batchKey(batch.ServiceID, batch.BatchHeader), data); err != nil {
				return err
			}
			metrics.BatchesByStatus.WithLabelValues(string(batch.Status)).Inc()
		}
		return nil
	})
}

// Get returns the tracked batch identified by (serviceID, batchHeader).
func (s *Store) Get(serviceID, batchHeader string) (*Batch, bool, error) {
	var batch Batch
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBatches)
		data := b.Get(batchKey(serviceID, batchHeader))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &batch)
	})
	if err != nil {
		return nil, false, fmt.Errorf("batchstore: get %s/%s: %w", serviceID, batchHeader, err)
	}
	if !found {
		return nil, false, nil
	}
	return &batch, true, nil
}

// GetByDataChangeID returns the tracked batch whose DataChangeID matches,
// scoped to serviceID. Scans the service's batches since the bucket is
// keyed by (service_id, batch_header), not data_change_id.
func (s *Store) GetByDataChangeID(serviceID, dataChangeID string) (*Batch, bool, error) {
	var found *Batch
	err := s.forEachInService(serviceID, func(batch *Batch) bool {
		if batch.DataChangeID == dataChangeID {
			found = batch
			return false
		}
		return true
	})
	if err != nil {
		return nil, false, err
	}
	return found, found != nil, nil
}

// UpdateStatus transitions a batch's status in place, recording invalid or
// valid transaction detail as appropriate.
func (s *Store) UpdateStatus(serviceID, batchHeader string, status Status, invalid []InvalidTransaction, valid []ValidTransaction) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBatches)
		key := batchKey(serviceID, batchHeader)
		data := b.Get(key)
		if data == nil {
			return fmt.Errorf("batchstore: batch %s/%s not found", serviceID, batchHeader)
		}
		var batch Batch
		if err := json.Unmarshal(data, &batch); err != nil {
			return err
		}
		previous := batch.Status
		batch.Status = status
		batch.InvalidTxns = invalid
		batch.ValidTxns = valid
		encoded, err := json.Marshal(&batch)
		if err != nil {
			return err
		}
		if err := b.Put(key, encoded); err != nil {
			return err
		}
		if previous != status {
			metrics.BatchesByStatus.WithLabelValues(string(previous)).Dec()
			metrics.BatchesByStatus.WithLabelValues(string(status)).Inc()
		}
		return nil
	})
}

// ChangeToSubmitted marks a batch as submitted, optionally recording a
// submission error raised by the external DLT rather than by local
// validation.
func (s *Store) ChangeToSubmitted(serviceID, batchHeader string, submissionErr *SubmissionError) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBatches)
		key := batchKey(serviceID, batchHeader)
		data := b.Get(key)
		if data == nil {
			return fmt.Errorf("batchstore: batch %s/%s not found", serviceID, batchHeader)
		}
		var batch Batch
		if err := json.Unmarshal(data, &batch); err != nil {
			return err
		}
		previous := batch.Status
		batch.Submitted = true
		batch.SubmissionError = submissionErr
		if submissionErr != nil {
			batch.Status = StatusInvalid
		}
		encoded, err := json.Marshal(&batch)
		if err != nil {
			return err
		}
		if err := b.Put(key, encoded); err != nil {
			return err
		}
		if previous != batch.Status {
			metrics.BatchesByStatus.WithLabelValues(string(previous)).Dec()
			metrics.BatchesByStatus.WithLabelValues(string(batch.Status)).Inc()
		}
		return nil
	})
}

func (s *Store) forEachInService(serviceID string, fn func(*Batch) bool) error {
	prefix := []byte(serviceID + "/")
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBatches).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var batch Batch
			if err := json.Unmarshal(v, &batch); err != nil {
				return err
			}
			if !fn(&batch) {
				return nil
			}
		}
		return nil
	})
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ListByStatus returns every batch with the given status across all
// service scopes.
func (s *Store) ListByStatus(status Status) ([]*Batch, error) {
	var out []*Batch
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBatches).ForEach(func(k, v []byte) error {
			var batch Batch
			if err := json.Unmarshal(v, &batch); err != nil {
				return err
			}
			if batch.Status == status {
				out = append(out, &batch)
			}
			return nil
		})
	})
	return out, err
}

// ListUnsubmitted returns every batch that hasn't yet been submitted.
func (s *Store) ListUnsubmitted() ([]*Batch, error) {
	var out []*Batch
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBatches).ForEach(func(k, v []byte) error {
			var batch Batch
			if err := json.Unmarshal(v, &batch); err != nil {
				return err
			}
			if !batch.Submitted {
				out = append(out, &batch)
			}
			return nil
		})
	})
	return out, err
}

// ListFailed returns every batch whose status is Invalid or whose
// submission recorded an error.
func (s *Store) ListFailed() ([]*Batch, error) {
	var out []*Batch
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBatches).ForEach(func(k, v []byte) error {
			var batch Batch
			if err := json.Unmarshal(v, &batch); err != nil {
				return err
			}
			if batch.Status == StatusInvalid || batch.SubmissionError != nil {
				out = append(out, &batch)
			}
			return nil
		})
	})
	return out, err
}

// CleanStaleBefore deletes every batch created before cutoff, returning
// how many were removed.
func (s *Store) CleanStaleBefore(cutoff time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBatches)
		c := b.Cursor()
		var staleKeys [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var batch Batch
			if err := json.Unmarshal(v, &batch); err != nil {
				return err
			}
			if batch.CreatedAt.Before(cutoff) {
				key := make([]byte, len(k))
				copy(key, k)
				staleKeys = append(staleKeys, key)
			}
		}
		for _, key := range staleKeys {
			if err := b.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// AwaitStatus polls for batch to reach one of the wanted statuses,
// returning it as soon as it does, or an error once the context is done.
// It checks the store every poll interval, for CLI/REST layers that need
// to block on batch finality.
func (s *Store) AwaitStatus(ctx context.Context, serviceID, batchHeader string, poll time.Duration, wanted ...Status) (*Batch, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		batch, found, err := s.Get(serviceID, batchHeader)
		if err != nil {
			return nil, err
		}
		if found {
			for _, w := range wanted {
				if batch.Status == w {
					return batch, nil
				}
			}
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("batchstore: await status for %s/%s: %w", serviceID, batchHeader, ctx.Err())
		case <-ticker.C:
		}
	}
}
