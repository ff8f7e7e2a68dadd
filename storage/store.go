// Package storage persists enrichment runs as revisions. Each run's
// dataset is stored whole; a btree index over resource keys serves
// latest-enrichment lookups without scanning disk.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/rikasta/enricher"
	"github.com/yairfalse/rikasta/types"
)

// Bucket names in bbolt
var (
	bucketDatasets  = []byte("datasets")
	bucketResources = []byte("resources")
	bucketMeta      = []byte("meta")
)

var keyCurrentRevision = []byte("current_revision")

// DatasetStore is a revisioned store of completed enrichment runs.
type DatasetStore struct {
	mu sync.RWMutex

	// In-memory index for fast latest-enrichment lookups
	index *btree.BTreeG[*resourceEntry]

	// On-disk storage
	db *bbolt.DB

	// Current revision number
	currentRev int64
}

// resourceEntry tracks the latest revision a resource key appeared in.
type resourceEntry struct {
	Key       string
	LatestRev int64
}

// NewDatasetStore opens (or creates) the store in the given directory.
func NewDatasetStore(dir string) (*DatasetStore, error) {
	dbPath := filepath.Join(dir, "rikasta.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketDatasets, bucketResources, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &DatasetStore{
		index: btree.NewG[*resourceEntry](32, func(a, b *resourceEntry) bool {
			return a.Key < b.Key
		}),
		db: db,
	}

	store.loadRevision()
	if err := store.rebuildIndex(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to rebuild index: %w", err)
	}

	return store, nil
}

// Close closes the store
func (s *DatasetStore) Close() error {
	return s.db.Close()
}

// Record persists a completed dataset as a new revision. It satisfies
// the orchestrator's recorder contract.
func (s *DatasetStore) Record(ctx context.Context, ds *enricher.Dataset) error {
	_, err := s.RecordDataset(ctx, ds)
	return err
}

// RecordDataset persists the dataset and every resource in it under a
// fresh revision, atomically.
func (s *DatasetStore) RecordDataset(ctx context.Context, ds *enricher.Dataset) (int64, error) {
	if ds == nil {
		return 0, fmt.Errorf("dataset must not be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentRev++
	rev := s.currentRev

	err := s.db.Update(func(tx *bbolt.Tx) error {
		value, err := json.Marshal(ds)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDatasets).Put(revisionKey(rev), value); err != nil {
			return err
		}

		resources := tx.Bucket(bucketResources)
		for _, r := range ds.Resources {
			value, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if err := resources.Put(resourceKey(rev, r.Key()), value); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketMeta).Put(keyCurrentRevision, int64ToBytes(rev))
	})
	if err != nil {
		s.currentRev--
		return 0, err
	}

	for _, r := range ds.Resources {
		s.index.ReplaceOrInsert(&resourceEntry{Key: r.Key(), LatestRev: rev})
	}

	return rev, nil
}

// LatestDataset loads the most recent run's dataset.
func (s *DatasetStore) LatestDataset(ctx context.Context) (*enricher.Dataset, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentRev == 0 {
		return nil, 0, fmt.Errorf("no datasets recorded")
	}
	return s.datasetAt(s.currentRev)
}

// DatasetAtRevision loads the dataset recorded at a specific revision.
func (s *DatasetStore) DatasetAtRevision(ctx context.Context, rev int64) (*enricher.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, _, err := s.datasetAt(rev)
	return ds, err
}

func (s *DatasetStore) datasetAt(rev int64) (*enricher.Dataset, int64, error) {
	var ds *enricher.Dataset

	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketDatasets).Get(revisionKey(rev))
		if value == nil {
			return fmt.Errorf("no dataset at revision %d", rev)
		}
		ds = &enricher.Dataset{}
		return json.Unmarshal(value, ds)
	})
	if err != nil {
		return nil, 0, err
	}
	return ds, rev, nil
}

// LastEnrichment returns a resource's most recently recorded
// enrichment and the revision it came from.
func (s *DatasetStore) LastEnrichment(ctx context.Context, key string) (types.Resource, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, found := s.index.Get(&resourceEntry{Key: key})
	if !found {
		return types.Resource{}, 0, fmt.Errorf("resource %s not found", key)
	}

	var r types.Resource
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketResources).Get(resourceKey(entry.LatestRev, key))
		if value == nil {
			return fmt.Errorf("resource %s missing at revision %d", key, entry.LatestRev)
		}
		return json.Unmarshal(value, &r)
	})
	if err != nil {
		return types.Resource{}, 0, err
	}

	return r, entry.LatestRev, nil
}

// CurrentRevision returns the current revision number
func (s *DatasetStore) CurrentRevision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRev
}

// Compact removes revisions older than the keep window. The resource
// index keeps pointing at surviving revisions only.
func (s *DatasetStore) Compact(keepRevisions int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.currentRev - keepRevisions
	if cutoff <= 0 {
		return nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDatasets, bucketResources} {
			bucket := tx.Bucket(name)
			c := bucket.Cursor()

			var toDelete [][]byte
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				if revisionOf(k) <= cutoff {
					toDelete = append(toDelete, k)
				}
			}
			for _, key := range toDelete {
				if err := bucket.Delete(key); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	var stale []*resourceEntry
	s.index.Ascend(func(entry *resourceEntry) bool {
		if entry.LatestRev <= cutoff {
			stale = append(stale, entry)
		}
		return true
	})
	for _, entry := range stale {
		s.index.Delete(entry)
	}
	return nil
}

func (s *DatasetStore) loadRevision() {
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketMeta).Get(keyCurrentRevision); data != nil {
			s.currentRev = bytesToInt64(data)
		}
		return nil
	})
}

// rebuildIndex scans the resource bucket on open. Keys are ordered by
// revision, so later entries overwrite earlier ones.
func (s *DatasetStore) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketResources).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			rev, key := parseResourceKey(k)
			if key == "" {
				continue
			}
			s.index.ReplaceOrInsert(&resourceEntry{Key: key, LatestRev: rev})
		}
		return nil
	})
}

// Key helpers. The zero-padded revision prefix keeps bbolt's
// lexicographic order equal to revision order.

func revisionKey(rev int64) []byte {
	return []byte(fmt.Sprintf("%016d", rev))
}

func resourceKey(rev int64, key string) []byte {
	return []byte(fmt.Sprintf("%016d:%s", rev, key))
}

func revisionOf(k []byte) int64 {
	if len(k) < 16 {
		return 0
	}
	return bytesToInt64(k[:16])
}

func parseResourceKey(k []byte) (int64, string) {
	if len(k) < 17 {
		return 0, ""
	}
	return bytesToInt64(k[:16]), string(k[17:])
}

func int64ToBytes(n int64) []byte {
	return []byte(fmt.Sprintf("%d", n))
}

func bytesToInt64(b []byte) int64 {
	var n int64
	_, _ = fmt.Sscanf(string(b), "%d", &n)
	return n
}
