// Package storage persists category snapshots to a local BoltDB database so
// a relaunch can hydrate the in-memory index before any network activity.
//
// Design notes:
// - BoltDB chosen for ACID properties and embedded nature
// - One bucket per concern: category snapshots and cold-start state
// - Values are JSON documents; a corrupt value is treated as absent,
//   never as a fatal error
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/streamnest/go-vod-cache/internal/catalog"
	"github.com/streamnest/go-vod-cache/pkg/config"
)

var (
	bucketCategories = []byte("categories") // category id -> CategorySnapshot
	bucketState      = []byte("state")      // cold-start flags
)

var keyInitialPass = []byte("initial_pass_complete")

// Store handles all BoltDB operations with proper error handling and logging.
type Store struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// CategorySnapshot is the persisted form of one category's accumulated
// state: the merged item list plus the pagination cursor, so hydration can
// resume exactly where the last session stopped.
type CategorySnapshot struct {
	Category  string              `json:"category"`
	Items     []catalog.MediaItem `json:"items"`
	LastPage  int                 `json:"last_page"`
	Exhausted bool                `json:"exhausted"`
	SavedAt   time.Time           `json:"saved_at"`
}

// NewStore opens (or creates) the catalog database in the configured cache
// directory and ensures the buckets exist.
func NewStore(cfg *config.CacheConfig, logger *slog.Logger) (*Store, error) {
	dbPath := filepath.Join(cfg.Directory, "catalog.db")

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}

	store := &Store{db: db, logger: logger}

	if err := store.initializeBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	logger.Info("Catalog store initialized", "db_path", dbPath)

	return store, nil
}

// initializeBuckets creates all required buckets if they don't exist.
func (s *Store) initializeBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			bucketCategories,
			bucketState,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", string(bucket), err)
			}
		}

		return nil
	})
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	s.logger.Info("Closing catalog store")
	return s.db.Close()
}

// SaveCategory writes a category snapshot through to disk. Called after
// every successful page fetch, so the persisted copy is never more than one
// fetch behind the in-memory index.
func (s *Store) SaveCategory(snapshot *CategorySnapshot) error {
	if snapshot.Category == "" {
		return fmt.Errorf("category snapshot must have a category id")
	}

	snapshot.SavedAt = time.Now()

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCategories)

		data, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("failed to marshal category snapshot: %w", err)
		}

		if err := bucket.Put([]byte(snapshot.Category), data); err != nil {
			return fmt.Errorf("failed to store category snapshot: %w", err)
		}

		s.logger.Debug("Category snapshot saved",
			"category", snapshot.Category,
			"items", len(snapshot.Items),
			"last_page", snapshot.LastPage,
			"exhausted", snapshot.Exhausted)

		return nil
	})
}

// LoadCategories returns every readable category snapshot. A snapshot that
// fails to unmarshal is logged and skipped; the caller falls back to a
// network fetch from page 1 for that category.
func (s *Store) LoadCategories() ([]*CategorySnapshot, error) {
	var snapshots []*CategorySnapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCategories)

		return bucket.ForEach(func(k, v []byte) error {
			var snapshot CategorySnapshot
			if err := json.Unmarshal(v, &snapshot); err != nil {
				s.logger.Warn("Failed to unmarshal category snapshot, treating as absent",
					"category", string(k),
					"error", err)
				return nil // Continue iteration, don't fail completely
			}

			snapshots = append(snapshots, &snapshot)
			return nil
		})
	})

	return snapshots, err
}

// SetInitialPassComplete records whether a full background catalog pass has
// ever finished, used to decide cold-start behavior on the next launch.
func (s *Store) SetInitialPassComplete(done bool) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketState)

		if !done {
			return bucket.Delete(keyInitialPass)
		}

		value, err := json.Marshal(time.Now())
		if err != nil {
			return fmt.Errorf("failed to marshal pass timestamp: %w", err)
		}

		return bucket.Put(keyInitialPass, value)
	})
}

// InitialPassComplete reports whether a full background catalog pass has
// completed in some prior session.
func (s *Store) InitialPassComplete() bool {
	var done bool

	s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketState)
		done = bucket.Get(keyInitialPass) != nil
		return nil
	})

	return done
}

// Reset drops every persisted snapshot and state flag by recreating the
// buckets. Backs the user-triggered full cache clear.
func (s *Store) Reset() error {
	s.logger.Info("Resetting catalog store")

	return s.db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			bucketCategories,
			bucketState,
		}

		for _, bucket := range buckets {
			if err := tx.DeleteBucket(bucket); err != nil {
				return fmt.Errorf("failed to delete bucket %s: %w", string(bucket), err)
			}
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to recreate bucket %s: %w", string(bucket), err)
			}
		}

		return nil
	})
}

// HealthCheck verifies the database is readable.
func (s *Store) HealthCheck() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketCategories) == nil {
			return fmt.Errorf("categories bucket missing")
		}
		return nil
	})
}
