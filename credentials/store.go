// Package credentials keeps the bucket registry: which storage backend, and
// with which credentials, a bucket name resolves to.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vidpress/logger"
	"vidpress/models"

	"github.com/cockroachdb/pebble"
)

const bucketPrefix = "bucket/"

var ErrBucketNotFound = errors.New("bucket not registered")

// Store is a small wrapper around a Pebble DB holding one WriterJob per bucket.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the registry at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		logger.Errorf("Failed to open Pebble DB: %v", err)
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the DB
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func bucketKey(bucket string) []byte {
	return []byte(bucketPrefix + bucket)
}

// Get returns the writer configuration registered for bucket.
func (s *Store) Get(bucket string) (models.WriterJob, bool, error) {
	value, closer, err := s.db.Get(bucketKey(bucket))
	if errors.Is(err, pebble.ErrNotFound) {
		return models.WriterJob{}, false, nil
	}
	if err != nil {
		return models.WriterJob{}, false, err
	}
	defer closer.Close()

	var job models.WriterJob
	if err := json.Unmarshal(value, &job); err != nil {
		return models.WriterJob{}, false, fmt.Errorf("corrupt registry entry for %s: %w", bucket, err)
	}
	return job, true, nil
}

// Put registers (or replaces) the writer configuration for bucket.
func (s *Store) Put(bucket string, job models.WriterJob) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.db.Set(bucketKey(bucket), encoded, pebble.Sync)
}

// Delete removes bucket from the registry.
func (s *Store) Delete(bucket string) error {
	_, ok, err := s.Get(bucket)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBucketNotFound
	}
	return s.db.Delete(bucketKey(bucket), pebble.Sync)
}

// List returns the registered bucket names in key order.
func (s *Store) List() ([]string, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(bucketPrefix),
		UpperBound: []byte(bucketPrefix[:len(bucketPrefix)-1] + "0"), // '0' follows '/'
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var buckets []string
	for iter.First(); iter.Valid(); iter.Next() {
		buckets = append(buckets, strings.TrimPrefix(string(iter.Key()), bucketPrefix))
	}
	return buckets, iter.Error()
}
