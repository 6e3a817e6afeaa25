// Package storage persists the configuration document on the local device
// using BoltDB. The store holds a single document under a well-known key;
// writes are transactional, so a reader never observes a half-written
// document.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"syscall"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/jemch/startpage/internal/types"
)

const (
	configBucket = "configuration"
	documentKey  = "document"
)

// ErrorKind classifies storage failures
type ErrorKind string

const (
	QuotaExceeded ErrorKind = "quota_exceeded"
	Unavailable   ErrorKind = "unavailable"
)

// Error is returned when the local store cannot be read or written. It is
// never fatal: the in-memory configuration stays authoritative for the
// running session.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// BoltStore implements local persistence for the configuration document
type BoltStore struct {
	db     *bbolt.DB
	logger *zap.Logger
	path   string
}

// StoreConfig holds configuration for BoltStore initialization
type StoreConfig struct {
	DBPath string
	Logger *zap.Logger
}

// NewBoltStore opens (or creates) the local database
func NewBoltStore(cfg StoreConfig) (*BoltStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := bbolt.Open(cfg.DBPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, &Error{Kind: Unavailable, Err: fmt.Errorf("failed to open bolt database: %w", err)}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(configBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, &Error{Kind: Unavailable, Err: fmt.Errorf("failed to create bucket: %w", err)}
	}

	logger.Debug("BoltStore initialized", zap.String("db_path", cfg.DBPath))

	return &BoltStore{
		db:     db,
		logger: logger.With(zap.String("component", "local_store")),
		path:   cfg.DBPath,
	}, nil
}

// Load reads the persisted document. A nil document with a nil error means
// nothing has been persisted yet.
func (s *BoltStore) Load() (*types.Document, error) {
	var doc *types.Document

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(configBucket))
		v := b.Get([]byte(documentKey))
		if v == nil {
			return nil
		}
		var d types.Document
		if err := json.Unmarshal(v, &d); err != nil {
			return fmt.Errorf("failed to unmarshal document: %w", err)
		}
		doc = &d
		return nil
	})
	if err != nil {
		return nil, &Error{Kind: Unavailable, Err: err}
	}

	if doc != nil {
		s.logger.Debug("Loaded local document",
			zap.Int("schema_version", doc.SchemaVersion),
			zap.Int("pages", len(doc.Pages)))
	}
	return doc, nil
}

// Save overwrites the persisted document. The write is idempotent and
// atomic from the caller's perspective.
func (s *BoltStore) Save(doc *types.Document) error {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return &Error{Kind: Unavailable, Err: fmt.Errorf("failed to marshal document: %w", err)}
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(configBucket))
		return b.Put([]byte(documentKey), encoded)
	})
	if err != nil {
		return &Error{Kind: classifyWriteErr(err), Err: fmt.Errorf("failed to save document: %w", err)}
	}

	s.logger.Debug("Saved local document",
		zap.Int("schema_version", doc.SchemaVersion),
		zap.Int("bytes", len(encoded)))
	return nil
}

// Clear removes the persisted document. Only an explicit clear destroys
// local data; logout never calls this.
func (s *BoltStore) Clear() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(configBucket))
		return b.Delete([]byte(documentKey))
	})
	if err != nil {
		return &Error{Kind: Unavailable, Err: fmt.Errorf("failed to clear document: %w", err)}
	}
	s.logger.Info("Local document cleared")
	return nil
}

// Close syncs and closes the database. Pending writes complete before the
// process may be torn down.
func (s *BoltStore) Close() error {
	if err := s.db.Sync(); err != nil {
		s.logger.Error("Failed to sync database on close", zap.Error(err))
	}
	return s.db.Close()
}

// classifyWriteErr maps a failed write to the error taxonomy. A full disk
// is the closest analog to a browser quota error.
func classifyWriteErr(err error) ErrorKind {
	if errors.Is(err, syscall.ENOSPC) {
		return QuotaExceeded
	}
	return Unavailable
}
