package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var bucketImages = []byte("images")

// BoltStore implements Store on a bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens or creates the asset store at path. Parent directories
// are created if they do not exist.
func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create asset store directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketImages)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create asset bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Ref returns the content-addressed reference for image bytes.
func Ref(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

// Put stores the image under its content hash.
func (s *BoltStore) Put(image []byte) (string, error) {
	ref := Ref(image)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketImages)
		if b.Get([]byte(ref)) != nil {
			return nil // already stored, content addressing makes Put idempotent
		}
		return b.Put([]byte(ref), image)
	})
	if err != nil {
		return "", fmt.Errorf("failed to store asset: %w", err)
	}
	return ref, nil
}

// Get returns the image stored under ref.
func (s *BoltStore) Get(ref string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketImages).Get([]byte(ref))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		out = make([]byte, len(data))
		copy(out, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the image stored under ref.
func (s *BoltStore) Delete(ref string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketImages).Delete([]byte(ref))
	})
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
