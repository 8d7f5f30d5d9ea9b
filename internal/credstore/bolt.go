package credstore

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketCredentials = []byte("credentials")

// BoltStore implements Store using a bbolt database file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) the credential database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCredentials)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create credentials bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Get implements Store.
func (s *BoltStore) Get(name string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCredentials).Get([]byte(name))
		if data != nil {
			value = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read credential %s: %w", name, err)
	}
	return value, value != nil, nil
}

// Put implements Store.
func (s *BoltStore) Put(name string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCredentials).Put([]byte(name), value)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersist, name, err)
	}
	return nil
}

// List implements Store.
func (s *BoltStore) List() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCredentials).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return names, nil
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
