// Package snapshot stores cache snapshot blobs in Redis or on disk.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/db"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
)

const kvKeyPrefix = "snapshot:"

// store is the consumer interface for snapshot blobs (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// KVStore keeps snapshots in a key-value database (SET + GET).
type KVStore struct {
	store store
	ttl   time.Duration
}

// NewKV creates a snapshot store. ttl <= 0 keeps snapshots forever.
func NewKV(s store, ttl time.Duration) *KVStore {
	return &KVStore{store: s, ttl: ttl}
}

// Write stores data under name, replacing any previous snapshot.
func (s *KVStore) Write(ctx context.Context, name string, data []byte) error {
	key := kvKeyPrefix + name
	var err error
	if s.ttl > 0 {
		err = s.store.SetWithTTL(ctx, key, data, s.ttl)
	} else {
		err = s.store.Set(ctx, key, data)
	}
	if err != nil {
		return fmt.Errorf("snapshot SET %s: %w", key, err)
	}
	return nil
}

// Read returns the snapshot named name.
func (s *KVStore) Read(ctx context.Context, name string) ([]byte, error) {
	key := kvKeyPrefix + name
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("snapshot %s: %w", name, domain.ErrSnapshotNotFound)
		}
		return nil, fmt.Errorf("snapshot GET %s: %w", key, err)
	}
	return data, nil
}
