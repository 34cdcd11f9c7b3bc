package cacheadmin

import (
	"context"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/cache"
)

// Store is the cache being administered.
type Store interface {
	Stats() cache.Stats
	Save(ctx context.Context, name string) (int, error)
	Load(ctx context.Context, name string) (int, error)
}
