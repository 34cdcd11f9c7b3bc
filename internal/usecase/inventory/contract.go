package inventory

import (
	"context"

	dominv "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/inventory"
)

// Source provides inventory records.
type Source interface {
	Inventory(ctx context.Context) ([]dominv.Item, error)
}
