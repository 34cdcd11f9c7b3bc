package inventory

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/cache"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/dedup"
	dominv "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/inventory"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/payload"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/query"
)

var testNow = time.Date(2024, 6, 11, 12, 0, 0, 0, time.UTC)

// --- mockSource ---

type mockSource struct {
	items []dominv.Item
	err   error
	calls atomic.Int32
}

func (m *mockSource) Inventory(context.Context) ([]dominv.Item, error) {
	m.calls.Add(1)
	return m.items, m.err
}

// --- helpers ---

func fixtureItems() []dominv.Item {
	day := func(n int) time.Time { return testNow.AddDate(0, 0, -n) }
	return []dominv.Item{
		{ItemID: "I1", ItemName: "Paracetamol", FacilityID: "F1", StockLevel: 100, ReorderLevel: 10, UnitPrice: 1, LastRestockDate: day(10)},
		{ItemID: "I2", ItemName: "ORS", FacilityID: "F1", StockLevel: 5, ReorderLevel: 10, UnitPrice: 2, LastRestockDate: day(10)},
		{ItemID: "I3", ItemName: "Gloves", FacilityID: "F1", StockLevel: 20, ReorderLevel: 10, UnitPrice: 0.5, LastRestockDate: day(5)},
		{ItemID: "I4", ItemName: "Syringes", FacilityID: "F2", StockLevel: 11, ReorderLevel: 10, UnitPrice: 1, LastRestockDate: day(10)},
	}
}

func newTestService(src Source) *Service {
	store := cache.New[payload.Value](cache.Config{})
	index := dedup.New(store, nil, dedup.Config{Namespace: "inventory", TTL: 5 * time.Minute}, zap.NewNop())
	runner := query.NewRunner(index, store, 5*time.Minute, zap.NewNop())
	svc := New(src, runner, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}
