package dashboard

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/cache"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/dedup"
	domdash "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/dashboard"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/inventory"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/payload"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/query"
)

var testNow = time.Date(2024, 6, 11, 12, 0, 0, 0, time.UTC)

// --- mockSource ---

type mockSource struct {
	facilities []domdash.Facility
	patients   []domdash.Patient
	items      []inventory.Item
	workers    []domdash.Worker
	err        error
	reads      atomic.Int32
}

func (m *mockSource) Facilities(context.Context) ([]domdash.Facility, error) {
	m.reads.Add(1)
	return m.facilities, m.err
}

func (m *mockSource) Patients(context.Context) ([]domdash.Patient, error) {
	m.reads.Add(1)
	return m.patients, nil
}

func (m *mockSource) Inventory(context.Context) ([]inventory.Item, error) {
	m.reads.Add(1)
	return m.items, nil
}

func (m *mockSource) Workers(context.Context) ([]domdash.Worker, error) {
	m.reads.Add(1)
	return m.workers, nil
}

// --- helpers ---

func fixtureSource() *mockSource {
	return &mockSource{
		facilities: []domdash.Facility{
			{ID: "F1", Name: "Ikeja PHC", State: "Lagos", LGA: "Ikeja", OperationalStatus: "Operational"},
			{ID: "F2", Name: "Surulere PHC", State: "Lagos", LGA: "Surulere", OperationalStatus: "Closed"},
			{ID: "F3", Name: "Dala PHC", State: "Kano", LGA: "Dala", OperationalStatus: "operational"},
		},
		patients: []domdash.Patient{
			{ID: "P1", FacilityID: "F1", VisitDate: testNow.AddDate(0, 0, -3), Diagnosis: "Malaria", Gender: "Female"},
			{ID: "P2", FacilityID: "F3", VisitDate: testNow.AddDate(0, -3, 0), Diagnosis: "Typhoid", Gender: "Male"},
		},
		items: []inventory.Item{
			{ItemID: "I1", FacilityID: "F1", StockLevel: 5, ReorderLevel: 10},
			{ItemID: "I2", FacilityID: "F1", StockLevel: 50, ReorderLevel: 10},
		},
		workers: []domdash.Worker{{ID: "W1", FacilityID: "F1", Role: "Nurse"}},
	}
}

func newTestService(src Source) *Service {
	store := cache.New[payload.Value](cache.Config{})
	index := dedup.New(store, nil, dedup.Config{Namespace: "dashboard", TTL: 5 * time.Minute}, zap.NewNop())
	runner := query.NewRunner(index, store, 5*time.Minute, zap.NewNop())
	svc := New(src, runner, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}
