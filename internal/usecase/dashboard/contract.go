package dashboard

import (
	"context"

	domdash "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/dashboard"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/inventory"
)

// Source provides the datasets behind the dashboard.
type Source interface {
	Facilities(ctx context.Context) ([]domdash.Facility, error)
	Patients(ctx context.Context) ([]domdash.Patient, error)
	Inventory(ctx context.Context) ([]inventory.Item, error)
	Workers(ctx context.Context) ([]domdash.Worker, error)
}
