// Package warehouse reads the PHC datasets from a Redshift (Postgres wire)
// warehouse.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/dashboard"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/inventory"
)

// Table names inside the configured schema.
const (
	FacilitiesTable = "facilities"
	PatientsTable   = "patients"
	InventoryTable  = "inventory"
	WorkersTable    = "health_workers"
)

// Config holds warehouse connection settings.
type Config struct {
	DSN             string
	Schema          string
	MaxConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// querier is the subset of pgxpool.Pool used by the source.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Source reads the datasets from warehouse tables.
type Source struct {
	db     querier
	schema string
	close  func()
}

// New opens a connection pool and verifies it with a ping.
func New(ctx context.Context, cfg Config) (*Source, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse warehouse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create warehouse pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	s := newSource(pool, cfg.Schema)
	s.close = pool.Close
	return s, nil
}

func newSource(db querier, schema string) *Source {
	if schema == "" {
		schema = "public"
	}
	return &Source{db: db, schema: schema, close: func() {}}
}

// Close releases the pool.
func (s *Source) Close() { s.close() }

// Name implements datasource.Source.
func (s *Source) Name() string { return "warehouse" }

// Ping implements datasource.Source.
func (s *Source) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Facilities implements datasource.Source.
func (s *Source) Facilities(ctx context.Context) ([]dashboard.Facility, error) {
	q := `SELECT facility_id::text, COALESCE(facility_name, ''), COALESCE(state, ''), COALESCE(lga, ''),
		COALESCE(ward, ''), COALESCE(operational_status, ''),
		COALESCE(latitude, 0)::float8, COALESCE(longitude, 0)::float8
		FROM ` + s.table(FacilitiesTable)
	return query(ctx, s.db, q, func(row pgx.CollectableRow) (dashboard.Facility, error) {
		var f dashboard.Facility
		err := row.Scan(&f.ID, &f.Name, &f.State, &f.LGA, &f.Ward, &f.OperationalStatus, &f.Latitude, &f.Longitude)
		return f, err
	})
}

// Patients implements datasource.Source.
func (s *Source) Patients(ctx context.Context) ([]dashboard.Patient, error) {
	q := `SELECT patient_id::text, COALESCE(facility_id::text, ''), visit_date::timestamp,
		COALESCE(diagnosis, ''), COALESCE(age, 0)::int4, COALESCE(gender, '')
		FROM ` + s.table(PatientsTable)
	return query(ctx, s.db, q, func(row pgx.CollectableRow) (dashboard.Patient, error) {
		var (
			p     dashboard.Patient
			visit *time.Time
		)
		if err := row.Scan(&p.ID, &p.FacilityID, &visit, &p.Diagnosis, &p.Age, &p.Gender); err != nil {
			return p, err
		}
		if visit != nil {
			p.VisitDate = *visit
		}
		return p, nil
	})
}

// Inventory implements datasource.Source.
func (s *Source) Inventory(ctx context.Context) ([]inventory.Item, error) {
	q := `SELECT item_id::text, COALESCE(item_name, ''), COALESCE(facility_id::text, ''),
		COALESCE(stock_level, 0)::int4, COALESCE(reorder_level, 0)::int4,
		COALESCE(unit_price, 0)::float8, last_restock_date::timestamp
		FROM ` + s.table(InventoryTable)
	return query(ctx, s.db, q, func(row pgx.CollectableRow) (inventory.Item, error) {
		var (
			it      inventory.Item
			restock *time.Time
		)
		if err := row.Scan(&it.ItemID, &it.ItemName, &it.FacilityID, &it.StockLevel, &it.ReorderLevel, &it.UnitPrice, &restock); err != nil {
			return it, err
		}
		if restock != nil {
			it.LastRestockDate = *restock
		}
		return it, nil
	})
}

// Workers implements datasource.Source.
func (s *Source) Workers(ctx context.Context) ([]dashboard.Worker, error) {
	q := `SELECT worker_id::text, COALESCE(facility_id::text, ''), COALESCE(role, '')
		FROM ` + s.table(WorkersTable)
	return query(ctx, s.db, q, func(row pgx.CollectableRow) (dashboard.Worker, error) {
		var w dashboard.Worker
		err := row.Scan(&w.ID, &w.FacilityID, &w.Role)
		return w, err
	})
}

func (s *Source) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

func query[T any](ctx context.Context, db querier, sql string, fn pgx.RowToFunc[T]) ([]T, error) {
	rows, err := db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query warehouse: %w", err)
	}
	out, err := pgx.CollectRows(rows, fn)
	if err != nil {
		return nil, fmt.Errorf("scan warehouse rows: %w", err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
