// Package csvdir reads the PHC CSV exports from a local directory laid out the
// way the object-storage bucket is.
package csvdir

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/dashboard"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/inventory"
)

// Export file names.
const (
	FacilitiesFile = "Nigeria_phc_3200.csv"
	PatientsFile   = "patients_dataset.csv"
	InventoryFile  = "inventory_dataset.csv"
	WorkersFile    = "health_workers_dataset.csv"
)

var dateLayouts = []string{time.DateOnly, time.RFC3339, time.DateTime, "01/02/2006"}

// Source reads CSV exports from dir.
type Source struct {
	dir string
}

// New creates a CSV directory source.
func New(dir string) *Source {
	return &Source{dir: dir}
}

// Name implements datasource.Source.
func (s *Source) Name() string { return "csv" }

// Ping checks that the export directory is readable.
func (s *Source) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", s.dir)
	}
	return nil
}

// Facilities implements datasource.Source.
func (s *Source) Facilities(ctx context.Context) ([]dashboard.Facility, error) {
	return readFile(ctx, s.path(FacilitiesFile), func(r record) dashboard.Facility {
		return dashboard.Facility{
			ID:                r.str("facility_id"),
			Name:              r.str("facility_name", "name"),
			State:             r.str("state"),
			LGA:               r.str("lga"),
			Ward:              r.str("ward"),
			OperationalStatus: r.str("operational_status"),
			Latitude:          r.atof("latitude"),
			Longitude:         r.atof("longitude"),
		}
	})
}

// Patients implements datasource.Source.
func (s *Source) Patients(ctx context.Context) ([]dashboard.Patient, error) {
	return readFile(ctx, s.path(PatientsFile), func(r record) dashboard.Patient {
		return dashboard.Patient{
			ID:         r.str("patient_id"),
			FacilityID: r.str("facility_id"),
			VisitDate:  r.date("visit_date"),
			Diagnosis:  r.str("diagnosis"),
			Age:        r.atoi("age"),
			Gender:     r.str("gender"),
		}
	})
}

// Inventory implements datasource.Source.
func (s *Source) Inventory(ctx context.Context) ([]inventory.Item, error) {
	return readFile(ctx, s.path(InventoryFile), func(r record) inventory.Item {
		return inventory.Item{
			ItemID:          r.str("item_id"),
			ItemName:        r.str("item_name"),
			FacilityID:      r.str("facility_id"),
			StockLevel:      r.atoi("stock_level"),
			ReorderLevel:    r.atoi("reorder_level"),
			UnitPrice:       r.atof("unit_price"),
			LastRestockDate: r.date("last_restock_date"),
		}
	})
}

// Workers implements datasource.Source.
func (s *Source) Workers(ctx context.Context) ([]dashboard.Worker, error) {
	return readFile(ctx, s.path(WorkersFile), func(r record) dashboard.Worker {
		return dashboard.Worker{
			ID:         r.str("worker_id"),
			FacilityID: r.str("facility_id"),
			Role:       r.str("role"),
		}
	})
}

func (s *Source) path(name string) string {
	return filepath.Join(s.dir, name)
}

func readFile[T any](ctx context.Context, path string, parse func(record) T) ([]T, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return decode(ctx, f, parse)
}

func decode[T any](ctx context.Context, src io.Reader, parse func(record) T) ([]T, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	out := make([]T, 0, 64)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(out)+2, err)
		}
		out = append(out, parse(record{cols: cols, fields: fields}))
	}
	return out, nil
}

// record is one CSV row addressed by header name. Missing columns and
// unparsable cells read as zero values.
type record struct {
	cols   map[string]int
	fields []string
}

func (r record) str(names ...string) string {
	for _, name := range names {
		if i, ok := r.cols[name]; ok && i < len(r.fields) {
			return strings.TrimSpace(r.fields[i])
		}
	}
	return ""
}

func (r record) atoi(name string) int {
	v := r.str(name)
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	// Exports sometimes carry "12.0" for integer columns.
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return 0
}

func (r record) atof(name string) float64 {
	f, err := strconv.ParseFloat(r.str(name), 64)
	if err != nil {
		return 0
	}
	return f
}

func (r record) date(name string) time.Time {
	v := r.str(name)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
