package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- fakeDB ---

type fakeDB struct {
	rows     map[string][][]any // keyed by table name
	queryErr error
	pingErr  error
	queries  []string
}

func (f *fakeDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, sql)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	for table, rows := range f.rows {
		if strings.Contains(sql, `."`+table+`"`) {
			return &fakeRows{data: rows, idx: -1}, nil
		}
	}
	return &fakeRows{idx: -1}, nil
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

// --- fakeRows ---

type fakeRows struct {
	data   [][]any
	idx    int
	closed bool
	err    error
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.idx], nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *int:
			*p = row[i].(int)
		case *float64:
			*p = row[i].(float64)
		case **time.Time:
			if row[i] == nil {
				*p = nil
				continue
			}
			t := row[i].(time.Time)
			*p = &t
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}
