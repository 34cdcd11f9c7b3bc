// Package fingerprint derives stable content-addressed identifiers for
// structured queries.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
)

// ID is a hex-encoded SHA-256 digest of normalized query content.
type ID string

// String returns the full hex digest.
func (id ID) String() string { return string(id) }

// Short returns the first 8 hex characters, for log lines.
func (id ID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Field declares a field the hasher always emits. An absent declared field
// hashes as null, or as Default when one is set.
type Field struct {
	Name    string
	Default any
}

// Hasher computes fingerprints over a declared field set. The zero value has
// no declared fields and hashes whatever keys are present.
type Hasher struct {
	fields []Field
}

// NewHasher creates a hasher that always emits the given fields.
func NewHasher(fields ...Field) *Hasher {
	fs := make([]Field, len(fields))
	copy(fs, fields)
	return &Hasher{fields: fs}
}

// Fingerprint normalizes content and returns its SHA-256 identifier.
// content is never mutated.
func (h *Hasher) Fingerprint(content map[string]any) (ID, error) {
	canonical, err := h.Canonical(content)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return ID(hex.EncodeToString(sum[:])), nil
}

// Canonical returns the byte string that Fingerprint hashes: the normalized
// mapping as JSON with lexicographically ordered keys.
func (h *Hasher) Canonical(content map[string]any) ([]byte, error) {
	normalized := make(map[string]any, len(content)+len(h.fields))
	for _, f := range h.fields {
		normalized[f.Name] = nil
		if f.Default != nil {
			v, err := normalize(f.Default)
			if err != nil {
				return nil, fmt.Errorf("field %q default: %w", f.Name, err)
			}
			normalized[f.Name] = v
		}
	}
	for k, raw := range content {
		v, err := normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		if v == nil {
			if _, declared := normalized[k]; declared {
				// explicit nil on a declared field collides with absence
				continue
			}
		}
		if s, ok := v.(string); ok && s == "" && h.hasDefault(k) {
			continue
		}
		normalized[k] = v
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEncoding, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (h *Hasher) hasDefault(name string) bool {
	for _, f := range h.fields {
		if f.Name == name {
			return f.Default != nil
		}
	}
	return false
}

// Fingerprint hashes content with no declared fields.
func Fingerprint(content map[string]any) (ID, error) {
	var h Hasher
	return h.Fingerprint(content)
}

// normalize maps a value onto the inert JSON-compatible subset: strings are
// lower-cased and trimmed, integers become int64/uint64, pointers are
// dereferenced, slices and string-keyed maps are normalized recursively.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(strings.TrimSpace(t)), nil
	case bool:
		return t, nil
	case json.Number:
		return normalizeNumber(string(t))
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), nil
	}
	return normalizeReflect(reflect.ValueOf(v))
}

func normalizeReflect(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return normalizeFloat(rv.Float())
	case reflect.String:
		return normalize(rv.String())
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			item, err := normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = item
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key type %s", domain.ErrEncoding, rv.Type().Key())
		}
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			item, err := normalize(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", iter.Key().String(), err)
			}
			out[iter.Key().String()] = item
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value of type %s", domain.ErrEncoding, rv.Type())
	}
}

// normalizeFloat keeps integral floats equal to their integer form, so a
// decoded JSON 30 and a Go int 30 hash identically.
func normalizeFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: non-finite number %v", domain.ErrEncoding, f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f), nil
	}
	return f, nil
}

func normalizeNumber(s string) (any, error) {
	n := json.Number(s)
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid number %q", domain.ErrEncoding, s)
	}
	return normalizeFloat(f)
}
