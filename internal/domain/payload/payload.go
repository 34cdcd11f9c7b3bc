// Package payload defines the closed set of values held by the shared cache.
package payload

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/chat"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/dashboard"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/inventory"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/triage"
)

// Kind names a payload variant on the wire.
type Kind string

// Payload kinds.
const (
	KindSeenRecord       Kind = "seen_record"
	KindTriageResult     Kind = "triage_result"
	KindChatTurn         Kind = "chat_turn"
	KindDashboardSummary Kind = "dashboard_summary"
	KindInventoryStatus  Kind = "inventory_status"
	KindStockoutReport   Kind = "stockout_report"
	KindPatientReport    Kind = "patient_report"
	KindWorkerReport     Kind = "worker_report"
	KindDiseaseTrend     Kind = "disease_trend"
)

// Value is a cache payload. The interface is sealed to this package.
type Value interface {
	Kind() Kind
	sealed()
}

// SeenState is the lifecycle state of a deduplicated query.
type SeenState string

const (
	// StateInProgress is set when a query is first seen and its result is
	// being computed.
	StateInProgress SeenState = "in_progress"
	// StateSeen is set once the result has been stored.
	StateSeen SeenState = "seen"
)

// SeenRecord marks a query fingerprint as observed.
type SeenRecord struct {
	Fingerprint string    `json:"fingerprint"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	State       SeenState `json:"state"`
	// Text is the normalized query text used for similarity lookups.
	Text string `json:"text,omitempty"`
}

// TriageResult is a cached triage assessment.
type TriageResult struct {
	triage.Result
}

// ChatTurn is a cached chat exchange.
type ChatTurn struct {
	chat.Turn
}

// DashboardSummary is a cached dashboard overview.
type DashboardSummary struct {
	dashboard.Summary
}

// InventoryStatus is a cached inventory status.
type InventoryStatus struct {
	inventory.Status
}

// StockoutReport is a cached stockout prediction batch.
type StockoutReport struct {
	inventory.Report
}

// PatientReport is cached patient statistics.
type PatientReport struct {
	dashboard.PatientReport
}

// WorkerReport is cached workforce statistics.
type WorkerReport struct {
	dashboard.WorkerReport
}

// DiseaseTrend is a cached monthly case count.
type DiseaseTrend struct {
	dashboard.DiseaseTrend
}

func (SeenRecord) Kind() Kind       { return KindSeenRecord }
func (TriageResult) Kind() Kind     { return KindTriageResult }
func (ChatTurn) Kind() Kind         { return KindChatTurn }
func (DashboardSummary) Kind() Kind { return KindDashboardSummary }
func (InventoryStatus) Kind() Kind  { return KindInventoryStatus }
func (StockoutReport) Kind() Kind   { return KindStockoutReport }
func (PatientReport) Kind() Kind    { return KindPatientReport }
func (WorkerReport) Kind() Kind     { return KindWorkerReport }
func (DiseaseTrend) Kind() Kind     { return KindDiseaseTrend }

func (SeenRecord) sealed()       {}
func (TriageResult) sealed()     {}
func (ChatTurn) sealed()         {}
func (DashboardSummary) sealed() {}
func (InventoryStatus) sealed()  {}
func (StockoutReport) sealed()   {}
func (PatientReport) sealed()    {}
func (WorkerReport) sealed()     {}
func (DiseaseTrend) sealed()     {}

type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Codec encodes payloads as {"kind": ..., "data": ...}.
type Codec struct{}

// Encode serializes v with its kind tag.
func (Codec) Encode(v Value) (json.RawMessage, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil payload", domain.ErrEncoding)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrEncoding, v.Kind(), err)
	}
	return json.Marshal(envelope{Kind: v.Kind(), Data: data})
}

// Decode parses a tagged payload. Unknown kinds fail with ErrEncoding.
func (Codec) Decode(raw json.RawMessage) (Value, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncoding, err)
	}
	switch env.Kind {
	case KindSeenRecord:
		return decode[SeenRecord](env)
	case KindTriageResult:
		return decode[TriageResult](env)
	case KindChatTurn:
		return decode[ChatTurn](env)
	case KindDashboardSummary:
		return decode[DashboardSummary](env)
	case KindInventoryStatus:
		return decode[InventoryStatus](env)
	case KindStockoutReport:
		return decode[StockoutReport](env)
	case KindPatientReport:
		return decode[PatientReport](env)
	case KindWorkerReport:
		return decode[WorkerReport](env)
	case KindDiseaseTrend:
		return decode[DiseaseTrend](env)
	}
	return nil, fmt.Errorf("%w: unknown payload kind %q", domain.ErrEncoding, env.Kind)
}

func decode[T Value](env envelope) (Value, error) {
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrEncoding, env.Kind, err)
	}
	return v, nil
}
