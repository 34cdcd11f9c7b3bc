// Package inventory holds stock records and the rule-based stockout predictor.
package inventory

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// AlertLevel grades how soon an item needs restocking.
type AlertLevel string

// Alert levels, most severe first.
const (
	AlertCritical  AlertLevel = "CRITICAL"
	AlertWarning   AlertLevel = "WARNING"
	AlertAttention AlertLevel = "ATTENTION"
	AlertOK        AlertLevel = "OK"
)

// ParseAlertLevel accepts any casing of a known level.
func ParseAlertLevel(s string) (AlertLevel, bool) {
	switch l := AlertLevel(strings.ToUpper(strings.TrimSpace(s))); l {
	case AlertCritical, AlertWarning, AlertAttention, AlertOK:
		return l, true
	}
	return "", false
}

// noUsageDays marks items with no observed consumption.
const noUsageDays = 999

// lowStockFactor flags items within 20% above their reorder level.
const lowStockFactor = 1.2

// Item is one inventory line at a facility.
type Item struct {
	ItemID          string    `json:"item_id"`
	ItemName        string    `json:"item_name"`
	FacilityID      string    `json:"facility_id"`
	StockLevel      int       `json:"stock_level"`
	ReorderLevel    int       `json:"reorder_level"`
	UnitPrice       float64   `json:"unit_price"`
	LastRestockDate time.Time `json:"last_restock_date"`
}

// IsLow reports stock at or below 1.2x the reorder level.
func (i Item) IsLow() bool {
	return float64(i.StockLevel) <= float64(i.ReorderLevel)*lowStockFactor
}

// IsCritical reports stock at or below the reorder level.
func (i Item) IsCritical() bool { return i.StockLevel <= i.ReorderLevel }

// Prediction is the stockout forecast for one item.
type Prediction struct {
	ItemID                   string     `json:"item_id"`
	ItemName                 string     `json:"item_name"`
	FacilityID               string     `json:"facility_id"`
	CurrentStock             int        `json:"current_stock"`
	ReorderLevel             int        `json:"reorder_level"`
	DaysUntilStockout        float64    `json:"days_until_stockout"`
	DaysUntilReorder         float64    `json:"days_until_reorder"`
	DailyUsageEstimate       float64    `json:"daily_usage_estimate"`
	AlertLevel               AlertLevel `json:"alert_level"`
	Priority                 int        `json:"priority"`
	Message                  string     `json:"message"`
	RecommendedOrderQuantity int        `json:"recommended_order_quantity"`
	PredictionDate           string     `json:"prediction_date"`
	Confidence               string     `json:"confidence"`
}

// Predictor applies the reorder-threshold rules.
type Predictor struct {
	CriticalDays float64
	WarningDays  float64
}

// DefaultPredictor returns the 7/14-day thresholds.
func DefaultPredictor() Predictor {
	return Predictor{CriticalDays: 7, WarningDays: 14}
}

// Predict forecasts when item runs out, assuming it was restocked to three
// times its reorder level.
func (p Predictor) Predict(item Item, now time.Time) Prediction {
	daysSince := math.Floor(now.Sub(item.LastRestockDate).Hours() / 24)

	var dailyUsage float64
	if daysSince > 0 {
		fullStock := float64(item.ReorderLevel * 3)
		dailyUsage = (fullStock - float64(item.StockLevel)) / daysSince
	} else {
		dailyUsage = float64(item.ReorderLevel) / 30
	}

	daysUntilStockout, daysUntilReorder := float64(noUsageDays), float64(noUsageDays)
	if dailyUsage > 0 {
		daysUntilStockout = float64(item.StockLevel) / dailyUsage
		daysUntilReorder = float64(item.StockLevel-item.ReorderLevel) / dailyUsage
	}

	pred := Prediction{
		ItemID:                   item.ItemID,
		ItemName:                 item.ItemName,
		FacilityID:               item.FacilityID,
		CurrentStock:             item.StockLevel,
		ReorderLevel:             item.ReorderLevel,
		DaysUntilStockout:        round(daysUntilStockout, 1),
		DaysUntilReorder:         round(daysUntilReorder, 1),
		DailyUsageEstimate:       round(dailyUsage, 2),
		RecommendedOrderQuantity: item.ReorderLevel * 2,
		PredictionDate:           now.Format(time.DateOnly),
		Confidence:               "Medium",
	}

	switch {
	case item.StockLevel <= item.ReorderLevel:
		pred.AlertLevel, pred.Priority = AlertCritical, 1
		pred.Message = fmt.Sprintf("URGENT: %s at reorder level, order immediately", item.ItemName)
	case daysUntilReorder <= p.CriticalDays:
		pred.AlertLevel, pred.Priority = AlertWarning, 2
		pred.Message = fmt.Sprintf("WARNING: %s will hit reorder level in %d days", item.ItemName, int(daysUntilReorder))
	case daysUntilReorder <= p.WarningDays:
		pred.AlertLevel, pred.Priority = AlertAttention, 3
		pred.Message = fmt.Sprintf("ATTENTION: %s running low, %d days until reorder", item.ItemName, int(daysUntilReorder))
	default:
		pred.AlertLevel, pred.Priority = AlertOK, 4
		pred.Message = fmt.Sprintf("%s stock level is adequate", item.ItemName)
	}
	return pred
}

// PredictAll forecasts every item, most urgent first. Ties keep input order.
func (p Predictor) PredictAll(items []Item, now time.Time) []Prediction {
	out := make([]Prediction, len(items))
	for i, it := range items {
		out[i] = p.Predict(it, now)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

// Status summarises stock health.
type Status struct {
	FacilityID        string    `json:"facility_id,omitempty"`
	TotalItems        int       `json:"total_items"`
	LowStockCount     int       `json:"low_stock_count"`
	CriticalCount     int       `json:"critical_count"`
	TotalValue        float64   `json:"total_value"`
	FacilitiesCovered int       `json:"facilities_covered"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Summarize computes a Status over items.
func Summarize(facilityID string, items []Item, now time.Time) Status {
	st := Status{FacilityID: facilityID, TotalItems: len(items), LastUpdated: now}
	facilities := make(map[string]struct{})
	for _, it := range items {
		if it.IsLow() {
			st.LowStockCount++
		}
		if it.IsCritical() {
			st.CriticalCount++
		}
		st.TotalValue += float64(it.StockLevel) * it.UnitPrice
		facilities[it.FacilityID] = struct{}{}
	}
	st.TotalValue = round(st.TotalValue, 2)
	st.FacilitiesCovered = len(facilities)
	return st
}

// ReportSummary counts predictions per alert level.
type ReportSummary struct {
	TotalItems      int       `json:"total_items"`
	CriticalAlerts  int       `json:"critical_alerts"`
	WarningAlerts   int       `json:"warning_alerts"`
	AttentionAlerts int       `json:"attention_alerts"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Report is a batch of predictions with its summary.
type Report struct {
	FacilityID  string        `json:"facility_id,omitempty"`
	Predictions []Prediction  `json:"predictions"`
	Summary     ReportSummary `json:"summary"`
}

// NewReport builds a report, keeping only predictions at the given levels
// (all when levels is empty).
func NewReport(facilityID string, preds []Prediction, now time.Time, levels ...AlertLevel) Report {
	keep := preds
	if len(levels) > 0 {
		keep = make([]Prediction, 0, len(preds))
		for _, p := range preds {
			for _, l := range levels {
				if p.AlertLevel == l {
					keep = append(keep, p)
					break
				}
			}
		}
	}
	r := Report{
		FacilityID:  facilityID,
		Predictions: keep,
		Summary:     ReportSummary{TotalItems: len(keep), GeneratedAt: now},
	}
	for _, p := range keep {
		switch p.AlertLevel {
		case AlertCritical:
			r.Summary.CriticalAlerts++
		case AlertWarning:
			r.Summary.WarningAlerts++
		case AlertAttention:
			r.Summary.AttentionAlerts++
		}
	}
	if r.Predictions == nil {
		r.Predictions = []Prediction{}
	}
	return r
}
