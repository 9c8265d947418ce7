package temporal

import (
	"time"

	"github.com/leowmjw/go-chronology/pkg/aggregate"
)

// ObservationSignal carries a JSON-TS document to overlay onto a stored series
type ObservationSignal struct {
	Document string `json:"document"`
}

// TimeRange bounds a query, end exclusive
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// OverlayRequest overlays LayerIDs, in order, onto BaseID and stores the
// result under TargetID (BaseID when empty).
type OverlayRequest struct {
	BaseID   string   `json:"base_id"`
	LayerIDs []string `json:"layer_ids"`
	TargetID string   `json:"target_id,omitempty"`
}

// QueryRequest reads a stored series, optionally narrowed to a time range
// and reduced by an aggregation.
type QueryRequest struct {
	SeriesID    string     `json:"series_id"`
	TimeRange   *TimeRange `json:"time_range,omitempty"`
	Aggregation string     `json:"aggregation,omitempty"`
	Percentile  float64    `json:"percentile,omitempty"`
}

// QueryResult is the outcome of QueryWorkflow
type QueryResult struct {
	Document  string            `json:"document"`
	Summary   *SeriesSummary    `json:"summary"`
	Aggregate *aggregate.Result `json:"aggregate,omitempty"`
}

// SeriesSummary describes a series document
type SeriesSummary struct {
	SeriesID    string            `json:"series_id,omitempty"`
	Type        string            `json:"type"`
	Count       int               `json:"count"`
	First       string            `json:"first,omitempty"`
	Last        string            `json:"last,omitempty"`
	Fingerprint string            `json:"fingerprint"`
	Numeric     *aggregate.Result `json:"numeric,omitempty"`
}

// IngestionState is the queryable state of an ingestion workflow
type IngestionState struct {
	SeriesID     string    `json:"series_id"`
	SignalCount  int       `json:"signal_count"`
	AppliedCount int       `json:"applied_count"`
	FailedCount  int       `json:"failed_count"`
	LastSignalAt time.Time `json:"last_signal_at"`
}
