package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/leowmjw/go-chronology/pkg/aggregate"
	"github.com/leowmjw/go-chronology/pkg/series"
)

// Application error types reported by activities. Both are non-retryable.
const (
	ErrTypeSeriesNotFound = "SeriesNotFound"
	ErrTypeInvalidSeries  = "InvalidSeries"
)

// ActivityRegistry is the part of a worker (or test environment) activities
// are registered on.
type ActivityRegistry interface {
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Activities holds the activities used by the series workflows
type Activities struct {
	logger  *slog.Logger
	storage StorageService
}

// NewActivities creates the activities backed by storage
func NewActivities(logger *slog.Logger, storage StorageService) *Activities {
	return &Activities{
		logger:  logger,
		storage: storage,
	}
}

// Register registers every activity under the name workflows call it by
func (a *Activities) Register(r ActivityRegistry) {
	r.RegisterActivityWithOptions(a.LoadSeriesActivity, activity.RegisterOptions{Name: LoadSeriesActivityName})
	r.RegisterActivityWithOptions(a.SaveSeriesActivity, activity.RegisterOptions{Name: SaveSeriesActivityName})
	r.RegisterActivityWithOptions(a.OverlayActivity, activity.RegisterOptions{Name: OverlayActivityName})
	r.RegisterActivityWithOptions(a.SubSeriesActivity, activity.RegisterOptions{Name: SubSeriesActivityName})
	r.RegisterActivityWithOptions(a.SummarizeActivity, activity.RegisterOptions{Name: SummarizeActivityName})
	r.RegisterActivityWithOptions(a.AggregateActivity, activity.RegisterOptions{Name: AggregateActivityName})
}

// applicationError marks storage misses and series errors as non-retryable;
// repeating the call cannot change their outcome.
func applicationError(err error) error {
	if errors.Is(err, ErrSeriesNotFound) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeSeriesNotFound, err)
	}
	if kind := series.KindOf(err); kind != "" {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidSeries, err, string(kind))
	}
	return err
}

// IsSeriesNotFound reports whether an activity failed because the series
// does not exist.
func IsSeriesNotFound(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == ErrTypeSeriesNotFound
}

// LoadSeriesActivity loads a stored JSON-TS document
func (a *Activities) LoadSeriesActivity(ctx context.Context, seriesID string) (string, error) {
	a.logger.Info("Loading series", "seriesID", seriesID)

	document, err := a.storage.LoadSeries(ctx, seriesID)
	if err != nil {
		a.logger.Warn("Failed to load series", "seriesID", seriesID, "error", err)
		return "", applicationError(fmt.Errorf("failed to load series %s: %w", seriesID, err))
	}

	a.logger.Info("Successfully loaded series", "seriesID", seriesID, "bytes", len(document))
	return string(document), nil
}

// SaveSeriesActivity validates a JSON-TS document and stores it
func (a *Activities) SaveSeriesActivity(ctx context.Context, seriesID string, document string) (*SeriesSummary, error) {
	summary, err := SummarizeDocument(seriesID, []byte(document))
	if err != nil {
		a.logger.Error("Refusing to save invalid series", "seriesID", seriesID, "error", err)
		return nil, applicationError(err)
	}

	if err := a.storage.SaveSeries(ctx, seriesID, []byte(document)); err != nil {
		a.logger.Error("Failed to save series", "seriesID", seriesID, "error", err)
		return nil, fmt.Errorf("failed to save series: %w", err)
	}

	a.logger.Info("Successfully saved series", "seriesID", seriesID, "count", summary.Count, "fingerprint", summary.Fingerprint)
	return summary, nil
}

// OverlayActivity overlays layers, in order, onto base
func (a *Activities) OverlayActivity(ctx context.Context, base string, layers []string) (string, error) {
	a.logger.Info("Overlaying series", "layers", len(layers))

	layerDocs := make([][]byte, len(layers))
	for i, layer := range layers {
		layerDocs[i] = []byte(layer)
	}

	result, err := OverlayDocuments([]byte(base), layerDocs...)
	if err != nil {
		a.logger.Error("Failed to overlay series", "error", err)
		return "", applicationError(err)
	}
	return string(result), nil
}

// SubSeriesActivity narrows a document to a time range
func (a *Activities) SubSeriesActivity(ctx context.Context, document string, timeRange TimeRange) (string, error) {
	a.logger.Info("Extracting sub-series", "start", timeRange.Start, "end", timeRange.End)

	result, err := SubSeriesDocument([]byte(document), timeRange.Start, timeRange.End)
	if err != nil {
		a.logger.Error("Failed to extract sub-series", "error", err)
		return "", applicationError(err)
	}
	return string(result), nil
}

// SummarizeActivity describes a document
func (a *Activities) SummarizeActivity(ctx context.Context, seriesID string, document string) (*SeriesSummary, error) {
	summary, err := SummarizeDocument(seriesID, []byte(document))
	if err != nil {
		a.logger.Error("Failed to summarize series", "seriesID", seriesID, "error", err)
		return nil, applicationError(err)
	}
	return summary, nil
}

// AggregateActivity reduces the numeric observations of a document
func (a *Activities) AggregateActivity(ctx context.Context, document string, aggType string, percentile float64) (*aggregate.Result, error) {
	t, err := aggregate.ParseType(aggType)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidSeries, err)
	}

	s, err := decodeDocument(document)
	if err != nil {
		return nil, applicationError(err)
	}
	result, err := aggregate.Series(s, t, percentile)
	if err != nil {
		return nil, applicationError(err)
	}

	a.logger.Info("Aggregated series", "type", t, "value", result.Value, "count", result.Count, "skipped", result.Skipped)
	return &result, nil
}
