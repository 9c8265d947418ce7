package temporal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// Workflow IDs
	IngestionWorkflowIDPrefix = "ingest-"
	OverlayWorkflowIDPrefix   = "overlay-"
	QueryWorkflowIDPrefix     = "query-"

	// Signal and query names
	ObservationSignalName   = "observation-signal"
	CloseSignalName         = "close-signal"
	IngestionStateQueryName = "ingestion-state"

	// Activity names
	LoadSeriesActivityName = "load-series"
	SaveSeriesActivityName = "save-series"
	OverlayActivityName    = "overlay-series"
	SubSeriesActivityName  = "sub-series"
	SummarizeActivityName  = "summarize-series"
	AggregateActivityName  = "aggregate-series"

	// Default values
	DefaultContinueAsNewThreshold = 1000 // signals before ContinueAsNew
)

// WorkflowRegistry is the part of a worker (or test environment) workflows
// are registered on.
type WorkflowRegistry interface {
	RegisterWorkflow(w interface{})
}

// RegisterWorkflows registers every series workflow
func RegisterWorkflows(r WorkflowRegistry) {
	r.RegisterWorkflow(IngestionWorkflow)
	r.RegisterWorkflow(OverlayWorkflow)
	r.RegisterWorkflow(QueryWorkflow)
}

func withActivityOptions(ctx workflow.Context, timeout time.Duration) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		ScheduleToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})
}

// IngestionWorkflow overlays every document received on ObservationSignalName
// onto the stored series until CloseSignalName arrives.
func IngestionWorkflow(ctx workflow.Context, seriesID string) (*IngestionState, error) {
	return ingest(ctx, seriesID, DefaultContinueAsNewThreshold)
}

func ingest(ctx workflow.Context, seriesID string, threshold int) (*IngestionState, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting ingestion workflow", "seriesID", seriesID)

	state := IngestionState{SeriesID: seriesID}
	err := workflow.SetQueryHandler(ctx, IngestionStateQueryName, func() (IngestionState, error) {
		return state, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register query handler: %w", err)
	}

	ctx = withActivityOptions(ctx, 30*time.Second)

	apply := func(signal ObservationSignal) {
		state.SignalCount++
		state.LastSignalAt = workflow.Now(ctx)
		if err := applyDocument(ctx, seriesID, signal.Document); err != nil {
			// Continue with later documents rather than failing the workflow
			logger.Error("Failed to apply document", "seriesID", seriesID, "error", err)
			state.FailedCount++
			return
		}
		state.AppliedCount++
	}

	signalChan := workflow.GetSignalChannel(ctx, ObservationSignalName)
	closeChan := workflow.GetSignalChannel(ctx, CloseSignalName)

	var pending []ObservationSignal
	closed := false
	selector := workflow.NewSelector(ctx)
	selector.AddReceive(signalChan, func(c workflow.ReceiveChannel, more bool) {
		var signal ObservationSignal
		c.Receive(ctx, &signal)
		pending = append(pending, signal)
	})
	selector.AddReceive(closeChan, func(c workflow.ReceiveChannel, more bool) {
		c.Receive(ctx, nil)
		closed = true
	})

	// drain applies every buffered document; signals are lost across
	// ContinueAsNew and after completion
	drain := func() {
		for {
			var signal ObservationSignal
			if !signalChan.ReceiveAsync(&signal) {
				return
			}
			apply(signal)
		}
	}

	for !closed {
		selector.Select(ctx)
		for _, signal := range pending {
			apply(signal)
		}
		pending = pending[:0]

		if !closed && state.SignalCount >= threshold {
			drain()
			if closeChan.ReceiveAsync(nil) {
				closed = true
				break
			}
			logger.Info("Continuing as new", "seriesID", seriesID, "signalCount", state.SignalCount)
			return nil, workflow.NewContinueAsNewError(ctx, IngestionWorkflow, seriesID)
		}
	}
	drain()

	logger.Info("Ingestion closed", "seriesID", seriesID, "applied", state.AppliedCount, "failed", state.FailedCount)
	return &state, nil
}

// applyDocument overlays document onto the stored series, or stores it as is
// when the series does not exist yet.
func applyDocument(ctx workflow.Context, seriesID, document string) error {
	var stored string
	err := workflow.ExecuteActivity(ctx, LoadSeriesActivityName, seriesID).Get(ctx, &stored)
	if err != nil && !IsSeriesNotFound(err) {
		return fmt.Errorf("failed to load series: %w", err)
	}

	merged := document
	if err == nil {
		if err := workflow.ExecuteActivity(ctx, OverlayActivityName, stored, []string{document}).Get(ctx, &merged); err != nil {
			return fmt.Errorf("failed to overlay document: %w", err)
		}
	}

	if err := workflow.ExecuteActivity(ctx, SaveSeriesActivityName, seriesID, merged).Get(ctx, nil); err != nil {
		return fmt.Errorf("failed to save series: %w", err)
	}
	return nil
}

// OverlayWorkflow overlays stored layers onto a stored base series and saves
// the result.
func OverlayWorkflow(ctx workflow.Context, request OverlayRequest) (*SeriesSummary, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting overlay workflow", "baseID", request.BaseID, "layers", len(request.LayerIDs))

	if request.BaseID == "" {
		return nil, temporal.NewNonRetryableApplicationError("base_id is required", ErrTypeInvalidSeries, nil)
	}
	targetID := request.TargetID
	if targetID == "" {
		targetID = request.BaseID
	}

	ctx = withActivityOptions(ctx, 5*time.Minute)

	// Step 1: load base and layers concurrently
	baseFuture := workflow.ExecuteActivity(ctx, LoadSeriesActivityName, request.BaseID)
	layerFutures := make([]workflow.Future, len(request.LayerIDs))
	for i, id := range request.LayerIDs {
		layerFutures[i] = workflow.ExecuteActivity(ctx, LoadSeriesActivityName, id)
	}

	var base string
	if err := baseFuture.Get(ctx, &base); err != nil {
		return nil, fmt.Errorf("failed to load base series %s: %w", request.BaseID, err)
	}
	layers := make([]string, len(layerFutures))
	for i, f := range layerFutures {
		if err := f.Get(ctx, &layers[i]); err != nil {
			return nil, fmt.Errorf("failed to load layer %s: %w", request.LayerIDs[i], err)
		}
	}

	// Step 2: overlay in request order
	merged := base
	if len(layers) > 0 {
		if err := workflow.ExecuteActivity(ctx, OverlayActivityName, base, layers).Get(ctx, &merged); err != nil {
			return nil, fmt.Errorf("failed to overlay series: %w", err)
		}
	}

	// Step 3: store the result
	var summary *SeriesSummary
	if err := workflow.ExecuteActivity(ctx, SaveSeriesActivityName, targetID, merged).Get(ctx, &summary); err != nil {
		return nil, fmt.Errorf("failed to save series %s: %w", targetID, err)
	}

	logger.Info("Overlay completed", "targetID", targetID, "count", summary.Count)
	return summary, nil
}

// QueryWorkflow reads a stored series, optionally narrowed and aggregated
func QueryWorkflow(ctx workflow.Context, request QueryRequest) (*QueryResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting query workflow", "seriesID", request.SeriesID)

	ctx = withActivityOptions(ctx, 5*time.Minute)

	var document string
	if err := workflow.ExecuteActivity(ctx, LoadSeriesActivityName, request.SeriesID).Get(ctx, &document); err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}

	if request.TimeRange != nil {
		if err := workflow.ExecuteActivity(ctx, SubSeriesActivityName, document, *request.TimeRange).Get(ctx, &document); err != nil {
			return nil, fmt.Errorf("failed to extract sub-series: %w", err)
		}
	}

	result := &QueryResult{Document: document}
	if err := workflow.ExecuteActivity(ctx, SummarizeActivityName, request.SeriesID, document).Get(ctx, &result.Summary); err != nil {
		return nil, fmt.Errorf("failed to summarize series: %w", err)
	}

	if request.Aggregation != "" {
		if err := workflow.ExecuteActivity(ctx, AggregateActivityName, document, request.Aggregation, request.Percentile).Get(ctx, &result.Aggregate); err != nil {
			return nil, fmt.Errorf("failed to aggregate series: %w", err)
		}
	}

	logger.Info("Query completed", "seriesID", request.SeriesID, "count", result.Summary.Count)
	return result, nil
}

// Utility functions for workflow IDs

// GenerateIngestionWorkflowID creates the workflow ID for a series' ingestion;
// there is one ingestion workflow per series.
func GenerateIngestionWorkflowID(seriesID string) string {
	return IngestionWorkflowIDPrefix + seriesID
}

// GenerateOverlayWorkflowID creates a workflow ID for an overlay into targetID
func GenerateOverlayWorkflowID(targetID string) string {
	return fmt.Sprintf("%s%s-%s", OverlayWorkflowIDPrefix, targetID, uuid.NewString())
}

// GenerateQueryWorkflowID creates a workflow ID for a query
func GenerateQueryWorkflowID(seriesID string) string {
	return fmt.Sprintf("%s%s-%s", QueryWorkflowIDPrefix, seriesID, uuid.NewString())
}
