package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"

	"github.com/leowmjw/go-chronology/pkg/hcl"
	"github.com/leowmjw/go-chronology/pkg/jsonts"
	"github.com/leowmjw/go-chronology/pkg/jsontsdate"
	"github.com/leowmjw/go-chronology/pkg/temporal"
)

// Constants for the CLI tool
const (
	DefaultTaskQueue = "chronology-task-queue"
)

// Operation modes
const (
	modeLocal   = "local"
	modeIngest  = "ingest"
	modeOverlay = "overlay"
	modeQuery   = "query"
)

type options struct {
	path        string
	address     string
	namespace   string
	taskQueue   string
	displayJSON bool
	mode        string
	sqlPath     string
	target      string
	seriesID    string
	start       string
	end         string
	aggregation string
	percentile  float64
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	var opts options
	flag.StringVar(&opts.path, "path", "", "Path to HCL file or directory")
	flag.StringVar(&opts.address, "address", "localhost:7233", "Address of Temporal server")
	flag.StringVar(&opts.namespace, "namespace", "default", "Temporal namespace")
	flag.StringVar(&opts.taskQueue, "task-queue", DefaultTaskQueue, "Temporal task queue")
	flag.BoolVar(&opts.displayJSON, "json", false, "Print JSON-TS documents instead of summaries")
	flag.StringVar(&opts.mode, "mode", modeLocal, "Operation mode: local, ingest, overlay or query")
	flag.StringVar(&opts.sqlPath, "sql-path", "chronology.db", "SQLite database shared with the worker (overlay mode)")
	flag.StringVar(&opts.target, "target", "", "Series ID the overlay is stored under (overlay mode)")
	flag.StringVar(&opts.seriesID, "series", "", "Series ID to query (query mode)")
	flag.StringVar(&opts.start, "start", "", "Start date of the queried range (query mode)")
	flag.StringVar(&opts.end, "end", "", "End date of the queried range (query mode)")
	flag.StringVar(&opts.aggregation, "aggregate", "", "Aggregation to run on the queried range (query mode)")
	flag.Float64Var(&opts.percentile, "percentile", 0, "Percentile for -aggregate percentile")
	flag.Parse()

	if err := run(context.Background(), opts, os.Stdout, logger); err != nil {
		logger.Error("Command failed", "mode", opts.mode, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer, logger *slog.Logger) error {
	switch opts.mode {
	case modeLocal:
		defs, err := loadDefinitions(opts.path, logger)
		if err != nil {
			return err
		}
		return printLocal(out, defs, opts.displayJSON)
	case modeIngest, modeOverlay:
		defs, err := loadDefinitions(opts.path, logger)
		if err != nil {
			return err
		}
		c, err := dial(opts)
		if err != nil {
			return err
		}
		defer c.Close()
		if opts.mode == modeIngest {
			return ingest(ctx, c, opts.taskQueue, defs, out, logger)
		}
		storage, err := temporal.NewSQLStorage(logger, opts.sqlPath)
		if err != nil {
			return err
		}
		defer storage.Close()
		return overlay(ctx, c, storage, opts, defs, out, logger)
	case modeQuery:
		request, err := queryRequest(opts)
		if err != nil {
			return err
		}
		c, err := dial(opts)
		if err != nil {
			return err
		}
		defer c.Close()
		return query(ctx, c, opts.taskQueue, request, opts.displayJSON, out, logger)
	}
	return fmt.Errorf("mode must be one of %s, %s, %s or %s", modeLocal, modeIngest, modeOverlay, modeQuery)
}

func dial(opts options) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  opts.address,
		Namespace: opts.namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	return c, nil
}

// loadDefinitions reads one .hcl file or every .hcl file under a directory
func loadDefinitions(path string, logger *slog.Logger) ([]hcl.Definition, error) {
	if path == "" {
		return nil, fmt.Errorf("-path is required")
	}
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}

	if fileInfo.IsDir() {
		logger.Info("Processing directory", "path", path)
		return hcl.ParseSeriesDirectory(path)
	}
	if !hcl.IsHCLBasedOnExtension(path) {
		return nil, fmt.Errorf("file %s does not have the .hcl extension", path)
	}
	return hcl.ParseSeriesFiles([]string{path})
}

// buildDocuments builds every definition and encodes it as JSON-TS
func buildDocuments(defs []hcl.Definition) ([][]byte, error) {
	docs := make([][]byte, len(defs))
	for i, def := range defs {
		s, err := def.Build()
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", def.Name, err)
		}
		if docs[i], err = jsonts.Marshal(s); err != nil {
			return nil, fmt.Errorf("series %q: %w", def.Name, err)
		}
	}
	return docs, nil
}

func printLocal(out io.Writer, defs []hcl.Definition, displayJSON bool) error {
	docs, err := buildDocuments(defs)
	if err != nil {
		return err
	}
	for i, def := range defs {
		if displayJSON {
			fmt.Fprintf(out, "%s\n", docs[i])
			continue
		}
		summary, err := temporal.SummarizeDocument(def.Name, docs[i])
		if err != nil {
			return err
		}
		displaySummary(out, summary)
	}
	return nil
}

// ingest queues every series on its ingestion workflow
func ingest(ctx context.Context, c client.Client, taskQueue string, defs []hcl.Definition, out io.Writer, logger *slog.Logger) error {
	docs, err := buildDocuments(defs)
	if err != nil {
		return err
	}
	for i, def := range defs {
		workflowID := temporal.GenerateIngestionWorkflowID(def.Name)
		_, err := c.SignalWithStartWorkflow(ctx, workflowID, temporal.ObservationSignalName,
			temporal.ObservationSignal{Document: string(docs[i])},
			client.StartWorkflowOptions{ID: workflowID, TaskQueue: taskQueue},
			temporal.IngestionWorkflow, def.Name)
		if err != nil {
			return fmt.Errorf("failed to queue series %q: %w", def.Name, err)
		}
		logger.Info("Queued series", "series_id", def.Name, "workflow_id", workflowID)
		fmt.Fprintf(out, "queued %s on %s\n", def.Name, workflowID)
	}
	return nil
}

// overlay stores every series, then overlays the later ones onto the first
func overlay(ctx context.Context, c client.Client, storage temporal.StorageService, opts options, defs []hcl.Definition, out io.Writer, logger *slog.Logger) error {
	if len(defs) < 2 {
		return fmt.Errorf("overlay needs at least two series, got %d", len(defs))
	}
	docs, err := buildDocuments(defs)
	if err != nil {
		return err
	}

	request := temporal.OverlayRequest{BaseID: defs[0].Name, TargetID: opts.target}
	for i, def := range defs {
		if err := storage.SaveSeries(ctx, def.Name, docs[i]); err != nil {
			return fmt.Errorf("failed to store series %q: %w", def.Name, err)
		}
		if i > 0 {
			request.LayerIDs = append(request.LayerIDs, def.Name)
		}
	}
	if request.TargetID == "" {
		request.TargetID = request.BaseID
	}

	logger.Info("Executing overlay", "base_id", request.BaseID, "layers", len(request.LayerIDs), "target_id", request.TargetID)

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        temporal.GenerateOverlayWorkflowID(request.TargetID),
		TaskQueue: opts.taskQueue,
	}, temporal.OverlayWorkflow, request)
	if err != nil {
		return fmt.Errorf("failed to execute overlay workflow: %w", err)
	}

	var summary *temporal.SeriesSummary
	if err := run.Get(ctx, &summary); err != nil {
		return fmt.Errorf("failed to get overlay result: %w", err)
	}

	if opts.displayJSON {
		doc, err := storage.LoadSeries(ctx, request.TargetID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", doc)
		return nil
	}
	displaySummary(out, summary)
	return nil
}

func queryRequest(opts options) (temporal.QueryRequest, error) {
	request := temporal.QueryRequest{
		SeriesID:    opts.seriesID,
		Aggregation: opts.aggregation,
		Percentile:  opts.percentile,
	}
	if request.SeriesID == "" {
		return request, fmt.Errorf("-series is required")
	}
	if opts.start == "" && opts.end == "" {
		return request, nil
	}

	start, err := jsontsdate.Parse(opts.start)
	if err != nil {
		return request, fmt.Errorf("invalid -start: %w", err)
	}
	end, err := jsontsdate.Parse(opts.end)
	if err != nil {
		return request, fmt.Errorf("invalid -end: %w", err)
	}
	request.TimeRange = &temporal.TimeRange{Start: start, End: end}
	return request, nil
}

func query(ctx context.Context, c client.Client, taskQueue string, request temporal.QueryRequest, displayJSON bool, out io.Writer, logger *slog.Logger) error {
	logger.Info("Executing query", "series_id", request.SeriesID, "aggregation", request.Aggregation)

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        temporal.GenerateQueryWorkflowID(request.SeriesID),
		TaskQueue: taskQueue,
	}, temporal.QueryWorkflow, request)
	if err != nil {
		return fmt.Errorf("failed to execute query workflow: %w", err)
	}

	var result temporal.QueryResult
	if err := run.Get(ctx, &result); err != nil {
		return fmt.Errorf("failed to get query result: %w", err)
	}

	if displayJSON {
		return printJSON(out, result)
	}
	displaySummary(out, result.Summary)
	if result.Aggregate != nil {
		fmt.Fprintf(out, "  %s: %v (%d values)\n", result.Aggregate.Type, result.Aggregate.Value, result.Aggregate.Count)
	}
	return nil
}

// displaySummary prints a series summary in human-readable form
func displaySummary(out io.Writer, summary *temporal.SeriesSummary) {
	fmt.Fprintf(out, "Series %s (%s)\n", summary.SeriesID, summary.Type)
	fmt.Fprintf(out, "  Observations: %d\n", summary.Count)
	if summary.First != "" {
		fmt.Fprintf(out, "  First: %s\n", summary.First)
		fmt.Fprintf(out, "  Last: %s\n", summary.Last)
	}
	if summary.Numeric != nil && summary.Numeric.Count > 0 {
		fmt.Fprintf(out, "  Average: %v\n", summary.Numeric.Value)
	}
	fmt.Fprintf(out, "  Fingerprint: %s\n", summary.Fingerprint)
}

func printJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", data)
	return err
}
