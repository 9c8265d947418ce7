package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	sdkMocks "go.temporal.io/sdk/mocks"

	"github.com/leowmjw/go-chronology/pkg/jsonts"
	"github.com/leowmjw/go-chronology/pkg/series"
	"github.com/leowmjw/go-chronology/pkg/temporal"
)

const (
	testTaskQueue = "chronology-task-queue"
	dailyDoc      = `{"JsonTs":"regular","BasePeriod":[1,"d"],"Observations":[["2020-01-01Z",1],[2],[3]]}`
	outageDoc     = `{"JsonTs":"irregular","Observations":[["2020-01-01Z","power","2020-01-03Z"]]}`
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *sdkMocks.Client) {
	t.Helper()
	mockClient := &sdkMocks.Client{}
	storage := temporal.NewMemoryStorage(testLogger())
	return NewServer(testLogger(), mockClient, storage, ":8080", testTaskQueue), mockClient
}

func do(t *testing.T, server *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func putSeries(t *testing.T, server *Server, id, doc string) {
	t.Helper()
	rr := do(t, server, http.MethodPut, "/series/"+id, "application/json", doc)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestServer_PutAndGetSeries(t *testing.T) {
	server, _ := newTestServer(t)

	rr := do(t, server, http.MethodPut, "/series/daily", "application/json", dailyDoc)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	summary := decodeBody(t, rr)
	assert.Equal(t, "daily", summary["series_id"])
	assert.Equal(t, "regular", summary["type"])
	assert.Equal(t, 3.0, summary["count"])

	rr = do(t, server, http.MethodGet, "/series/daily", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	etag := rr.Header().Get("ETag")
	assert.Equal(t, `"`+jsonts.Fingerprint(rr.Body.Bytes())+`"`, etag)

	s, err := jsonts.UnmarshalRegular(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count())

	req := httptest.NewRequest(http.MethodGet, "/series/daily", nil)
	req.Header.Set("If-None-Match", etag)
	notModified := httptest.NewRecorder()
	server.Handler().ServeHTTP(notModified, req)
	assert.Equal(t, http.StatusNotModified, notModified.Code)
	assert.Empty(t, notModified.Body.String())
}

func TestServer_PutSeriesErrors(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name     string
		body     string
		status   int
		contains string
	}{
		{"not json", `{"JsonTs":`, http.StatusBadRequest, "INVALID_JSONTS"},
		{"bad type", `{"JsonTs":"sparse","Observations":[]}`, http.StatusBadRequest, "INVALID_JSONTS"},
		{"collision", `{"JsonTs":"irregular","Observations":[["2020Z",1,"2022Z"],["2021Z",2,"2023Z"]]}`, http.StatusBadRequest, "INVALID_JSONTS"},
		{"sub-millisecond", `{"JsonTs":"regular","BasePeriod":[1,"e-6"],"Observations":[]}`, http.StatusUnprocessableEntity, "NOT_SUPPORTED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, server, http.MethodPut, "/series/bad", "application/json", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Contains(t, decodeBody(t, rr)["error"], tt.contains)
		})
	}
}

func TestServer_ListAndDeleteSeries(t *testing.T) {
	server, _ := newTestServer(t)
	putSeries(t, server, "daily", dailyDoc)
	putSeries(t, server, "outages", outageDoc)

	rr := do(t, server, http.MethodGet, "/series", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []interface{}{"daily", "outages"}, decodeBody(t, rr)["series"])

	rr = do(t, server, http.MethodDelete, "/series/daily", "", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, server, http.MethodDelete, "/series/daily", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, server, http.MethodGet, "/series/daily", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_Overlay(t *testing.T) {
	server, mockClient := newTestServer(t)

	mockWorkflowRun := new(sdkMocks.WorkflowRun)
	mockWorkflowRun.On("Get", mock.Anything, mock.AnythingOfType("**temporal.SeriesSummary")).
		Run(func(args mock.Arguments) {
			result := args[1].(**temporal.SeriesSummary)
			*result = &temporal.SeriesSummary{SeriesID: "merged", Type: "regular", Count: 4}
		}).
		Return(nil)

	mockClient.On("ExecuteWorkflow",
		mock.Anything,
		mock.MatchedBy(func(opts client.StartWorkflowOptions) bool {
			return opts.TaskQueue == testTaskQueue && strings.HasPrefix(opts.ID, temporal.OverlayWorkflowIDPrefix+"merged-")
		}),
		mock.Anything,
		temporal.OverlayRequest{BaseID: "daily", LayerIDs: []string{"fixes", "late"}, TargetID: "merged"},
	).Return(mockWorkflowRun, nil).Once()

	rr := do(t, server, http.MethodPost, "/series/daily/overlay", "application/json", `{"layers":["fixes","late"],"target":"merged"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, "merged", body["series_id"])
	assert.Equal(t, 4.0, body["count"])

	mockClient.AssertExpectations(t)
	mockWorkflowRun.AssertExpectations(t)
}

func TestServer_OverlayErrors(t *testing.T) {
	server, mockClient := newTestServer(t)

	rr := do(t, server, http.MethodPost, "/series/daily/overlay", "application/json", `{"layers":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, server, http.MethodPost, "/series/daily/overlay", "application/json", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	mockClient.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("mock temporal error")).Once()
	rr = do(t, server, http.MethodPost, "/series/daily/overlay", "application/json", `{"layers":["fixes"]}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	mockClient.AssertExpectations(t)
}

func TestServer_Ingest(t *testing.T) {
	server, mockClient := newTestServer(t)

	expectedWorkflowID := temporal.GenerateIngestionWorkflowID("daily")
	mockClient.On("SignalWithStartWorkflow",
		mock.Anything,
		expectedWorkflowID,
		temporal.ObservationSignalName,
		mock.MatchedBy(func(signal temporal.ObservationSignal) bool {
			s, err := jsonts.UnmarshalRegular([]byte(signal.Document))
			return err == nil && s.Count() == 3
		}),
		client.StartWorkflowOptions{ID: expectedWorkflowID, TaskQueue: testTaskQueue},
		mock.Anything,
		"daily",
	).Return(new(sdkMocks.WorkflowRun), nil).Once()

	rr := do(t, server, http.MethodPost, "/series/daily/ingest", "application/json", dailyDoc)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	assert.Equal(t, 3.0, decodeBody(t, rr)["observation_count"])
	mockClient.AssertExpectations(t)
}

func TestServer_IngestTemporalError(t *testing.T) {
	server, mockClient := newTestServer(t)

	mockClient.On("SignalWithStartWorkflow",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything,
	).Return(nil, errors.New("mock temporal error")).Once()

	rr := do(t, server, http.MethodPost, "/series/daily/ingest", "application/json", outageDoc)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	// invalid documents never reach Temporal
	rr = do(t, server, http.MethodPost, "/series/daily/ingest", "application/json", `{"JsonTs":"irregular"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	mockClient.AssertExpectations(t)
}

func TestServer_Health(t *testing.T) {
	server, _ := newTestServer(t)
	rr := do(t, server, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "healthy", decodeBody(t, rr)["status"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{temporal.ErrSeriesNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", temporal.ErrSeriesNotFound), http.StatusNotFound},
		{series.Errorf(series.KindInvalidArgument, "x"), http.StatusBadRequest},
		{series.Errorf(series.KindInvalidJSONTS, "x"), http.StatusBadRequest},
		{series.Errorf(series.KindInvalidPeriod, "x"), http.StatusBadRequest},
		{series.Errorf(series.KindMissing, "x"), http.StatusNotFound},
		{series.Errorf(series.KindCollision, "x"), http.StatusConflict},
		{series.Errorf(series.KindNotSupported, "x"), http.StatusUnprocessableEntity},
		{series.Errorf(series.KindNotSerializable, "x"), http.StatusUnprocessableEntity},
		{series.Errorf(series.KindUnallocatedDate, "x"), http.StatusUnprocessableEntity},
		{series.Errorf(series.KindInsufficientPrecision, "x"), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}
