package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/spf13/cast"

	"github.com/leowmjw/go-chronology/pkg/aggregate"
	"github.com/leowmjw/go-chronology/pkg/jsonts"
	"github.com/leowmjw/go-chronology/pkg/jsontsdate"
	"github.com/leowmjw/go-chronology/pkg/series"
	"github.com/leowmjw/go-chronology/pkg/temporal"
)

// observationRequest is the body of POST /series/{id}/observations. Regular
// series use Period and SubPeriod, irregular series Start and End.
type observationRequest struct {
	Period    string      `json:"period"`
	SubPeriod interface{} `json:"sub_period"`
	Start     string      `json:"start"`
	End       string      `json:"end"`
	Value     interface{} `json:"value"`
}

// valueResponse is returned by GET /series/{id}/value
type valueResponse struct {
	SeriesID  string      `json:"series_id"`
	Start     string      `json:"start,omitempty"`
	End       string      `json:"end,omitempty"`
	SubPeriod int         `json:"sub_period,omitempty"`
	Value     interface{} `json:"value"`
}

func (s *Server) loadSeries(ctx context.Context, seriesID string) (series.Series, error) {
	doc, err := s.storage.LoadSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	return jsonts.Unmarshal(doc)
}

func (s *Server) saveSeries(ctx context.Context, seriesID string, decoded series.Series) (*temporal.SeriesSummary, error) {
	doc, err := jsonts.Marshal(decoded)
	if err != nil {
		return nil, err
	}
	if err := s.storage.SaveSeries(ctx, seriesID, doc); err != nil {
		return nil, err
	}
	return temporal.SummarizeDocument(seriesID, doc)
}

func parseDate(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, series.Errorf(series.KindInvalidArgument, "%s is required", name)
	}
	t, err := jsontsdate.Parse(raw)
	if err != nil {
		return time.Time{}, series.Errorf(series.KindInvalidArgument, "invalid %s %q", name, raw)
	}
	return t, nil
}

// parseSubPeriod defaults to the first sub-period when raw is empty
func parseSubPeriod(raw interface{}) (int, error) {
	if raw == nil || raw == "" {
		return 1, nil
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return 0, series.Errorf(series.KindInvalidArgument, "invalid sub_period %v", raw)
	}
	return n, nil
}

func formatSpan(start time.Time, startOK bool, end time.Time, endOK bool) (string, string) {
	var from, to string
	if startOK {
		from = jsontsdate.Format(start)
	}
	if endOK {
		to = jsontsdate.Format(end)
	}
	return from, to
}

// GET /series/{id}/value?at=<date>[&sub_period=n]
func (s *Server) handleGetValue(w http.ResponseWriter, r *http.Request) {
	seriesID := r.PathValue("id")
	query := r.URL.Query()

	at, err := parseDate(query.Get("at"), "at")
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}

	loaded, err := s.loadSeries(r.Context(), seriesID)
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}

	resp := valueResponse{SeriesID: seriesID}
	switch loaded := loaded.(type) {
	case *series.RegularSeries:
		var p *series.RegularPeriod
		if query.Has("sub_period") {
			sp, perr := parseSubPeriod(query.Get("sub_period"))
			if perr != nil {
				s.respondSeriesError(w, perr)
				return
			}
			p, err = loaded.PeriodAt(at, sp)
		} else {
			p, err = loaded.Period(at)
		}
		if err != nil {
			s.respondSeriesError(w, err)
			return
		}
		start, startOK := p.Start()
		end, endOK := p.End()
		resp.Start, resp.End = formatSpan(start, startOK, end, endOK)
		resp.SubPeriod = p.SubPeriod()
		resp.Value, err = p.Obs().Value()
	case *series.IrregularSeries:
		p := loaded.Period(at)
		start, startOK := p.Start()
		end, endOK := p.End()
		resp.Start, resp.End = formatSpan(start, startOK, end, endOK)
		resp.Value, err = p.Obs().Value()
	}
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// POST /series/{id}/observations
func (s *Server) handleSetObservation(w http.ResponseWriter, r *http.Request) {
	seriesID := r.PathValue("id")

	var body observationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.loadSeries(r.Context(), seriesID)
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}

	switch loaded := loaded.(type) {
	case *series.RegularSeries:
		err = setRegular(loaded, body)
	case *series.IrregularSeries:
		err = setIrregular(loaded, body)
	}
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}

	summary, err := s.saveSeries(r.Context(), seriesID, loaded)
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func setRegular(s *series.RegularSeries, body observationRequest) error {
	period, err := parseDate(body.Period, "period")
	if err != nil {
		return err
	}
	sp, err := parseSubPeriod(body.SubPeriod)
	if err != nil {
		return err
	}
	p, err := s.PeriodAt(period, sp)
	if err != nil {
		return err
	}
	p.Obs().Set(body.Value)
	return nil
}

func setIrregular(s *series.IrregularSeries, body observationRequest) error {
	start, err := parseDate(body.Start, "start")
	if err != nil {
		return err
	}
	end, err := parseDate(body.End, "end")
	if err != nil {
		return err
	}
	return s.Set(start, body.Value, end)
}

// DELETE /series/{id}/observations?start=&end= or ?period=&sub_period=
func (s *Server) handleClearObservations(w http.ResponseWriter, r *http.Request) {
	seriesID := r.PathValue("id")
	query := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.loadSeries(r.Context(), seriesID)
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}

	switch loaded := loaded.(type) {
	case *series.RegularSeries:
		var period time.Time
		var sp int
		if period, err = parseDate(query.Get("period"), "period"); err == nil {
			sp, err = parseSubPeriod(query.Get("sub_period"))
		}
		if err == nil {
			var p *series.RegularPeriod
			if p, err = loaded.PeriodAt(period, sp); err == nil {
				p.Obs().Clear()
			}
		}
	case *series.IrregularSeries:
		var start, end time.Time
		if start, err = parseDate(query.Get("start"), "start"); err == nil {
			end, err = parseDate(query.Get("end"), "end")
		}
		if err == nil {
			err = loaded.Clear(start, end)
		}
	}
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}

	summary, err := s.saveSeries(r.Context(), seriesID, loaded)
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

// GET /series/{id}/subseries?start=&end=
func (s *Server) handleSubSeries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start, err := parseDate(query.Get("start"), "start")
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}
	end, err := parseDate(query.Get("end"), "end")
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}

	doc, err := s.storage.LoadSeries(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}
	sub, err := temporal.SubSeriesDocument(doc, start, end)
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}
	s.respondDocument(w, sub)
}

// GET /series/{id}/aggregate?type=avg[&percentile=p]
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	aggType, err := aggregate.ParseType(query.Get("type"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var percentile float64
	if raw := query.Get("percentile"); raw != "" {
		if percentile, err = cast.ToFloat64E(raw); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid percentile")
			return
		}
	}

	loaded, err := s.loadSeries(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}
	result, err := aggregate.Series(loaded, aggType, percentile)
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}
