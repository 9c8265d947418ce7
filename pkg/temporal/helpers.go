package temporal

import (
	"fmt"
	"time"

	"github.com/leowmjw/go-chronology/pkg/aggregate"
	"github.com/leowmjw/go-chronology/pkg/jsonts"
	"github.com/leowmjw/go-chronology/pkg/jsontsdate"
	"github.com/leowmjw/go-chronology/pkg/series"
)

// OverlayDocuments decodes base and layers, overlays the layers onto base in
// order and returns the encoded result. All documents must share a type.
func OverlayDocuments(base []byte, layers ...[]byte) ([]byte, error) {
	s, err := jsonts.Unmarshal(base)
	if err != nil {
		return nil, fmt.Errorf("base document: %w", err)
	}

	for i, layerDoc := range layers {
		layer, err := jsonts.Unmarshal(layerDoc)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i+1, err)
		}

		switch base := s.(type) {
		case *series.RegularSeries:
			other, ok := layer.(*series.RegularSeries)
			if !ok {
				return nil, series.Errorf(series.KindInvalidArgument, "Cannot overlay a %s series onto a regular series.", layer.Type())
			}
			if s, err = base.Overlay(other); err != nil {
				return nil, err
			}
		case *series.IrregularSeries:
			other, ok := layer.(*series.IrregularSeries)
			if !ok {
				return nil, series.Errorf(series.KindInvalidArgument, "Cannot overlay a %s series onto an irregular series.", layer.Type())
			}
			if s, err = base.Overlay(other); err != nil {
				return nil, err
			}
		}
	}
	return jsonts.Marshal(s)
}

// SubSeriesDocument keeps the observations of document that fall within
// [start, end). Irregular observations crossing either edge are truncated.
func SubSeriesDocument(document []byte, start, end time.Time) ([]byte, error) {
	s, err := jsonts.Unmarshal(document)
	if err != nil {
		return nil, err
	}

	var sub series.Series
	switch s := s.(type) {
	case *series.RegularSeries:
		sub, err = s.SubSeriesBetween(start, end)
	case *series.IrregularSeries:
		sub, err = s.SubSeries(start, end)
	}
	if err != nil {
		return nil, err
	}
	return jsonts.Marshal(sub)
}

// SummarizeDocument describes a JSON-TS document
func SummarizeDocument(seriesID string, document []byte) (*SeriesSummary, error) {
	s, err := jsonts.Unmarshal(document)
	if err != nil {
		return nil, err
	}

	summary := &SeriesSummary{
		SeriesID:    seriesID,
		Type:        s.Type(),
		Count:       s.Count(),
		Fingerprint: jsonts.Fingerprint(document),
	}
	if s.Count() == 0 {
		return summary, nil
	}

	first, last := observedRange(s)
	summary.First = jsontsdate.Format(first)
	summary.Last = jsontsdate.Format(last)

	result, err := aggregate.Series(s, aggregate.Avg, 0)
	if err != nil {
		return nil, err
	}
	if result.Count > 0 {
		summary.Numeric = &result
	}
	return summary, nil
}

// observedRange returns the start of the first observation and the start of
// the last one. s must not be empty.
func observedRange(s series.Series) (first, last time.Time) {
	switch s := s.(type) {
	case *series.RegularSeries:
		f, _ := s.First()
		l, _ := s.Last()
		return periodStart(f), periodStart(l)
	case *series.IrregularSeries:
		f, _ := s.First()
		l, _ := s.Last()
		first, _ = f.Start()
		last, _ = l.Start()
	}
	return first, last
}

// periodStart falls back to the base period start for sub-periods that a
// boundary function left unallocated.
func periodStart(p *series.RegularPeriod) time.Time {
	if t, ok := p.Start(); ok {
		return t
	}
	return p.BasePeriodStart()
}

func decodeDocument(document string) (series.Series, error) {
	return jsonts.Unmarshal([]byte(document))
}
