// Package jsonts reads and writes series in the JSON-TS document format.
package jsonts

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/leowmjw/go-chronology/pkg/jsontsdate"
	"github.com/leowmjw/go-chronology/pkg/series"
)

type regularDocument struct {
	JsonTs       string  `json:"JsonTs"`
	BasePeriod   [2]any  `json:"BasePeriod"`
	Anchor       string  `json:"Anchor"`
	SubPeriods   int     `json:"SubPeriods"`
	Observations [][]any `json:"Observations"`
}

type irregularDocument struct {
	JsonTs       string  `json:"JsonTs"`
	Observations [][]any `json:"Observations"`
}

// Marshal encodes a *series.RegularSeries or *series.IrregularSeries.
func Marshal(s series.Series) ([]byte, error) {
	switch s := s.(type) {
	case *series.RegularSeries:
		return MarshalRegular(s)
	case *series.IrregularSeries:
		return MarshalIrregular(s)
	}
	return nil, series.Errorf(series.KindInvalidArgument, "Unknown series type %T.", s)
}

// MarshalRegular encodes a regular series. An observation directly following
// the previous one is written as [value]; others carry their period.
func MarshalRegular(s *series.RegularSeries) ([]byte, error) {
	count, unit := s.BasePeriod()
	doc := regularDocument{
		JsonTs:       series.TypeRegular,
		BasePeriod:   [2]any{count, string(unit)},
		Anchor:       jsontsdate.Format(s.Anchor()),
		SubPeriods:   s.SubPeriods(),
		Observations: [][]any{},
	}

	prev := 0
	first := true
	err := s.Each(func(p *series.RegularPeriod) error {
		v, err := p.Obs().Value()
		if err != nil {
			return err
		}
		if err := checkSerializable(v); err != nil {
			return err
		}
		switch {
		case !first && p.Index()-prev == 1:
			doc.Observations = append(doc.Observations, []any{v})
		case s.SubPeriods() == 1:
			doc.Observations = append(doc.Observations, []any{jsontsdate.Format(p.BasePeriodStart()), v})
		default:
			doc.Observations = append(doc.Observations, []any{jsontsdate.Format(p.BasePeriodStart()), p.SubPeriod(), v})
		}
		prev, first = p.Index(), false
		return nil
	})
	if err != nil {
		return nil, err
	}
	return encode(doc)
}

// MarshalIrregular encodes an irregular series. The end of an observation is
// omitted when the next observation starts there.
func MarshalIrregular(s *series.IrregularSeries) ([]byte, error) {
	doc := irregularDocument{JsonTs: series.TypeIrregular, Observations: [][]any{}}
	obs := s.Observations()
	for i, o := range obs {
		if err := checkSerializable(o.Value); err != nil {
			return nil, err
		}
		tuple := []any{jsontsdate.Format(o.Start), o.Value}
		if i == len(obs)-1 || !obs[i+1].Start.Equal(o.End) {
			tuple = append(tuple, jsontsdate.Format(o.End))
		}
		doc.Observations = append(doc.Observations, tuple)
	}
	return encode(doc)
}

func checkSerializable(v any) error {
	if _, err := json.Marshal(v); err != nil {
		return series.Errorf(series.KindNotSerializable, "Observation value is not JSON-expressible: %v", err)
	}
	return nil
}

func encode(doc any) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, series.Errorf(series.KindNotSerializable, "%v", err)
	}
	return b, nil
}

// Fingerprint returns a stable hash of a document, used as an entity tag.
func Fingerprint(doc []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(doc))
}
