package jsonts

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/leowmjw/go-chronology/pkg/calendar"
	"github.com/leowmjw/go-chronology/pkg/jsontsdate"
	"github.com/leowmjw/go-chronology/pkg/series"
)

type config struct {
	boundaries series.BoundaryFunc
}

// Option adjusts how documents are decoded.
type Option func(*config)

// WithBoundaries installs a sub-period boundary function on decoded regular
// series.
func WithBoundaries(fn series.BoundaryFunc) Option {
	return func(c *config) { c.boundaries = fn }
}

// Unmarshal decodes a JSON-TS document into a *series.RegularSeries or
// *series.IrregularSeries.
func Unmarshal(data []byte, opts ...Option) (series.Series, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	if !json.Valid(data) {
		return nil, invalid("Invalid JSON.")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, invalid("Must be an object.")
	}

	var kind string
	if raw, ok := obj["JsonTs"]; !ok || json.Unmarshal(raw, &kind) != nil {
		return nil, invalid("JsonTs parameter must be a string.")
	}
	kind = strings.ToLower(kind)
	if kind != series.TypeRegular && kind != series.TypeIrregular {
		return nil, invalid("JsonTs parameter must be 'regular' or 'irregular'.")
	}

	observations, ok := array(obj["Observations"])
	if !ok {
		return nil, invalid("Observations parameter must be an array.")
	}

	if kind == series.TypeRegular {
		return unmarshalRegular(obj, observations, cfg)
	}
	return unmarshalIrregular(observations)
}

// UnmarshalRegular decodes a document that must describe a regular series.
func UnmarshalRegular(data []byte, opts ...Option) (*series.RegularSeries, error) {
	s, err := Unmarshal(data, opts...)
	if err != nil {
		return nil, err
	}
	rs, ok := s.(*series.RegularSeries)
	if !ok {
		return nil, invalid("Expected a regular series.")
	}
	return rs, nil
}

// UnmarshalIrregular decodes a document that must describe an irregular series.
func UnmarshalIrregular(data []byte) (*series.IrregularSeries, error) {
	s, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	is, ok := s.(*series.IrregularSeries)
	if !ok {
		return nil, invalid("Expected an irregular series.")
	}
	return is, nil
}

func invalid(msg string) error {
	return series.Errorf(series.KindInvalidJSONTS, "%s", msg)
}

func array(raw json.RawMessage) ([]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func integer(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func value(raw json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, invalid("Invalid observation value.")
	}
	return v, nil
}

// date parses a JSON-TS date element; what names it in error messages.
func date(raw json.RawMessage, what string) (time.Time, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return time.Time{}, invalid("Invalid " + what + ".")
	}
	t, err := jsontsdate.Parse(str)
	if errors.Is(err, jsontsdate.ErrNotSupported) {
		return time.Time{}, series.Errorf(series.KindNotSupported, "%s specified beyond millisecond precision.", capitalize(what))
	}
	if err != nil {
		return time.Time{}, invalid("Invalid " + what + ".")
	}
	return t, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Regular observation tuples.
type (
	// [date, subPeriod, value]
	explicitSubPeriod struct {
		base      time.Time
		subPeriod int
		value     any
	}
	// [date, value], only when there is one sub-period
	explicitPeriod struct {
		base  time.Time
		value any
	}
	// [value], the period after the previous observation
	impliedNext struct {
		value any
	}
)

func parseRegularTuple(raw json.RawMessage, subPeriods int) (any, error) {
	elems, ok := array(raw)
	if !ok || len(elems) < 1 || len(elems) > 3 {
		return nil, invalid("Invalid observation.")
	}
	switch len(elems) {
	case 3:
		base, err := date(elems[0], "base period date")
		if err != nil {
			return nil, err
		}
		sp, ok := integer(elems[1])
		if !ok || sp < 1 || sp > subPeriods {
			return nil, invalid("Invalid sub period number.")
		}
		v, err := value(elems[2])
		if err != nil {
			return nil, err
		}
		return explicitSubPeriod{base: base, subPeriod: sp, value: v}, nil
	case 2:
		if subPeriods != 1 {
			return nil, invalid("Observation must specify sub period.")
		}
		base, err := date(elems[0], "base period date")
		if err != nil {
			return nil, err
		}
		v, err := value(elems[1])
		if err != nil {
			return nil, err
		}
		return explicitPeriod{base: base, value: v}, nil
	}
	v, err := value(elems[0])
	if err != nil {
		return nil, err
	}
	return impliedNext{value: v}, nil
}

func unmarshalRegular(obj map[string]json.RawMessage, observations []json.RawMessage, cfg config) (*series.RegularSeries, error) {
	bp, ok := array(obj["BasePeriod"])
	if !ok || len(bp) != 2 {
		return nil, invalid("BasePeriod parameter must be an array of length 2.")
	}
	count, ok := integer(bp[0])
	if !ok || count < 1 {
		return nil, invalid("Invalid BasePeriod number.")
	}
	var unitCode string
	if err := json.Unmarshal(bp[1], &unitCode); err != nil || !calendar.Unit(unitCode).Valid() {
		return nil, invalid("Invalid BasePeriodType.")
	}
	if !calendar.Unit(unitCode).Supported() {
		return nil, series.Errorf(series.KindNotSupported, "Sub-millisecond base periods are not supported.")
	}

	opts := series.RegularOptions{
		BasePeriodCount:     count,
		BasePeriodUnit:      unitCode,
		SubPeriodBoundaries: cfg.boundaries,
	}
	if raw, ok := obj["Anchor"]; ok {
		anchor, err := date(raw, "anchor")
		if err != nil {
			if series.KindOf(err) == series.KindNotSupported {
				return nil, series.Errorf(series.KindNotSupported, "Anchor specified beyond millisecond precision.")
			}
			return nil, invalid("Invalid Anchor parameter.")
		}
		opts.Anchor = anchor
	}
	opts.SubPeriods = 1
	if raw, ok := obj["SubPeriods"]; ok {
		n, ok := integer(raw)
		if !ok || n < 1 {
			return nil, invalid("Invalid SubPeriods parameter.")
		}
		opts.SubPeriods = n
	}

	rs, err := series.NewRegular(opts)
	if err != nil {
		return nil, err
	}

	for i, raw := range observations {
		tuple, err := parseRegularTuple(raw, opts.SubPeriods)
		if err != nil {
			return nil, err
		}

		var target *series.RegularPeriod
		var v any
		switch tuple := tuple.(type) {
		case explicitSubPeriod:
			if target, err = rs.PeriodAt(tuple.base, tuple.subPeriod); err != nil {
				return nil, invalid("Invalid sub period number.")
			}
			v = tuple.value
		case explicitPeriod:
			if target, err = rs.PeriodAt(tuple.base, 1); err != nil {
				return nil, invalid("Invalid base period date.")
			}
			v = tuple.value
		case impliedNext:
			if i == 0 {
				return nil, invalid("First observation must specify an explicit period.")
			}
			last, err := rs.Last()
			if err != nil {
				return nil, err
			}
			target, v = last.Forward(), tuple.value
		}

		if last, err := rs.Last(); err == nil && target.Compare(last) <= 0 {
			return nil, invalid("Observation collision or observations not in chronological order.")
		}
		target.Obs().Set(v)
	}
	return rs, nil
}

// Irregular observation tuples.
type (
	// [start, value, end]
	explicitSpan struct {
		start time.Time
		value any
		end   time.Time
	}
	// [start, value], ending where the next observation starts
	impliedEnd struct {
		start time.Time
		value any
	}
)

func parseIrregularTuple(raw json.RawMessage) (any, error) {
	elems, ok := array(raw)
	if !ok || len(elems) < 2 || len(elems) > 3 {
		return nil, invalid("Invalid observation.")
	}
	start, err := date(elems[0], "start date")
	if err != nil {
		return nil, err
	}
	v, err := value(elems[1])
	if err != nil {
		return nil, err
	}
	if len(elems) == 2 {
		return impliedEnd{start: start, value: v}, nil
	}
	end, err := date(elems[2], "end date")
	if err != nil {
		return nil, err
	}
	return explicitSpan{start: start, value: v, end: end}, nil
}

func unmarshalIrregular(observations []json.RawMessage) (*series.IrregularSeries, error) {
	is := series.NewIrregular()

	// walk backwards so the start of the following observation is known
	for i := len(observations) - 1; i >= 0; i-- {
		tuple, err := parseIrregularTuple(observations[i])
		if err != nil {
			return nil, err
		}

		var next time.Time
		first, err := is.First()
		hasNext := err == nil
		if hasNext {
			next, _ = first.Start()
		}

		switch tuple := tuple.(type) {
		case impliedEnd:
			if !hasNext {
				return nil, invalid("End date required for final observation.")
			}
			if !tuple.start.Before(next) {
				return nil, invalid("Observation collision or observations not in chronological order.")
			}
			if err := is.Add(tuple.start, tuple.value, next); err != nil {
				return nil, err
			}
		case explicitSpan:
			if !tuple.start.Before(tuple.end) {
				return nil, invalid("Observation end date must be strictly later than start date.")
			}
			if hasNext && tuple.end.After(next) {
				return nil, invalid("Observation collision or observations not in chronological order.")
			}
			if err := is.Add(tuple.start, tuple.value, tuple.end); err != nil {
				return nil, err
			}
		}
	}
	return is, nil
}
