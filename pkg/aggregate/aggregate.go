package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cast"

	"github.com/leowmjw/go-chronology/pkg/series"
)

// Type names an aggregation over observation values
type Type string

const (
	Sum        Type = "sum"
	Avg        Type = "avg"
	Min        Type = "min"
	Max        Type = "max"
	Count      Type = "count"
	StdDev     Type = "stddev"
	Variance   Type = "variance"
	Percentile Type = "percentile"
	Median     Type = "median"
	First      Type = "first"
	Last       Type = "last"
)

// Types lists the supported aggregations
var Types = []Type{Sum, Avg, Min, Max, Count, StdDev, Variance, Percentile, Median, First, Last}

// ParseType validates an aggregation name
func ParseType(name string) (Type, error) {
	for _, t := range Types {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown aggregation type %q", name)
}

// Result is the outcome of an aggregation
type Result struct {
	Type    Type    `json:"type"`
	Value   float64 `json:"value"`
	Count   int     `json:"count"`
	Skipped int     `json:"skipped,omitempty"`
}

// Aggregate reduces values, given in chronological order, to a single number
func Aggregate(values []float64, aggType Type, percentile float64) Result {
	result := Result{Type: aggType, Count: len(values)}
	if len(values) == 0 {
		return result
	}

	switch aggType {
	case Sum:
		result.Value = sumValues(values)
	case Avg:
		result.Value = avgValues(values)
	case Min:
		result.Value = minValues(values)
	case Max:
		result.Value = maxValues(values)
	case Count:
		result.Value = float64(len(values))
	case StdDev:
		result.Value = math.Sqrt(varianceValues(values))
	case Variance:
		result.Value = varianceValues(values)
	case Percentile:
		result.Value = percentileValues(values, percentile)
	case Median:
		result.Value = percentileValues(values, 50.0)
	case First:
		result.Value = values[0]
	case Last:
		result.Value = values[len(values)-1]
	}

	return result
}

// NumericValues collects the observation values of s that convert to numbers,
// in chronological order. skipped counts the values that did not.
func NumericValues(s series.Series) (values []float64, skipped int, err error) {
	collect := func(v any, verr error) error {
		if verr != nil {
			return verr
		}
		if v == nil {
			skipped++
			return nil
		}
		f, cerr := cast.ToFloat64E(v)
		if cerr != nil || math.IsNaN(f) {
			skipped++
			return nil
		}
		values = append(values, f)
		return nil
	}

	switch s := s.(type) {
	case *series.RegularSeries:
		err = s.Each(func(p *series.RegularPeriod) error {
			return collect(p.Obs().Value())
		})
	case *series.IrregularSeries:
		err = s.Each(func(p *series.IrregularPeriod) error {
			return collect(p.Obs().Value())
		})
	default:
		err = fmt.Errorf("unsupported series type %T", s)
	}
	return values, skipped, err
}

// Series aggregates the numeric observations of s
func Series(s series.Series, aggType Type, percentile float64) (Result, error) {
	values, skipped, err := NumericValues(s)
	if err != nil {
		return Result{}, err
	}
	result := Aggregate(values, aggType, percentile)
	result.Skipped = skipped
	return result, nil
}

// Helper functions for calculations

func sumValues(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

func avgValues(values []float64) float64 {
	return sumValues(values) / float64(len(values))
}

func minValues(values []float64) float64 {
	lowest := values[0]
	for _, v := range values[1:] {
		lowest = math.Min(lowest, v)
	}
	return lowest
}

func maxValues(values []float64) float64 {
	highest := values[0]
	for _, v := range values[1:] {
		highest = math.Max(highest, v)
	}
	return highest
}

func varianceValues(values []float64) float64 {
	avg := avgValues(values)
	sumSquaredDiff := 0.0
	for _, v := range values {
		diff := v - avg
		sumSquaredDiff += diff * diff
	}
	return sumSquaredDiff / float64(len(values))
}

func percentileValues(values []float64, percentile float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if percentile <= 0 {
		return sorted[0]
	}
	if percentile >= 100 {
		return sorted[len(sorted)-1]
	}

	// linear interpolation between closest ranks
	index := (percentile / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	if lower+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[lower+1]*weight
}
