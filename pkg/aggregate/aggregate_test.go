package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leowmjw/go-chronology/pkg/series"
)

func TestAggregate(t *testing.T) {
	values := []float64{10.0, 20.0, 30.0, 40.0}

	tests := []struct {
		name       string
		aggType    Type
		percentile float64
		expected   float64
	}{
		{"sum", Sum, 0, 100.0},
		{"avg", Avg, 0, 25.0},
		{"min", Min, 0, 10.0},
		{"max", Max, 0, 40.0},
		{"count", Count, 0, 4.0},
		{"median", Median, 0, 25.0},
		{"90th percentile", Percentile, 90.0, 37.0},
		{"variance", Variance, 0, 125.0},
		{"stddev", StdDev, 0, math.Sqrt(125.0)},
		{"first", First, 0, 10.0},
		{"last", Last, 0, 40.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Aggregate(values, tt.aggType, tt.percentile)
			assert.Equal(t, tt.aggType, result.Type)
			assert.Equal(t, 4, result.Count)
			assert.InDelta(t, tt.expected, result.Value, 0.001)
		})
	}
}

func TestAggregateEmpty(t *testing.T) {
	result := Aggregate(nil, Avg, 0)
	assert.Equal(t, 0, result.Count)
	assert.Equal(t, 0.0, result.Value)
}

func TestParseType(t *testing.T) {
	got, err := ParseType("median")
	require.NoError(t, err)
	assert.Equal(t, Median, got)

	_, err = ParseType("mode")
	assert.Error(t, err)
}

func TestSeriesRegular(t *testing.T) {
	s, err := series.NewRegular(series.RegularOptions{BasePeriodCount: 1, BasePeriodUnit: "d"})
	require.NoError(t, err)
	p, err := s.Period(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	p.Obs().Set(3).Forward().Obs().Set("4.5").Forward().Obs().Set("n/a").Forward().Obs().Set(nil).Forward().Obs().Set(1.5)

	result, err := Series(s, Sum, 0)
	require.NoError(t, err)
	assert.Equal(t, 9.0, result.Value)
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, 2, result.Skipped)

	result, err = Series(s, Last, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.5, result.Value)
}

func TestSeriesIrregular(t *testing.T) {
	s := series.NewIrregular()
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Add(base, 2.0, base.Add(time.Hour)))
	require.NoError(t, s.Add(base.Add(3*time.Hour), 8.0, base.Add(4*time.Hour)))

	result, err := Series(s, Avg, 0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, result.Value)
	assert.Equal(t, 0, result.Skipped)
}
