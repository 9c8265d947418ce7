package hcl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/leowmjw/go-chronology/pkg/series"
)

const salesAndOutages = `
# Monthly sales, split into two half-months
series "sales" {
	type        = "regular"
	base_period = [1, "m"]
	anchor      = date("2000-01Z")
	sub_periods = 2

	observation {
		period     = date("2000-01Z")
		value      = 12.5
	}
	observation {
		period     = date("2000-01-20Z")
		sub_period = 2
		value      = 7
	}
}

series "outages" {
	type = "irregular"

	observation {
		start = date("2020-01-01T10:00Z")
		end   = date("2020-01-01T11:00Z")
		value = { cause = "power" }
	}
	observation {
		start = "2020-01-02T00:00Z"
		end   = "2020-01-03Z"
		value = "network"
	}
}
`

func TestParseSeriesFile(t *testing.T) {
	defs, err := ParseSeriesFile(salesAndOutages)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	sales := defs[0]
	assert.Equal(t, "sales", sales.Name)
	assert.Equal(t, series.TypeRegular, sales.Type)
	assert.Equal(t, 1, sales.BasePeriodCount)
	assert.Equal(t, "m", sales.BasePeriodUnit)
	assert.Equal(t, 2, sales.SubPeriods)
	assert.True(t, sales.Anchor.Equal(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.Len(t, sales.Observations, 2)
	assert.Equal(t, 1, sales.Observations[0].SubPeriod)
	assert.Equal(t, 12.5, sales.Observations[0].Value)
	assert.Equal(t, 2, sales.Observations[1].SubPeriod)
	assert.Equal(t, 7.0, sales.Observations[1].Value)

	outages := defs[1]
	assert.Equal(t, series.TypeIrregular, outages.Type)
	require.Len(t, outages.Observations, 2)
	assert.Equal(t, map[string]interface{}{"cause": "power"}, outages.Observations[0].Value)
	assert.True(t, outages.Observations[0].Start.Equal(time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, outages.Observations[1].End.Equal(time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)))
}

func TestDefinitionBuild(t *testing.T) {
	defs, err := ParseSeriesFile(salesAndOutages)
	require.NoError(t, err)

	s, err := defs[0].Build()
	require.NoError(t, err)
	rs, ok := s.(*series.RegularSeries)
	require.True(t, ok)
	assert.Equal(t, 2, rs.Count())

	last, err := rs.Last()
	require.NoError(t, err)
	assert.Equal(t, 2, last.SubPeriod())
	v, err := last.Obs().Value()
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	s, err = defs[1].Build()
	require.NoError(t, err)
	is, ok := s.(*series.IrregularSeries)
	require.True(t, ok)
	assert.Equal(t, 2, is.Count())
	assert.Equal(t, 1, is.Locate(time.Date(2020, 1, 2, 12, 0, 0, 0, time.UTC)).At)
}

func TestParseSeriesFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "syntax error",
			content: `series "a" {`,
			errMsg:  "failed to parse HCL",
		},
		{
			name:    "unknown type",
			content: `series "a" { type = "sparse" }`,
			errMsg:  `type must be "regular" or "irregular"`,
		},
		{
			name:    "missing base period",
			content: `series "a" { type = "regular" }`,
			errMsg:  "base_period is required",
		},
		{
			name:    "base period shape",
			content: `series "a" { type = "regular"` + "\n" + `base_period = [1] }`,
			errMsg:  "[count, unit] pair",
		},
		{
			name:    "bad date",
			content: `series "a" { type = "regular"` + "\n" + `base_period = [1, "d"]` + "\n" + `anchor = date("2000-13Z") }`,
			errMsg:  "failed to decode HCL body",
		},
		{
			name: "irregular with base period",
			content: `series "a" {
				type        = "irregular"
				base_period = [1, "d"]
			}`,
			errMsg: "irregular series take no base_period",
		},
		{
			name: "regular observation with start",
			content: `series "a" {
				type        = "regular"
				base_period = [1, "d"]
				observation {
					start = "2000Z"
					value = 1
				}
			}`,
			errMsg: "observation 1",
		},
		{
			name: "irregular observation without end",
			content: `series "a" {
				type = "irregular"
				observation {
					start = "2000Z"
					value = 1
				}
			}`,
			errMsg: "irregular observations take start and end",
		},
		{
			name: "duplicate names",
			content: `
				series "a" { type = "irregular" }
				series "a" { type = "irregular" }
			`,
			errMsg: "defined more than once",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeriesFile(tt.content)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDefinitionBuildErrors(t *testing.T) {
	t.Run("unknown unit", func(t *testing.T) {
		defs, err := ParseSeriesFile(`series "a" {
			type        = "regular"
			base_period = [1, "fortnight"]
		}`)
		require.NoError(t, err)
		_, err = defs[0].Build()
		assert.ErrorIs(t, err, series.ErrInvalidArgument)
	})

	t.Run("sub period out of range", func(t *testing.T) {
		defs, err := ParseSeriesFile(`series "a" {
			type        = "regular"
			base_period = [1, "d"]
			observation {
				period     = "2000Z"
				sub_period = 2
				value      = 1
			}
		}`)
		require.NoError(t, err)
		_, err = defs[0].Build()
		assert.ErrorIs(t, err, series.ErrInvalidArgument)
	})

	t.Run("repeated period", func(t *testing.T) {
		defs, err := ParseSeriesFile(`series "a" {
			type        = "regular"
			base_period = [1, "d"]
			observation {
				period = "2000-01-01T06Z"
				value  = 1
			}
			observation {
				period = "2000-01-01T18Z"
				value  = 2
			}
		}`)
		require.NoError(t, err)
		_, err = defs[0].Build()
		assert.ErrorIs(t, err, series.ErrCollision)
	})

	t.Run("overlapping spans", func(t *testing.T) {
		defs, err := ParseSeriesFile(`series "a" {
			type = "irregular"
			observation {
				start = "2000Z"
				end   = "2002Z"
				value = 1
			}
			observation {
				start = "2001Z"
				end   = "2003Z"
				value = 2
			}
		}`)
		require.NoError(t, err)
		_, err = defs[0].Build()
		assert.ErrorIs(t, err, series.ErrCollision)
	})
}

func TestHCLValueToInterface(t *testing.T) {
	tests := []struct {
		name     string
		value    cty.Value
		expected interface{}
	}{
		{"null", cty.NullVal(cty.String), nil},
		{"string", cty.StringVal("x"), "x"},
		{"number", cty.NumberIntVal(3), 3.0},
		{"bool", cty.True, true},
		{"tuple", cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.StringVal("m")}), []interface{}{1.0, "m"}},
		{"set", cty.SetVal([]cty.Value{cty.StringVal("a")}), []interface{}{"a"}},
		{"object", cty.ObjectVal(map[string]cty.Value{"k": cty.StringVal("v")}), map[string]interface{}{"k": "v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, hclValueToInterface(tt.value))
		})
	}
}
