package hcl

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/spf13/cast"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/leowmjw/go-chronology/pkg/jsontsdate"
	"github.com/leowmjw/go-chronology/pkg/series"
)

// HCLFile is the top level of a series definition file
type HCLFile struct {
	Series []HCLSeries `hcl:"series,block"`
}

// HCLSeries is one `series "name" { ... }` block
type HCLSeries struct {
	Name         string           `hcl:"name,label"`
	Type         string           `hcl:"type"`
	BasePeriod   *hcl.Attribute   `hcl:"base_period,optional"`
	Anchor       *string          `hcl:"anchor,optional"`
	SubPeriods   *int             `hcl:"sub_periods,optional"`
	Observations []HCLObservation `hcl:"observation,block"`
}

// HCLObservation is an observation block. Regular series use period and
// sub_period, irregular series use start and end.
type HCLObservation struct {
	Period    *string        `hcl:"period,optional"`
	SubPeriod *int           `hcl:"sub_period,optional"`
	Start     *string        `hcl:"start,optional"`
	End       *string        `hcl:"end,optional"`
	Value     *hcl.Attribute `hcl:"value,optional"`
}

// Definition is a decoded series block
type Definition struct {
	Name            string
	Type            string
	BasePeriodCount int
	BasePeriodUnit  string
	Anchor          time.Time
	SubPeriods      int
	Observations    []ObservationDefinition
}

// ObservationDefinition is a decoded observation block
type ObservationDefinition struct {
	Period    time.Time
	SubPeriod int
	Start     time.Time
	End       time.Time
	Value     interface{}
}

// newEvalContext exposes date(), which validates a JSON-TS date string and
// returns it normalized.
func newEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: map[string]function.Function{
			"date": function.New(&function.Spec{
				Params: []function.Parameter{
					{
						Name: "date",
						Type: cty.String,
					},
				},
				Type: function.StaticReturnType(cty.String),
				Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
					t, err := jsontsdate.Parse(args[0].AsString())
					if err != nil {
						return cty.NilVal, err
					}
					return cty.StringVal(jsontsdate.Format(t)), nil
				},
			}),
		},
	}
}

// ParseSeriesFile parses HCL content holding one or more series blocks
func ParseSeriesFile(hclContent string) ([]Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL([]byte(hclContent), "series.hcl")
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %s", diags.Error())
	}
	return decodeSeriesFile(file)
}

func decodeSeriesFile(file *hcl.File) ([]Definition, error) {
	evalCtx := newEvalContext()

	var hclFile HCLFile
	diags := gohcl.DecodeBody(file.Body, evalCtx, &hclFile)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL body: %s", diags.Error())
	}

	seen := make(map[string]bool, len(hclFile.Series))
	defs := make([]Definition, 0, len(hclFile.Series))
	for _, block := range hclFile.Series {
		if seen[block.Name] {
			return nil, fmt.Errorf("series %q is defined more than once", block.Name)
		}
		seen[block.Name] = true

		def, err := convertSeries(block, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", block.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func convertSeries(block HCLSeries, evalCtx *hcl.EvalContext) (Definition, error) {
	def := Definition{
		Name: block.Name,
		Type: strings.ToLower(block.Type),
	}

	switch def.Type {
	case series.TypeRegular:
		if block.BasePeriod == nil {
			return def, fmt.Errorf("base_period is required for regular series")
		}
		val, diags := block.BasePeriod.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return def, fmt.Errorf("failed to evaluate base_period: %s", diags.Error())
		}
		parts, ok := hclValueToInterface(val).([]interface{})
		if !ok || len(parts) != 2 {
			return def, fmt.Errorf("base_period must be a [count, unit] pair")
		}
		count, err := cast.ToIntE(parts[0])
		if err != nil {
			return def, fmt.Errorf("invalid base_period count: %w", err)
		}
		unit, err := cast.ToStringE(parts[1])
		if err != nil {
			return def, fmt.Errorf("invalid base_period unit: %w", err)
		}
		def.BasePeriodCount, def.BasePeriodUnit = count, unit

		if block.Anchor != nil {
			anchor, err := jsontsdate.Parse(*block.Anchor)
			if err != nil {
				return def, fmt.Errorf("invalid anchor: %w", err)
			}
			def.Anchor = anchor
		}
		if block.SubPeriods != nil {
			def.SubPeriods = *block.SubPeriods
		}
	case series.TypeIrregular:
		if block.BasePeriod != nil || block.Anchor != nil || block.SubPeriods != nil {
			return def, fmt.Errorf("irregular series take no base_period, anchor or sub_periods")
		}
	default:
		return def, fmt.Errorf("type must be %q or %q, got %q", series.TypeRegular, series.TypeIrregular, block.Type)
	}

	for i, obs := range block.Observations {
		od, err := convertObservation(def.Type, obs, evalCtx)
		if err != nil {
			return def, fmt.Errorf("observation %d: %w", i+1, err)
		}
		def.Observations = append(def.Observations, od)
	}
	return def, nil
}

func convertObservation(kind string, obs HCLObservation, evalCtx *hcl.EvalContext) (ObservationDefinition, error) {
	var od ObservationDefinition
	var err error

	if kind == series.TypeRegular {
		if obs.Period == nil || obs.Start != nil || obs.End != nil {
			return od, fmt.Errorf("regular observations take period and optional sub_period")
		}
		if od.Period, err = jsontsdate.Parse(*obs.Period); err != nil {
			return od, fmt.Errorf("invalid period: %w", err)
		}
		od.SubPeriod = 1
		if obs.SubPeriod != nil {
			od.SubPeriod = *obs.SubPeriod
		}
	} else {
		if obs.Start == nil || obs.End == nil || obs.Period != nil || obs.SubPeriod != nil {
			return od, fmt.Errorf("irregular observations take start and end")
		}
		if od.Start, err = jsontsdate.Parse(*obs.Start); err != nil {
			return od, fmt.Errorf("invalid start: %w", err)
		}
		if od.End, err = jsontsdate.Parse(*obs.End); err != nil {
			return od, fmt.Errorf("invalid end: %w", err)
		}
	}

	if obs.Value != nil {
		val, diags := obs.Value.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return od, fmt.Errorf("failed to evaluate value: %s", diags.Error())
		}
		od.Value = hclValueToInterface(val)
	}
	return od, nil
}

// Build constructs the series through the public series API, so every
// validation rule of the library applies.
func (d Definition) Build() (series.Series, error) {
	if d.Type == series.TypeIrregular {
		s := series.NewIrregular()
		for _, o := range d.Observations {
			if err := s.Add(o.Start, o.Value, o.End); err != nil {
				return nil, err
			}
		}
		return s, nil
	}

	s, err := series.NewRegular(series.RegularOptions{
		BasePeriodCount: d.BasePeriodCount,
		BasePeriodUnit:  d.BasePeriodUnit,
		Anchor:          d.Anchor,
		SubPeriods:      d.SubPeriods,
	})
	if err != nil {
		return nil, err
	}
	for _, o := range d.Observations {
		p, err := s.PeriodAt(o.Period, o.SubPeriod)
		if err != nil {
			return nil, err
		}
		if p.Obs().Exists() {
			return nil, series.Errorf(series.KindCollision, "Period %s/%d is observed more than once.", jsontsdate.Format(o.Period), o.SubPeriod)
		}
		p.Obs().Set(o.Value)
	}
	return s, nil
}

// hclValueToMap converts a cty.Value (HCL's type system) to a Go map[string]interface{}
func hclValueToMap(val cty.Value) map[string]interface{} {
	if val.IsNull() {
		return nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil
	}

	result := make(map[string]interface{})
	for key, attr := range val.AsValueMap() {
		result[key] = hclValueToInterface(attr)
	}
	return result
}

// hclValueToInterface converts a cty.Value to the shapes encoding/json produces
func hclValueToInterface(val cty.Value) interface{} {
	if val.IsNull() || !val.IsKnown() {
		return nil
	}

	switch {
	case val.Type() == cty.String:
		return val.AsString()
	case val.Type() == cty.Number:
		// Convert to float64 for consistency with JSON-TS documents
		f, _ := val.AsBigFloat().Float64()
		return f
	case val.Type() == cty.Bool:
		return val.True()
	case val.Type().IsObjectType() || val.Type().IsMapType():
		return hclValueToMap(val)
	case val.Type().IsListType() || val.Type().IsTupleType() || val.Type().IsSetType():
		values := val.AsValueSlice()
		result := make([]interface{}, len(values))
		for i, v := range values {
			result[i] = hclValueToInterface(v)
		}
		return result
	default:
		return val.GoString()
	}
}
