package series

import (
	"time"

	"github.com/leowmjw/go-chronology/pkg/search"
)

// None marks an absent neighbour in a Location.
const None = -1

// Observation is a value held over the half-open span [Start, End).
type Observation struct {
	Start time.Time
	Value any
	End   time.Time
}

// Location describes an instant relative to the observations of an irregular
// series: At is the observation containing it, Before and After the nearest
// observations on either side. Absent entries are None.
type Location struct {
	Before int
	At     int
	After  int
}

// IrregularSeries holds non-overlapping observations of arbitrary length,
// ordered by start. It is not safe for concurrent use.
type IrregularSeries struct {
	obs []Observation
}

// NewIrregular returns an empty irregular series.
func NewIrregular() *IrregularSeries {
	return &IrregularSeries{}
}

// Type returns "irregular".
func (s *IrregularSeries) Type() string { return TypeIrregular }

// Count returns the number of observations.
func (s *IrregularSeries) Count() int { return len(s.obs) }

// Observations returns a copy of the observations in order.
func (s *IrregularSeries) Observations() []Observation {
	return append([]Observation(nil), s.obs...)
}

// Reset removes every observation.
func (s *IrregularSeries) Reset() { s.obs = nil }

// Locate places t relative to the observations.
func (s *IrregularSeries) Locate(t time.Time) Location {
	pos, found := search.Slice(s.obs, func(o Observation) int {
		switch {
		case t.Before(o.Start):
			return 1
		case !t.Before(o.End):
			return -1
		}
		return 0
	})
	loc := Location{Before: pos - 1, At: None, After: pos}
	if found {
		loc.At = pos
		loc.After = pos + 1
	}
	if loc.After >= len(s.obs) {
		loc.After = None
	}
	if loc.Before < 0 {
		loc.Before = None
	}
	return loc
}

// Period returns the handle of the period containing t: an observation, a
// gap between observations, or an edge before the first or after the last.
func (s *IrregularSeries) Period(t time.Time) *IrregularPeriod {
	return &IrregularPeriod{series: s, date: t}
}

// startIndex is the position of the first observation starting at or after t.
func (s *IrregularSeries) startIndex(t time.Time) int {
	pos, _ := search.Slice(s.obs, func(o Observation) int { return o.Start.Compare(t) })
	return pos
}

// Add records value over [start, end). It fails with COLLISION if the span
// overlaps an existing observation.
func (s *IrregularSeries) Add(start time.Time, value any, end time.Time) error {
	if !start.Before(end) {
		return Errorf(KindInvalidArgument, "End date must be strictly after start date.")
	}
	loc := s.Locate(start)
	if loc.At != None || loc.After != None && s.obs[loc.After].Start.Before(end) {
		return Errorf(KindCollision, "The observation overlaps an existing observation.")
	}
	o := Observation{Start: start, Value: value, End: end}
	if loc.After == None {
		s.obs = append(s.obs, o)
		return nil
	}
	s.obs = append(s.obs, Observation{})
	copy(s.obs[loc.After+1:], s.obs[loc.After:])
	s.obs[loc.After] = o
	return nil
}

// Set records value over [start, end), first clearing anything there.
func (s *IrregularSeries) Set(start time.Time, value any, end time.Time) error {
	if err := s.Clear(start, end); err != nil {
		return err
	}
	return s.Add(start, value, end)
}

// Clear removes observations over [start, end). Observations straddling
// either bound are split and only the covered part is removed.
func (s *IrregularSeries) Clear(start, end time.Time) error {
	if !start.Before(end) {
		return Errorf(KindInvalidArgument, "Start date must be strictly before end date.")
	}
	if s.Locate(start).At != None {
		if err := s.Split(start); err != nil {
			return err
		}
	}
	if s.Locate(end).At != None {
		if err := s.Split(end); err != nil {
			return err
		}
	}
	lo, hi := s.startIndex(start), s.startIndex(end)
	s.obs = append(s.obs[:lo], s.obs[hi:]...)
	return nil
}

// Split divides the observation containing t into [start, t) and [t, end),
// both carrying the original value. Splitting at an observation's start is a
// no-op.
func (s *IrregularSeries) Split(t time.Time) error {
	loc := s.Locate(t)
	if loc.At == None {
		return Errorf(KindMissing, "There is no observation at the specified date.")
	}
	o := s.obs[loc.At]
	if o.Start.Equal(t) {
		return nil
	}
	s.obs = append(s.obs, Observation{})
	copy(s.obs[loc.At+1:], s.obs[loc.At:])
	s.obs[loc.At] = Observation{Start: o.Start, Value: o.Value, End: t}
	s.obs[loc.At+1] = Observation{Start: t, Value: o.Value, End: o.End}
	return nil
}

// First returns the period of the earliest observation.
func (s *IrregularSeries) First() (*IrregularPeriod, error) {
	if len(s.obs) == 0 {
		return nil, Errorf(KindMissing, "The series has no observations.")
	}
	return s.Period(s.obs[0].Start), nil
}

// Last returns the period of the latest observation.
func (s *IrregularSeries) Last() (*IrregularPeriod, error) {
	if len(s.obs) == 0 {
		return nil, Errorf(KindMissing, "The series has no observations.")
	}
	return s.Period(s.obs[len(s.obs)-1].Start), nil
}

// Each calls fn for every observation period in chronological order,
// re-evaluating navigation after each call.
func (s *IrregularSeries) Each(fn func(p *IrregularPeriod) error) error {
	first, err := s.First()
	if err != nil {
		return nil
	}
	return walk(first, (*IrregularPeriod).nextObservation, fn)
}

// EachPeriod calls fn for every observation and every gap between the first
// and last observations.
func (s *IrregularSeries) EachPeriod(fn func(p *IrregularPeriod) error) error {
	first, err := s.First()
	if err != nil {
		return nil
	}
	return walk(first, (*IrregularPeriod).nextPeriod, fn)
}

// Map returns a series with the same spans whose values are fn of the
// observed values.
func (s *IrregularSeries) Map(fn func(v any) (any, error)) (*IrregularSeries, error) {
	out := NewIrregular()
	err := s.Each(func(p *IrregularPeriod) error {
		o := s.obs[p.Locate().At]
		v, err := fn(o.Value)
		if err != nil {
			return err
		}
		out.obs = append(out.obs, Observation{Start: o.Start, Value: v, End: o.End})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Filter returns a series holding the observations for which fn is true.
func (s *IrregularSeries) Filter(fn func(p *IrregularPeriod) (bool, error)) (*IrregularSeries, error) {
	out := NewIrregular()
	err := s.Each(func(p *IrregularPeriod) error {
		o := s.obs[p.Locate().At]
		keep, err := fn(p)
		if err != nil {
			return err
		}
		if keep {
			out.obs = append(out.obs, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubSeries returns the observations intersecting [start, end), truncated
// to that range.
func (s *IrregularSeries) SubSeries(start, end time.Time) (*IrregularSeries, error) {
	if !start.Before(end) {
		return nil, Errorf(KindInvalidArgument, "End date must be strictly after start date.")
	}
	out := NewIrregular()
	loc := s.Locate(start)
	i := loc.At
	if i == None {
		i = loc.After
	}
	if i == None {
		return out, nil
	}
	for ; i < len(s.obs) && s.obs[i].Start.Before(end); i++ {
		o := s.obs[i]
		if o.Start.Before(start) {
			o.Start = start
		}
		if o.End.After(end) {
			o.End = end
		}
		out.obs = append(out.obs, o)
	}
	return out, nil
}

// Overlay returns a copy of s with every observation of other set over it.
func (s *IrregularSeries) Overlay(other *IrregularSeries) (*IrregularSeries, error) {
	out := s.Clone()
	for _, o := range other.obs {
		if err := out.Set(o.Start, o.Value, o.End); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Clone returns an independent copy. Values are copied shallowly.
func (s *IrregularSeries) Clone() *IrregularSeries {
	return &IrregularSeries{obs: append([]Observation(nil), s.obs...)}
}
