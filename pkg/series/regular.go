package series

import (
	"math"
	"time"

	"github.com/leowmjw/go-chronology/pkg/calendar"
	"github.com/leowmjw/go-chronology/pkg/search"
)

// TypeRegular and TypeIrregular are the values returned by Type.
const (
	TypeRegular   = "regular"
	TypeIrregular = "irregular"
)

// maxTestedSubPeriods bounds how many sub-periods per base period are
// checked when a boundary function is installed.
const maxTestedSubPeriods = 20

var (
	defaultAnchor     = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	defaultWeekAnchor = time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)
)

// SubPeriodBoundaries is the half-open span of one sub-period. Start and End
// are both nil when the sub-period cannot be represented at millisecond
// precision.
type SubPeriodBoundaries struct {
	Start *time.Time
	End   *time.Time
}

// BoundaryFunc returns the span of a 1-based sub-period within the base
// period [baseStart, baseEnd). It must be deterministic.
type BoundaryFunc func(baseStart, baseEnd time.Time, subPeriod int) SubPeriodBoundaries

// UniformBoundaries splits every base period into n sub-periods of equal
// length, each boundary rounded to the nearest millisecond.
func UniformBoundaries(n int) BoundaryFunc {
	return func(baseStart, baseEnd time.Time, subPeriod int) SubPeriodBoundaries {
		span := float64(baseEnd.UnixMilli()-baseStart.UnixMilli()) / float64(n)
		start := calendar.AddMillis(baseStart, int64(math.Round(float64(subPeriod-1)*span)))
		end := calendar.AddMillis(baseStart, int64(math.Round(float64(subPeriod)*span)))
		return SubPeriodBoundaries{Start: &start, End: &end}
	}
}

// RegularOptions configures a regular series.
type RegularOptions struct {
	// BasePeriodCount and BasePeriodUnit size each base period, e.g. 3 and "m".
	BasePeriodCount int
	BasePeriodUnit  string
	// Anchor is the start of base period 0. The zero value selects
	// 2000-01-03 for weekly series and 2000-01-01 otherwise.
	Anchor time.Time
	// SubPeriods is the number of sub-periods per base period; zero means 1.
	SubPeriods int
	// SubPeriodBoundaries overrides the uniform split.
	SubPeriodBoundaries BoundaryFunc
}

type periodKey struct {
	base int
	sub  int
}

func (k periodKey) compare(o periodKey) int {
	switch {
	case k.base < o.base:
		return -1
	case k.base > o.base:
		return 1
	case k.sub < o.sub:
		return -1
	case k.sub > o.sub:
		return 1
	}
	return 0
}

// RegularSeries holds observations on a grid of base periods and sub-periods.
// It is not safe for concurrent use.
type RegularSeries struct {
	opts       RegularOptions
	base       calendar.BasePeriod
	boundaries BoundaryFunc
	custom     bool

	obs   map[periodKey]any
	index []periodKey
}

// NewRegular validates opts and returns an empty regular series.
func NewRegular(opts RegularOptions) (*RegularSeries, error) {
	if opts.BasePeriodCount < 1 {
		return nil, Errorf(KindInvalidArgument, "Invalid options.basePeriod.")
	}
	unit, err := calendar.ParseUnit(opts.BasePeriodUnit)
	if err != nil {
		return nil, Errorf(KindInvalidArgument, "Invalid options.basePeriod.")
	}
	if opts.SubPeriods < 0 {
		return nil, Errorf(KindInvalidArgument, "Invalid options.subPeriods.")
	}
	if opts.SubPeriods == 0 {
		opts.SubPeriods = 1
	}
	if opts.Anchor.IsZero() {
		opts.Anchor = defaultAnchor
		if unit == calendar.Week {
			opts.Anchor = defaultWeekAnchor
		}
	}
	opts.Anchor = opts.Anchor.UTC()
	opts.BasePeriodUnit = string(unit)

	base, err := calendar.NewBasePeriod(opts.BasePeriodCount, unit, opts.Anchor)
	if err != nil {
		return nil, Errorf(KindInvalidArgument, "Invalid options.basePeriod.")
	}

	s := &RegularSeries{
		opts:       opts,
		base:       base,
		boundaries: opts.SubPeriodBoundaries,
		custom:     opts.SubPeriodBoundaries != nil,
		obs:        make(map[periodKey]any),
	}
	if s.boundaries == nil {
		s.boundaries = UniformBoundaries(opts.SubPeriods)
	} else if err := s.testBoundaries(); err != nil {
		return nil, err
	}
	return s, nil
}

// empty returns a series with the same configuration and no observations.
func (s *RegularSeries) empty() *RegularSeries {
	return &RegularSeries{
		opts:       s.opts,
		base:       s.base,
		boundaries: s.boundaries,
		custom:     s.custom,
		obs:        make(map[periodKey]any),
	}
}

// testBoundaries samples a user-supplied boundary function around the anchor
// and rejects results that are malformed or out of order.
func (s *RegularSeries) testBoundaries() error {
	n := s.opts.SubPeriods
	var tested []int
	if n <= maxTestedSubPeriods {
		for i := 1; i <= n; i++ {
			tested = append(tested, i)
		}
	} else {
		for i := 1; i <= maxTestedSubPeriods/2; i++ {
			tested = append(tested, i)
		}
		for i := n - maxTestedSubPeriods/2 + 1; i <= n; i++ {
			tested = append(tested, i)
		}
	}

	for bpi := -3; bpi < 3; bpi++ {
		baseStart, baseEnd := s.base.Boundaries(int64(bpi))
		earliest := baseStart
		for _, sp := range tested {
			b := s.subPeriodBoundaries(bpi, sp)
			if (b.Start == nil) != (b.End == nil) {
				return Errorf(KindInvalidArgument, "Invalid value returned by options.subPeriodBoundaries.")
			}
			if b.Start == nil {
				continue
			}
			if b.Start.Before(earliest) || !b.Start.Before(baseEnd) {
				return Errorf(KindInvalidArgument, "Invalid start date returned by options.subPeriodBoundaries.")
			}
			if !b.End.After(*b.Start) || b.End.After(baseEnd) {
				return Errorf(KindInvalidArgument, "Invalid end date returned by options.subPeriodBoundaries.")
			}
			earliest = *b.End
		}
	}
	return nil
}

// subPeriodBoundaries returns nil boundaries when sub-periods would be
// shorter than a millisecond.
func (s *RegularSeries) subPeriodBoundaries(bpi, sp int) SubPeriodBoundaries {
	if float64(s.base.MinMillis())/float64(s.opts.SubPeriods) < 1 {
		return SubPeriodBoundaries{}
	}
	baseStart, baseEnd := s.base.Boundaries(int64(bpi))
	return s.boundaries(baseStart, baseEnd, sp)
}

// subPeriodOf finds the sub-period of base period bpi containing t.
func (s *RegularSeries) subPeriodOf(bpi int, t time.Time) (int, error) {
	if first := s.subPeriodBoundaries(bpi, 1); first.Start == nil {
		return 0, Errorf(KindInsufficientPrecision, "Sub-periods are shorter than one millisecond.")
	}
	pos, found := search.Find(s.opts.SubPeriods, func(i int) int {
		b := s.subPeriodBoundaries(bpi, i+1)
		switch {
		case b.Start == nil:
			return -1
		case t.Before(*b.Start):
			return 1
		case !t.Before(*b.End):
			return -1
		}
		return 0
	})
	if !found {
		return 0, Errorf(KindUnallocatedDate, "The date falls in no sub-period.")
	}
	return pos + 1, nil
}

// Type returns "regular".
func (s *RegularSeries) Type() string { return TypeRegular }

// BasePeriod returns the base period count and unit.
func (s *RegularSeries) BasePeriod() (int, calendar.Unit) {
	return s.opts.BasePeriodCount, calendar.Unit(s.opts.BasePeriodUnit)
}

// Anchor returns the start of base period 0.
func (s *RegularSeries) Anchor() time.Time { return s.opts.Anchor }

// SubPeriods returns the number of sub-periods per base period.
func (s *RegularSeries) SubPeriods() int { return s.opts.SubPeriods }

// Options returns the normalized configuration.
func (s *RegularSeries) Options() RegularOptions { return s.opts }

// HasCustomBoundaries reports whether a boundary function was supplied.
func (s *RegularSeries) HasCustomBoundaries() bool { return s.custom }

// Period returns the handle of the period containing t.
func (s *RegularSeries) Period(t time.Time) (*RegularPeriod, error) {
	bpi := int(s.base.IndexOf(t))
	sp, err := s.subPeriodOf(bpi, t)
	if err != nil {
		return nil, err
	}
	return s.period(periodKey{base: bpi, sub: sp}), nil
}

// PeriodAt returns the handle of sub-period subPeriod within the base period
// containing basePeriodDate.
func (s *RegularSeries) PeriodAt(basePeriodDate time.Time, subPeriod int) (*RegularPeriod, error) {
	if subPeriod < 1 || subPeriod > s.opts.SubPeriods {
		return nil, Errorf(KindInvalidArgument, "Invalid sub-period.")
	}
	return s.period(periodKey{base: int(s.base.IndexOf(basePeriodDate)), sub: subPeriod}), nil
}

func (s *RegularSeries) period(k periodKey) *RegularPeriod {
	return &RegularPeriod{series: s, key: k}
}

// Count returns the number of observations.
func (s *RegularSeries) Count() int { return len(s.index) }

// First returns the earliest observed period.
func (s *RegularSeries) First() (*RegularPeriod, error) {
	if len(s.index) == 0 {
		return nil, Errorf(KindMissing, "There are no observations.")
	}
	return s.period(s.index[0]), nil
}

// Last returns the latest observed period.
func (s *RegularSeries) Last() (*RegularPeriod, error) {
	if len(s.index) == 0 {
		return nil, Errorf(KindMissing, "There are no observations.")
	}
	return s.period(s.index[len(s.index)-1]), nil
}

// Reset removes every observation.
func (s *RegularSeries) Reset() {
	s.obs = make(map[periodKey]any)
	s.index = nil
}

func (s *RegularSeries) locate(k periodKey) (int, bool) {
	return search.Slice(s.index, func(e periodKey) int { return e.compare(k) })
}

func (s *RegularSeries) set(k periodKey, v any) {
	if _, ok := s.obs[k]; !ok {
		pos, _ := s.locate(k)
		s.index = append(s.index, periodKey{})
		copy(s.index[pos+1:], s.index[pos:])
		s.index[pos] = k
	}
	s.obs[k] = v
}

func (s *RegularSeries) clear(k periodKey) {
	if _, ok := s.obs[k]; !ok {
		return
	}
	delete(s.obs, k)
	if pos, found := s.locate(k); found {
		s.index = append(s.index[:pos], s.index[pos+1:]...)
	}
}

// Each calls fn for every observed period in chronological order. Navigation
// is re-evaluated after each call, so fn may modify the series.
func (s *RegularSeries) Each(fn func(p *RegularPeriod) error) error {
	first, err := s.First()
	if err != nil {
		return nil
	}
	return walk(first, (*RegularPeriod).nextObservation, fn)
}

// EachPeriod calls fn for every period from the first observation to the
// last, gaps included.
func (s *RegularSeries) EachPeriod(fn func(p *RegularPeriod) error) error {
	first, err := s.First()
	if err != nil {
		return nil
	}
	return walk(first, (*RegularPeriod).nextPeriod, fn)
}

// Map returns a series with the same configuration whose values are fn of
// the observed values.
func (s *RegularSeries) Map(fn func(v any) (any, error)) (*RegularSeries, error) {
	out := s.empty()
	err := s.Each(func(p *RegularPeriod) error {
		v, err := fn(s.obs[p.key])
		if err != nil {
			return err
		}
		out.set(p.key, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transform calls fn with each observed period and the matching period of a
// new series with the same configuration; fn populates the new series.
func (s *RegularSeries) Transform(fn func(src, dst *RegularPeriod) error) (*RegularSeries, error) {
	out := s.empty()
	err := s.Each(func(p *RegularPeriod) error {
		return fn(p, out.period(p.key))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Filter returns a series holding the observations for which fn is true.
func (s *RegularSeries) Filter(fn func(p *RegularPeriod) (bool, error)) (*RegularSeries, error) {
	out := s.empty()
	err := s.Each(func(p *RegularPeriod) error {
		keep, err := fn(p)
		if err != nil {
			return err
		}
		if keep {
			out.set(p.key, s.obs[p.key])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubSeries returns the observations from start to end, both inclusive.
// Both handles must belong to this series.
func (s *RegularSeries) SubSeries(start, end *RegularPeriod) (*RegularSeries, error) {
	if start == nil || end == nil || start.series != s || end.series != s {
		return nil, Errorf(KindInvalidArgument, "Periods must belong to the series.")
	}
	if start.key.compare(end.key) > 0 {
		return nil, Errorf(KindInvalidArgument, "Start period must not be later than end period.")
	}
	return s.Filter(func(p *RegularPeriod) (bool, error) {
		return p.key.compare(start.key) >= 0 && p.key.compare(end.key) <= 0, nil
	})
}

// SubSeriesBetween returns the observations whose periods intersect the
// half-open range [start, end).
func (s *RegularSeries) SubSeriesBetween(start, end time.Time) (*RegularSeries, error) {
	if !start.Before(end) {
		return nil, Errorf(KindInvalidArgument, "Start date must be before end date.")
	}
	return s.Filter(func(p *RegularPeriod) (bool, error) {
		ps, pe := p.span()
		return ps.Before(end) && pe.After(start), nil
	})
}

// Overlay returns a copy of s with every observation of other written over
// it. Observations of other are placed by base period start and sub-period.
func (s *RegularSeries) Overlay(other *RegularSeries) (*RegularSeries, error) {
	out := s.Clone()
	err := other.Each(func(p *RegularPeriod) error {
		target, err := out.PeriodAt(p.BasePeriodStart(), p.SubPeriod())
		if err != nil {
			return err
		}
		out.set(target.key, other.obs[p.key])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clone returns an independent copy. Values are copied shallowly.
func (s *RegularSeries) Clone() *RegularSeries {
	out := s.empty()
	for k, v := range s.obs {
		out.obs[k] = v
	}
	out.index = append([]periodKey(nil), s.index...)
	return out
}
