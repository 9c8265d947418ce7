package series

import (
	"time"

	"github.com/leowmjw/go-chronology/pkg/calendar"
)

// RegularPeriod identifies one sub-period of a regular series. It is a view:
// its observation methods read and write the owning series.
type RegularPeriod struct {
	series *RegularSeries
	key    periodKey

	resolved   bool
	baseStart  time.Time
	baseEnd    time.Time
	boundaries SubPeriodBoundaries
}

func (p *RegularPeriod) resolve() {
	if p.resolved {
		return
	}
	p.baseStart, p.baseEnd = p.series.base.Boundaries(int64(p.key.base))
	p.boundaries = p.series.subPeriodBoundaries(p.key.base, p.key.sub)
	p.resolved = true
}

// Series returns the owning series.
func (p *RegularPeriod) Series() *RegularSeries { return p.series }

// BasePeriodIndex is the index of the base period; 0 starts at the anchor.
func (p *RegularPeriod) BasePeriodIndex() int { return p.key.base }

// SubPeriod is the 1-based sub-period number.
func (p *RegularPeriod) SubPeriod() int { return p.key.sub }

// Index is the absolute position of the period on the series grid.
func (p *RegularPeriod) Index() int {
	return p.key.base*p.series.opts.SubPeriods + p.key.sub - 1
}

// BasePeriodStart returns the first instant of the base period.
func (p *RegularPeriod) BasePeriodStart() time.Time {
	p.resolve()
	return p.baseStart
}

// BasePeriodEnd returns the instant after the base period.
func (p *RegularPeriod) BasePeriodEnd() time.Time {
	p.resolve()
	return p.baseEnd
}

// Start returns the first instant of the sub-period; ok is false when the
// sub-period has no boundaries at millisecond precision.
func (p *RegularPeriod) Start() (t time.Time, ok bool) {
	p.resolve()
	if p.boundaries.Start == nil {
		return time.Time{}, false
	}
	return *p.boundaries.Start, true
}

// End returns the instant after the sub-period; see Start.
func (p *RegularPeriod) End() (t time.Time, ok bool) {
	p.resolve()
	if p.boundaries.End == nil {
		return time.Time{}, false
	}
	return *p.boundaries.End, true
}

// span falls back to the base period when the sub-period has no boundaries.
func (p *RegularPeriod) span() (time.Time, time.Time) {
	start, ok := p.Start()
	if !ok {
		return p.BasePeriodStart(), p.BasePeriodEnd()
	}
	end, _ := p.End()
	return start, end
}

// Compare orders periods of the same series grid.
func (p *RegularPeriod) Compare(o *RegularPeriod) int {
	return p.key.compare(o.key)
}

// Equal reports whether both handles denote the same period.
func (p *RegularPeriod) Equal(o *RegularPeriod) bool {
	return o != nil && p.series == o.series && p.key == o.key
}

// Forward returns the next period.
func (p *RegularPeriod) Forward() *RegularPeriod { return p.ForwardN(1) }

// ForwardN returns the period n positions later; n may be negative.
func (p *RegularPeriod) ForwardN(n int) *RegularPeriod {
	per := int64(p.series.opts.SubPeriods)
	pos := int64(p.Index()) + int64(n)
	return p.series.period(periodKey{
		base: int(calendar.FloorDiv(pos, per)),
		sub:  int(calendar.FloorMod(pos, per)) + 1,
	})
}

// Back returns the previous period.
func (p *RegularPeriod) Back() *RegularPeriod { return p.ForwardN(-1) }

// BackN returns the period n positions earlier.
func (p *RegularPeriod) BackN(n int) *RegularPeriod { return p.ForwardN(-n) }

// Obs returns the observation view of the period.
func (p *RegularPeriod) Obs() RegularObs { return RegularObs{p: p} }

func (p *RegularPeriod) nextObservation() (*RegularPeriod, bool) {
	next, err := p.Obs().Forward()
	return next, err == nil
}

func (p *RegularPeriod) nextPeriod() (*RegularPeriod, bool) {
	last, err := p.series.Last()
	if err != nil {
		return nil, false
	}
	next := p.Forward()
	return next, next.key.compare(last.key) <= 0
}

// RegularObs reads and writes the observation of a period.
type RegularObs struct {
	p *RegularPeriod
}

// Exists reports whether the period has an observation.
func (o RegularObs) Exists() bool {
	_, ok := o.p.series.obs[o.p.key]
	return ok
}

// Value returns the observed value.
func (o RegularObs) Value() (any, error) {
	v, ok := o.p.series.obs[o.p.key]
	if !ok {
		return nil, Errorf(KindMissing, "There is no observation.")
	}
	return v, nil
}

// Set records v, which may be nil, and returns the period.
func (o RegularObs) Set(v any) *RegularPeriod {
	o.p.series.set(o.p.key, v)
	return o.p
}

// Clear removes the observation, if any, and returns the period.
func (o RegularObs) Clear() *RegularPeriod {
	o.p.series.clear(o.p.key)
	return o.p
}

// HasForward reports whether a later period is observed.
func (o RegularObs) HasForward() bool {
	s := o.p.series
	return len(s.index) > 0 && s.index[len(s.index)-1].compare(o.p.key) > 0
}

// HasBack reports whether an earlier period is observed.
func (o RegularObs) HasBack() bool {
	s := o.p.series
	return len(s.index) > 0 && s.index[0].compare(o.p.key) < 0
}

// Forward returns the nearest later observed period.
func (o RegularObs) Forward() (*RegularPeriod, error) {
	s := o.p.series
	pos, found := s.locate(o.p.key)
	if found {
		pos++
	}
	if pos >= len(s.index) {
		return nil, Errorf(KindMissing, "No later observations.")
	}
	return s.period(s.index[pos]), nil
}

// Back returns the nearest earlier observed period.
func (o RegularObs) Back() (*RegularPeriod, error) {
	s := o.p.series
	pos, _ := s.locate(o.p.key)
	if pos == 0 {
		return nil, Errorf(KindMissing, "No earlier observations.")
	}
	return s.period(s.index[pos-1]), nil
}
