package series

import "time"

// IrregularPeriod is the period of an irregular series containing a date.
// Its boundaries are derived from the current observations on every call.
type IrregularPeriod struct {
	series *IrregularSeries
	date   time.Time
}

// Series returns the owning series.
func (p *IrregularPeriod) Series() *IrregularSeries { return p.series }

// Date returns the instant the handle was created for.
func (p *IrregularPeriod) Date() time.Time { return p.date }

// Locate places the handle's date relative to the observations.
func (p *IrregularPeriod) Locate() Location { return p.series.Locate(p.date) }

// Start returns the start of the observation or gap; ok is false on the
// leading edge.
func (p *IrregularPeriod) Start() (t time.Time, ok bool) {
	loc := p.Locate()
	switch {
	case loc.At != None:
		return p.series.obs[loc.At].Start, true
	case loc.Before != None:
		return p.series.obs[loc.Before].End, true
	}
	return time.Time{}, false
}

// End returns the end of the observation or gap; ok is false on the
// trailing edge.
func (p *IrregularPeriod) End() (t time.Time, ok bool) {
	loc := p.Locate()
	switch {
	case loc.At != None:
		return p.series.obs[loc.At].End, true
	case loc.After != None:
		return p.series.obs[loc.After].Start, true
	}
	return time.Time{}, false
}

// HasForward reports whether an observation follows this period.
func (p *IrregularPeriod) HasForward() bool { return p.Locate().After != None }

// Forward returns the next observation or gap.
func (p *IrregularPeriod) Forward() (*IrregularPeriod, error) {
	loc := p.Locate()
	if loc.After == None {
		return nil, Errorf(KindMissing, "There are no later periods.")
	}
	if loc.At == None {
		return p.series.Period(p.series.obs[loc.After].Start), nil
	}
	return p.series.Period(p.series.obs[loc.At].End), nil
}

// HasBack reports whether an observation precedes this period.
func (p *IrregularPeriod) HasBack() bool { return p.Locate().Before != None }

// Back returns the previous observation or gap.
func (p *IrregularPeriod) Back() (*IrregularPeriod, error) {
	loc := p.Locate()
	if loc.Before == None {
		return nil, Errorf(KindMissing, "There are no earlier periods.")
	}
	prev := p.series.obs[loc.Before]
	if loc.At == None || prev.End.Equal(p.series.obs[loc.At].Start) {
		return p.series.Period(prev.Start), nil
	}
	return p.series.Period(prev.End), nil
}

// Obs returns the observation view of the period.
func (p *IrregularPeriod) Obs() IrregularObs { return IrregularObs{p: p} }

func (p *IrregularPeriod) nextObservation() (*IrregularPeriod, bool) {
	next, err := p.Obs().Forward()
	return next, err == nil
}

func (p *IrregularPeriod) nextPeriod() (*IrregularPeriod, bool) {
	next, err := p.Forward()
	return next, err == nil
}

// IrregularObs reads and writes the observation of a period.
type IrregularObs struct {
	p *IrregularPeriod
}

func (o IrregularObs) onEdge(loc Location) bool {
	return loc.At == None && (loc.Before == None || loc.After == None)
}

// Exists reports whether the period is an observation.
func (o IrregularObs) Exists() bool { return o.p.Locate().At != None }

// Value returns the observed value. Edge periods fail with INVALID_PERIOD and
// gaps with MISSING.
func (o IrregularObs) Value() (any, error) {
	loc := o.p.Locate()
	if o.onEdge(loc) {
		return nil, Errorf(KindInvalidPeriod, "The period is unbounded.")
	}
	if loc.At == None {
		return nil, Errorf(KindMissing, "There is no observation.")
	}
	return o.p.series.obs[loc.At].Value, nil
}

// Set replaces the value of an observation or fills a gap with a new
// observation spanning the whole gap.
func (o IrregularObs) Set(v any) (*IrregularPeriod, error) {
	s := o.p.series
	loc := o.p.Locate()
	if o.onEdge(loc) {
		return nil, Errorf(KindInvalidPeriod, "The period is unbounded.")
	}
	if loc.At != None {
		s.obs[loc.At].Value = v
		return o.p, nil
	}
	if err := s.Add(s.obs[loc.Before].End, v, s.obs[loc.After].Start); err != nil {
		return nil, err
	}
	return o.p, nil
}

// Clear removes the observation, if any.
func (o IrregularObs) Clear() (*IrregularPeriod, error) {
	s := o.p.series
	loc := o.p.Locate()
	if o.onEdge(loc) {
		return nil, Errorf(KindInvalidPeriod, "The period is unbounded.")
	}
	if loc.At != None {
		s.obs = append(s.obs[:loc.At], s.obs[loc.At+1:]...)
	}
	return o.p, nil
}

// HasForward reports whether a later observation exists.
func (o IrregularObs) HasForward() bool { return o.p.Locate().After != None }

// Forward returns the next observation.
func (o IrregularObs) Forward() (*IrregularPeriod, error) {
	loc := o.p.Locate()
	if loc.After == None {
		return nil, Errorf(KindMissing, "There are no later observations.")
	}
	return o.p.series.Period(o.p.series.obs[loc.After].Start), nil
}

// HasBack reports whether an earlier observation exists.
func (o IrregularObs) HasBack() bool { return o.p.Locate().Before != None }

// Back returns the previous observation.
func (o IrregularObs) Back() (*IrregularPeriod, error) {
	loc := o.p.Locate()
	if loc.Before == None {
		return nil, Errorf(KindMissing, "There are no earlier observations.")
	}
	return o.p.series.Period(o.p.series.obs[loc.Before].Start), nil
}
