package calendar

import (
	"fmt"
	"time"
)

// BasePeriod resolves the integer-indexed base periods of a regular series.
// Base period k starts at Anchor shifted by k*Count units.
type BasePeriod struct {
	Count  int
	Unit   Unit
	Anchor time.Time
}

// NewBasePeriod validates its arguments and returns a resolver.
func NewBasePeriod(count int, unit Unit, anchor time.Time) (BasePeriod, error) {
	if count < 1 {
		return BasePeriod{}, fmt.Errorf("base period count must be a positive integer, got %d", count)
	}
	if !unit.Supported() {
		return BasePeriod{}, fmt.Errorf("%w: %q", ErrUnsupportedUnit, unit)
	}
	return BasePeriod{Count: count, Unit: unit, Anchor: anchor.UTC()}, nil
}

// Start returns the first instant of base period index.
func (b BasePeriod) Start(index int64) time.Time {
	return AddUnits(b.Anchor, index*int64(b.Count), b.Unit)
}

// Boundaries returns the half-open span [start, end) of base period index.
func (b BasePeriod) Boundaries(index int64) (start, end time.Time) {
	return b.Start(index), b.Start(index + 1)
}

// MinMillis is the shortest possible base period length in milliseconds.
func (b BasePeriod) MinMillis() int64 {
	return b.Unit.MinMillis() * int64(b.Count)
}

// IndexOf returns the index of the base period containing t.
func (b BasePeriod) IndexOf(t time.Time) int64 {
	span := meanMillis[b.Unit] * int64(b.Count)
	idx := FloorDiv(t.UnixMilli()-b.Anchor.UnixMilli(), span)

	// the estimate is off by at most a couple of periods for calendar units
	for t.Before(b.Start(idx)) {
		idx--
	}
	for !t.Before(b.Start(idx + 1)) {
		idx++
	}
	return idx
}
