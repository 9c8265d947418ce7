package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Unit is a base period unit code.
type Unit string

const (
	Year        Unit = "y"
	Quarter     Unit = "q"
	Month       Unit = "m"
	Week        Unit = "w"
	Day         Unit = "d"
	Hour        Unit = "h"
	Minute      Unit = "n"
	Second      Unit = "s"
	Millisecond Unit = "ms"
	Milli       Unit = "e-3"
	Micro       Unit = "e-6"
	Nano        Unit = "e-9"
	Pico        Unit = "e-12"
	Femto       Unit = "e-15"
	Atto        Unit = "e-18"
)

var (
	ErrUnknownUnit     = errors.New("unknown base period unit")
	ErrUnsupportedUnit = errors.New("sub-millisecond base periods are not supported")
)

// Units lists every recognised unit code, coarsest first.
var Units = []Unit{Year, Quarter, Month, Week, Day, Hour, Minute, Second, Millisecond, Milli, Micro, Nano, Pico, Femto, Atto}

// minimum length of one unit in milliseconds
var minMillis = map[Unit]int64{
	Year:        365 * 24 * 60 * 60 * 1000,
	Quarter:     90 * 24 * 60 * 60 * 1000,
	Month:       28 * 24 * 60 * 60 * 1000,
	Week:        7 * 24 * 60 * 60 * 1000,
	Day:         24 * 60 * 60 * 1000,
	Hour:        60 * 60 * 1000,
	Minute:      60 * 1000,
	Second:      1000,
	Millisecond: 1,
	Milli:       1,
}

// mean length of one unit in milliseconds, used to estimate indices
var meanMillis = map[Unit]int64{
	Year:        31556952000,
	Quarter:     7889238000,
	Month:       2629746000,
	Week:        7 * 24 * 60 * 60 * 1000,
	Day:         24 * 60 * 60 * 1000,
	Hour:        60 * 60 * 1000,
	Minute:      60 * 1000,
	Second:      1000,
	Millisecond: 1,
	Milli:       1,
}

// ParseUnit normalizes a unit code. Codes are case-insensitive.
func ParseUnit(code string) (Unit, error) {
	u := Unit(strings.ToLower(code))
	if !u.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, code)
	}
	if !u.Supported() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedUnit, code)
	}
	return u, nil
}

// Valid reports whether u is a recognised unit code.
func (u Unit) Valid() bool {
	for _, known := range Units {
		if u == known {
			return true
		}
	}
	return false
}

// Supported reports whether base periods of unit u can be resolved.
func (u Unit) Supported() bool {
	_, ok := minMillis[u]
	return ok
}

// MinMillis returns the shortest possible length of one unit, in milliseconds.
func (u Unit) MinMillis() int64 {
	return minMillis[u]
}

// AddUnits shifts t by amount units. Month, quarter and year arithmetic keeps
// the day of month where possible and clamps it to the last day of the target
// month otherwise.
func AddUnits(t time.Time, amount int64, u Unit) time.Time {
	t = t.UTC()
	switch u {
	case Year:
		return addMonths(t, amount*12)
	case Quarter:
		return addMonths(t, amount*3)
	case Month:
		return addMonths(t, amount)
	case Week:
		return t.AddDate(0, 0, int(amount*7))
	case Day:
		return t.AddDate(0, 0, int(amount))
	case Hour, Minute, Second, Millisecond, Milli:
		return AddMillis(t, amount*minMillis[u])
	}
	panic(fmt.Sprintf("calendar: unsupported unit %q", u))
}

// AddMillis shifts t by ms milliseconds without the ~292 year range limit of
// time.Duration. The sub-millisecond part of t is kept.
func AddMillis(t time.Time, ms int64) time.Time {
	rem := time.Duration(t.Nanosecond() % int(time.Millisecond))
	return time.UnixMilli(t.UnixMilli() + ms).UTC().Add(rem)
}

func addMonths(t time.Time, n int64) time.Time {
	y, m, d := t.Date()
	total := int64(y)*12 + int64(m-1) + n
	year := FloorDiv(total, 12)
	month := time.Month(total-year*12) + 1
	if last := daysIn(int(year), month); d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(int(year), month, d, hh, mm, ss, t.Nanosecond(), time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FloorDiv divides rounding toward negative infinity.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod is the remainder matching FloorDiv; it has the sign of b.
func FloorMod(a, b int64) int64 {
	return a - FloorDiv(a, b)*b
}
