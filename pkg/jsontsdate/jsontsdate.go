// Package jsontsdate converts between instants and the JSON-TS date string
// format: YYYY[-MM[-DD[THH[:MM[:SS[.mmm]]]]]] followed by an optional zone
// designator ("Z" or "±HH:MM"). Strings without a zone are read as UTC.
package jsontsdate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalid marks a string that is not a JSON-TS date.
	ErrInvalid = errors.New("invalid JSON-TS date")
	// ErrNotSupported marks a well-formed date with sub-millisecond precision.
	ErrNotSupported = errors.New("sub-millisecond precision is not supported")
)

type scanner struct {
	src string
	pos int
}

func (s *scanner) done() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte {
	if s.done() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) accept(c byte) bool {
	if s.peek() == c && !s.done() {
		s.pos++
		return true
	}
	return false
}

// digits consumes exactly n decimal digits.
func (s *scanner) digits(n int) (int, bool) {
	if s.pos+n > len(s.src) {
		return 0, false
	}
	v := 0
	for i := 0; i < n; i++ {
		c := s.src[s.pos+i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int(c-'0')
	}
	s.pos += n
	return v, true
}

func (s *scanner) atZone() bool {
	c := s.peek()
	return c == 'Z' || c == '+' || c == '-'
}

func invalid(str, why string) error {
	return fmt.Errorf("%w: %q: %s", ErrInvalid, str, why)
}

// Parse reads a JSON-TS date string.
func Parse(str string) (time.Time, error) {
	s := &scanner{src: strings.ToUpper(str)}

	year, ok := s.digits(4)
	if !ok {
		return time.Time{}, invalid(str, "year must be four digits")
	}
	month, day := 1, 1
	hour, minute, second, milli := 0, 0, 0, 0

	parse := func() error {
		if s.done() || s.atZone() && s.peek() != '-' {
			return nil
		}
		if !s.accept('-') {
			return invalid(str, "expected month")
		}
		if s.atZoneOffset() {
			s.pos--
			return nil
		}
		var ok bool
		if month, ok = s.digits(2); !ok || month < 1 || month > 12 {
			return invalid(str, "invalid month")
		}
		if s.done() || s.atZone() && s.peek() != '-' {
			return nil
		}
		if !s.accept('-') {
			return invalid(str, "expected day")
		}
		if s.atZoneOffset() {
			s.pos--
			return nil
		}
		if day, ok = s.digits(2); !ok || day < 1 || day > daysIn(year, month) {
			return invalid(str, "invalid day")
		}
		if s.done() || s.atZone() {
			return nil
		}
		if !s.accept('T') {
			return invalid(str, "expected T before hour")
		}
		if hour, ok = s.digits(2); !ok || hour > 23 {
			return invalid(str, "invalid hour")
		}
		if s.done() || s.atZone() {
			return nil
		}
		if !s.accept(':') {
			return invalid(str, "expected minute")
		}
		if minute, ok = s.digits(2); !ok || minute > 59 {
			return invalid(str, "invalid minute")
		}
		if s.done() || s.atZone() {
			return nil
		}
		if !s.accept(':') {
			return invalid(str, "expected second")
		}
		if second, ok = s.digits(2); !ok || second > 59 {
			return invalid(str, "invalid second")
		}
		if s.done() || s.atZone() {
			return nil
		}
		if !s.accept('.') {
			return invalid(str, "expected milliseconds")
		}
		if milli, ok = s.digits(3); !ok {
			return invalid(str, "milliseconds must be three digits")
		}
		extra := 0
		for !s.done() && s.peek() >= '0' && s.peek() <= '9' {
			s.pos++
			extra++
		}
		if extra > 0 {
			if extra%3 == 0 {
				return fmt.Errorf("%w: %q", ErrNotSupported, str)
			}
			return invalid(str, "fractional seconds must be given in groups of three digits")
		}
		return nil
	}
	if err := parse(); err != nil {
		return time.Time{}, err
	}

	loc, err := s.zone(str)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, milli*int(time.Millisecond), loc).UTC(), nil
}

// atZoneOffset reports whether the text after a consumed '-' is a "HH:MM"
// offset rather than a date element.
func (s *scanner) atZoneOffset() bool {
	rest := s.src[s.pos:]
	return len(rest) == 5 && rest[2] == ':'
}

func (s *scanner) zone(str string) (*time.Location, error) {
	if s.done() {
		return time.UTC, nil
	}
	if s.accept('Z') {
		if !s.done() {
			return nil, invalid(str, "unexpected text after zone")
		}
		return time.UTC, nil
	}
	sign := 1
	switch {
	case s.accept('+'):
	case s.accept('-'):
		sign = -1
	default:
		return nil, invalid(str, "invalid zone")
	}
	hh, ok := s.digits(2)
	if !ok || hh > 23 || !s.accept(':') {
		return nil, invalid(str, "invalid zone")
	}
	mm, ok := s.digits(2)
	if !ok || mm > 59 || !s.done() {
		return nil, invalid(str, "invalid zone")
	}
	return time.FixedZone("", sign*(hh*3600+mm*60)), nil
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Format renders t in UTC, truncated after the last non-zero element, with a
// trailing "Z". Sub-millisecond components are dropped.
func Format(t time.Time) string {
	t = t.UTC()
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	ms := t.Nanosecond() / int(time.Millisecond)

	var b strings.Builder
	fmt.Fprintf(&b, "%04d", y)
	switch {
	case ms != 0:
		fmt.Fprintf(&b, "-%02d-%02dT%02d:%02d:%02d.%03d", mo, d, h, mi, s, ms)
	case s != 0:
		fmt.Fprintf(&b, "-%02d-%02dT%02d:%02d:%02d", mo, d, h, mi, s)
	case mi != 0:
		fmt.Fprintf(&b, "-%02d-%02dT%02d:%02d", mo, d, h, mi)
	case h != 0:
		fmt.Fprintf(&b, "-%02d-%02dT%02d", mo, d, h)
	case d != 1:
		fmt.Fprintf(&b, "-%02d-%02d", mo, d)
	case mo != time.January:
		fmt.Fprintf(&b, "-%02d", mo)
	}
	b.WriteByte('Z')
	return b.String()
}
