package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestParseUnit(t *testing.T) {
	tests := []struct {
		code    string
		want    Unit
		wantErr error
	}{
		{"y", Year, nil},
		{"Q", Quarter, nil},
		{"MS", Millisecond, nil},
		{"e-3", Milli, nil},
		{"e-6", "", ErrUnsupportedUnit},
		{"e-18", "", ErrUnsupportedUnit},
		{"x", "", ErrUnknownUnit},
		{"", "", ErrUnknownUnit},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := ParseUnit(tt.code)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddUnits(t *testing.T) {
	tests := []struct {
		name   string
		from   time.Time
		amount int64
		unit   Unit
		want   time.Time
	}{
		{"month clamps to end of february", date(2000, 1, 31, 0, 0), 1, Month, date(2000, 2, 29, 0, 0)},
		{"month clamps in common year", date(2001, 1, 31, 0, 0), 1, Month, date(2001, 2, 28, 0, 0)},
		{"negative months", date(2000, 3, 15, 6, 0), -14, Month, date(1999, 1, 15, 6, 0)},
		{"quarter", date(2000, 11, 30, 0, 0), 1, Quarter, date(2001, 2, 28, 0, 0)},
		{"leap year", date(2000, 2, 29, 0, 0), 1, Year, date(2001, 2, 28, 0, 0)},
		{"week", date(2000, 1, 3, 0, 0), -1, Week, date(1999, 12, 27, 0, 0)},
		{"day", date(2000, 12, 31, 0, 0), 1, Day, date(2001, 1, 1, 0, 0)},
		{"hour", date(2000, 1, 1, 23, 0), 2, Hour, date(2000, 1, 2, 1, 0)},
		{"minute", date(2000, 1, 1, 0, 0), 90, Minute, date(2000, 1, 1, 1, 30)},
		{"millisecond", date(2000, 1, 1, 0, 0), -1, Millisecond, time.Date(1999, 12, 31, 23, 59, 59, 999e6, time.UTC)},
		{"hours across centuries", date(2000, 1, 1, 0, 0), -24 * 146097 * 3, Hour, date(800, 1, 1, 0, 0)},
		{"seconds across centuries", date(2000, 1, 1, 0, 0), 86400 * 146097, Second, date(2400, 1, 1, 0, 0)},
		{"milliseconds past duration range", date(2000, 1, 1, 0, 0), 1000 * 86400 * 146097, Milli, date(2400, 1, 1, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(AddUnits(tt.from, tt.amount, tt.unit)), "got %s", AddUnits(tt.from, tt.amount, tt.unit))
		})
	}
}

func TestFloorDivMod(t *testing.T) {
	assert.Equal(t, int64(-1), FloorDiv(-1, 4))
	assert.Equal(t, int64(3), FloorMod(-1, 4))
	assert.Equal(t, int64(-2), FloorDiv(-5, 4))
	assert.Equal(t, int64(3), FloorMod(-5, 4))
	assert.Equal(t, int64(1), FloorDiv(7, 4))
	assert.Equal(t, int64(0), FloorMod(8, 4))
	assert.Equal(t, int64(-2), FloorDiv(-8, 4))
}

func TestBasePeriodIndexOf(t *testing.T) {
	monthly, err := NewBasePeriod(1, Month, date(2000, 1, 1, 0, 0))
	require.NoError(t, err)
	weekly, err := NewBasePeriod(1, Week, date(2000, 1, 3, 0, 0))
	require.NoError(t, err)
	decades, err := NewBasePeriod(10, Year, date(2000, 1, 1, 0, 0))
	require.NoError(t, err)
	odd, err := NewBasePeriod(1, Month, date(2000, 1, 31, 0, 0))
	require.NoError(t, err)

	tests := []struct {
		name string
		bp   BasePeriod
		at   time.Time
		want int64
	}{
		{"anchor", monthly, date(2000, 1, 1, 0, 0), 0},
		{"last instant of first period", monthly, time.Date(2000, 1, 31, 23, 59, 59, 999e6, time.UTC), 0},
		{"next period", monthly, date(2000, 2, 1, 0, 0), 1},
		{"before anchor", monthly, date(1999, 12, 31, 0, 0), -1},
		{"far future", monthly, date(2500, 6, 15, 0, 0), 500*12 + 5},
		{"far past", monthly, date(1500, 6, 15, 0, 0), -500*12 + 5},
		{"weekly before anchor", weekly, date(2000, 1, 2, 0, 0), -1},
		{"decades", decades, date(2025, 6, 1, 0, 0), 2},
		{"decades negative", decades, date(1999, 6, 1, 0, 0), -1},
		{"clamped anchor", odd, date(2000, 2, 29, 0, 0), 1},
		{"clamped anchor end", odd, date(2000, 2, 28, 0, 0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := tt.bp.IndexOf(tt.at)
			assert.Equal(t, tt.want, idx)
			start, end := tt.bp.Boundaries(idx)
			assert.False(t, tt.at.Before(start))
			assert.True(t, tt.at.Before(end))
		})
	}
}

func TestBasePeriodIndexOfFarFromAnchor(t *testing.T) {
	anchor := date(2000, 1, 1, 0, 0)
	hourly, err := NewBasePeriod(1, Hour, anchor)
	require.NoError(t, err)
	perSecond, err := NewBasePeriod(1, Second, anchor)
	require.NoError(t, err)
	quarterHours, err := NewBasePeriod(15, Minute, anchor)
	require.NoError(t, err)

	tests := []struct {
		name      string
		bp        BasePeriod
		at        time.Time
		wantStart time.Time
	}{
		{"hourly in 1650", hourly, date(1650, 6, 1, 5, 30), date(1650, 6, 1, 5, 0)},
		{"per second in 2400", perSecond, time.Date(2400, 1, 1, 0, 0, 7, 0, time.UTC), time.Date(2400, 1, 1, 0, 0, 7, 0, time.UTC)},
		{"quarter hours in year 10", quarterHours, date(10, 3, 1, 12, 44), date(10, 3, 1, 12, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := tt.bp.IndexOf(tt.at)
			start, end := tt.bp.Boundaries(idx)
			assert.True(t, tt.wantStart.Equal(start), "got %s", start)
			assert.True(t, tt.at.Before(end))
		})
	}
}

func TestNewBasePeriodValidation(t *testing.T) {
	_, err := NewBasePeriod(0, Day, time.Time{})
	assert.Error(t, err)
	_, err = NewBasePeriod(1, Micro, time.Time{})
	assert.ErrorIs(t, err, ErrUnsupportedUnit)
}
