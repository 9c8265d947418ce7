package search

import (
	"cmp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlice(t *testing.T) {
	evens := make([]int, 0, 50)
	for i := 0; i < 50; i++ {
		evens = append(evens, i*2)
	}

	tests := []struct {
		name      string
		data      []int
		target    int
		wantPos   int
		wantFound bool
	}{
		{"empty", nil, 3, 0, false},
		{"single match", []int{3}, 3, 0, true},
		{"single before", []int{3}, 1, 0, false},
		{"single after", []int{3}, 5, 1, false},
		{"small match", []int{1, 3, 5}, 5, 2, true},
		{"small gap", []int{1, 3, 5}, 4, 2, false},
		{"large first", evens, 0, 0, true},
		{"large last", evens, 98, 49, true},
		{"large middle", evens, 50, 25, true},
		{"large gap", evens, 51, 26, false},
		{"large below", evens, -1, 0, false},
		{"large above", evens, 99, 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, found := Slice(tt.data, func(v int) int { return cmp.Compare(v, tt.target) })
			assert.Equal(t, tt.wantPos, pos)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}

func TestFindEveryPosition(t *testing.T) {
	for n := 0; n < 40; n++ {
		for target := -1; target <= 2*n+1; target++ {
			pos, found := Find(n, func(i int) int { return cmp.Compare(2*i, target) })
			want := (target + 1) / 2
			if target < 0 {
				want = 0
			}
			if want > n {
				want = n
			}
			assert.Equal(t, want, pos, "n=%d target=%d", n, target)
			assert.Equal(t, target >= 0 && target%2 == 0 && target/2 < n, found, "n=%d target=%d", n, target)
		}
	}
}
