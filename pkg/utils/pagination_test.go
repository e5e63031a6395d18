package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePage(t *testing.T) {
	cases := []struct {
		name         string
		page, size   int
		wantPage     int
		wantSize     int
	}{
		{"defaults", 0, 0, 1, 20},
		{"negative page", -3, 10, 1, 10},
		{"size capped", 1, 500, 1, 100},
		{"passthrough", 4, 5, 4, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, size := NormalizePage(tc.page, tc.size)
			assert.Equal(t, tc.wantPage, page)
			assert.Equal(t, tc.wantSize, size)
		})
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 5))
	assert.Equal(t, 1, TotalPages(5, 5))
	assert.Equal(t, 2, TotalPages(6, 5))
	assert.Equal(t, 3, TotalPages(11, 5))
	assert.Equal(t, 0, TotalPages(10, 0))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	assert.Equal(t, []int{1, 2, 3}, Paginate(items, 1, 3))
	assert.Equal(t, []int{4, 5, 6}, Paginate(items, 2, 3))
	assert.Equal(t, []int{7}, Paginate(items, 3, 3))

	// Out-of-range pages yield an empty slice, never an error.
	assert.Empty(t, Paginate(items, 4, 3))
	assert.Empty(t, Paginate([]int{}, 1, 3))
}
