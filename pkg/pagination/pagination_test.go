package pagination

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PerPage)
	assert.Equal(t, 0, p.Offset())
}

func TestNew_Clamps(t *testing.T) {
	tests := []struct {
		name              string
		page, perPage     int
		wantPage, wantPer int
	}{
		{"valid", 3, 25, 3, 25},
		{"zero page", 0, 10, 1, 10},
		{"negative page", -4, 10, 1, 10},
		{"zero per page", 2, 0, 2, 1},
		{"negative per page", 2, -1, 2, 1},
		{"per page capped", 1, 500, 1, MaxPerPage},
		{"page capped", math.MaxInt, 100, MaxPage, 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := New(tc.page, tc.perPage)
			assert.Equal(t, tc.wantPage, p.Page)
			assert.Equal(t, tc.wantPer, p.PerPage)
		})
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, New(1, 10).Offset())
	assert.Equal(t, 20, New(3, 10).Offset())
	assert.Equal(t, 50, New(2, 50).Offset())
}

func TestOffset_HugePageStaysNonNegative(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/products?page="+strconv.Itoa(math.MaxInt)+"&per_page=100", nil)
	p := FromRequest(r)

	assert.Equal(t, MaxPage, p.Page)
	assert.Equal(t, 100, p.PerPage)
	assert.GreaterOrEqual(t, p.Offset(), 0)
	assert.GreaterOrEqual(t, New(math.MaxInt, 1).Offset(), 0)
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query             string
		wantPage, wantPer int
	}{
		{"", 1, 10},
		{"?page=2&per_page=5", 2, 5},
		{"?page=0&per_page=0", 1, 1},
		{"?page=-3", 1, 10},
		{"?page=abc&per_page=xyz", 1, 10},
		{"?per_page=1000", 1, 100},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/products"+tc.query, nil)
			p := FromRequest(r)
			assert.Equal(t, tc.wantPage, p.Page)
			assert.Equal(t, tc.wantPer, p.PerPage)
		})
	}
}

func TestNewResult(t *testing.T) {
	res := NewResult([]int{1, 2}, 25, New(2, 10))
	assert.Equal(t, 3, res.TotalPages)
	assert.True(t, res.HasNext)
	assert.True(t, res.HasPrev)

	last := NewResult([]int{1}, 21, New(3, 10))
	assert.False(t, last.HasNext)

	exact := NewResult([]int{}, 20, New(1, 10))
	assert.Equal(t, 2, exact.TotalPages)
}

func TestNewResult_NilDataBecomesEmpty(t *testing.T) {
	res := NewResult[string](nil, 0, DefaultParams())
	assert.NotNil(t, res.Data)
	assert.Equal(t, 0, res.TotalPages)
	assert.False(t, res.HasNext)
	assert.False(t, res.HasPrev)
}
