package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "scaled", a: []float32{1, 0}, b: []float32{5, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-6)
		})
	}
}

func TestRank(t *testing.T) {
	records := []domain.Record{
		{ID: "a", Vector: []float32{0, 1}},
		{ID: "b", Vector: []float32{1, 0}},
		{ID: "c", Vector: []float32{1, 0}},
		{ID: "d", Vector: []float32{1, 1}},
	}

	got := Rank(records, []float32{1, 0}, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].Record.ID, "ties keep insertion order")
	assert.Equal(t, "c", got[1].Record.ID)
	assert.Equal(t, "d", got[2].Record.ID)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	assert.GreaterOrEqual(t, got[1].Score, got[2].Score)

	assert.Len(t, Rank(records, []float32{1, 0}, 10), 4)
	assert.Empty(t, Rank(nil, []float32{1, 0}, 3))
}

func TestValidateK(t *testing.T) {
	assert.NoError(t, ValidateK(1))
	assert.ErrorIs(t, ValidateK(0), domain.ErrInvalidInput)
	assert.ErrorIs(t, ValidateK(-3), domain.ErrInvalidInput)
}

func TestCheckDimension(t *testing.T) {
	dim, err := CheckDimension(0, []float32{1, 2}, []float32{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 2, dim)

	_, err = CheckDimension(2, []float32{1, 2, 3})
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = CheckDimension(0, []float32{})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}
