package ragged

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/corrlookup/internal/ir"
)

func TestFromGroups(t *testing.T) {
	a := FromGroups([][]float64{{}, {1}, {2, 3}})

	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 3, a.NumElements())
	assert.Equal(t, []int{0, 1, 2}, a.Counts())
	assert.Equal(t, []int{0, 0, 1, 3}, a.Offsets())
	assert.Equal(t, []float64{2, 3}, a.Group(2))
	assert.Empty(t, a.Group(0))
}

func TestZeroValue(t *testing.T) {
	var a Array
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 0, a.NumElements())
	assert.Equal(t, 1, a.Width())
	assert.Equal(t, []int{0}, a.Offsets())
	assert.True(t, a.SameStructure(FromGroups(nil)))
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		offsets []int
		content []float64
		width   int
	}{
		{"zero_width", []int{0, 1}, []float64{1}, 0},
		{"nonzero_start", []int{1, 2}, []float64{1}, 1},
		{"decreasing", []int{0, 2, 1}, []float64{1, 2}, 1},
		{"short_content", []int{0, 2}, []float64{1}, 1},
		{"width_mismatch", []int{0, 2}, []float64{1, 2, 3}, 2},
		{"content_without_offsets", nil, []float64{1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.offsets, tt.content, tt.width)
			require.Error(t, err)
			assert.True(t, ir.IsCode(err, ir.CodeShapeMismatch))
		})
	}
}

func TestFromCounts(t *testing.T) {
	a, err := FromCounts([]int{2, 0, 1}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {}, {3}}, a.ToGroups())

	_, err = FromCounts([]int{-1}, nil)
	assert.Error(t, err)
}

func TestBranch(t *testing.T) {
	a, err := New([]int{0, 2, 2, 3}, []float64{1.1, 0.9, 1.2, 0.8, 1.3, 0.7}, 2)
	require.NoError(t, err)

	up, err := a.Branch(0)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1.1, 1.2}, {}, {1.3}}, up.ToGroups())

	down, err := a.Branch(1)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.9, 0.8}, {}, {0.7}}, down.ToGroups())

	_, err = a.Branch(2)
	assert.True(t, ir.IsCode(err, ir.CodeDimensionMismatch))
}

func TestSameStructure(t *testing.T) {
	a := FromGroups([][]float64{{1}, {2, 3}})
	b := FromGroups([][]float64{{9}, {8, 7}})
	c := FromGroups([][]float64{{1, 2}, {3}})

	assert.True(t, a.SameStructure(b))
	assert.False(t, a.SameStructure(c))
	assert.False(t, a.SameStructure(FromGroups([][]float64{{1}})))
}

func TestMarshalJSON(t *testing.T) {
	a := FromGroups([][]float64{{}, {0.5}, {1, 2}})
	data, err := a.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[[],[0.5],[1,2]]`, string(data))

	v, err := New([]int{0, 1}, []float64{1.1, 0.9}, 2)
	require.NoError(t, err)
	data, err = v.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[[[1.1,0.9]]]`, string(data))
}
