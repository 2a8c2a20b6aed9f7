package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/measuredat/nexo/errs"
	"github.com/measuredat/nexo/format"
)

func TestVirtualDataset_SingleSource(t *testing.T) {
	root := newTestRoot()
	src, err := root.CreateDataset("a", Float64Array([]float64{1, 2, 3, 4}), 1)
	require.NoError(t, err)

	layout := NewVirtualLayout(4, src)
	require.NoError(t, layout.MapSlice(0, NewVirtualSource(src), 0, 4))

	vds, err := root.CreateVirtualDataset("view", layout)
	require.NoError(t, err)
	require.Equal(t, 4, vds.Rows())
	require.Equal(t, []float64{1, 2, 3, 4}, vds.Materialize().Float64s)
}

func TestVirtualDataset_InterleavedSegments(t *testing.T) {
	root := newTestRoot()
	a, err := root.CreateDataset("a", Float64Array([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}), 1)
	require.NoError(t, err)
	b, err := root.CreateDataset("b", Float64Array([]float64{100, 101, 102}), 1)
	require.NoError(t, err)

	// A rows 0-4, then B rows 0-2, then A rows 5-9.
	layout := NewVirtualLayout(13, a)
	require.NoError(t, layout.MapSlice(0, NewVirtualSource(a), 0, 5))
	require.NoError(t, layout.MapSlice(5, NewVirtualSource(b), 0, 3))
	require.NoError(t, layout.MapSlice(8, NewVirtualSource(a), 5, 5))

	vds, err := root.CreateVirtualDataset("view", layout)
	require.NoError(t, err)

	want := []float64{0, 1, 2, 3, 4, 100, 101, 102, 5, 6, 7, 8, 9}
	require.Equal(t, want, vds.Materialize().Float64s)

	for i, w := range want {
		got, ok := vds.Float64At(i)
		require.True(t, ok, "index %d", i)
		require.Equal(t, w, got)
	}
}

func TestVirtualLayout_Overflow(t *testing.T) {
	root := newTestRoot()
	src, err := root.CreateDataset("a", Float64Array([]float64{1, 2}), 1)
	require.NoError(t, err)

	layout := NewVirtualLayout(2, src)
	require.ErrorIs(t, layout.MapSlice(0, NewVirtualSource(src), 0, 3), errs.ErrLayoutOverflow)
	require.ErrorIs(t, layout.MapSlice(1, NewVirtualSource(src), 0, 2), errs.ErrLayoutOverflow)
}

func TestVirtualLayout_IncompleteMappingRejected(t *testing.T) {
	root := newTestRoot()
	src, err := root.CreateDataset("a", Float64Array([]float64{1, 2, 3}), 1)
	require.NoError(t, err)

	layout := NewVirtualLayout(3, src)
	require.NoError(t, layout.MapSlice(0, NewVirtualSource(src), 0, 2))

	_, err = root.CreateVirtualDataset("view", layout)
	require.ErrorIs(t, err, errs.ErrLayoutOverflow)
}

func TestVirtualDataset_MultiColumnRows(t *testing.T) {
	root := newTestRoot()
	src, err := root.CreateDataset("spectrum", Array{
		DType:    format.DTypeFloat64,
		Shape:    []int{2, 3},
		Float64s: []float64{1, 2, 3, 4, 5, 6},
	}, 1)
	require.NoError(t, err)

	layout := NewVirtualLayout(2, src)
	require.NoError(t, layout.MapSlice(0, NewVirtualSource(src), 0, 2))

	vds, err := root.CreateVirtualDataset("view", layout)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, vds.Shape())

	got, ok := vds.ElementAt(4)
	require.True(t, ok)
	require.Equal(t, 5.0, got)
}
