package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/measuredat/nexo/errs"
	"github.com/measuredat/nexo/format"
)

func TestCreateDataset_RejectsNonPositiveDims(t *testing.T) {
	root := newTestRoot()

	_, err := root.CreateDataset("empty", Float64Array(nil), 1)
	require.ErrorIs(t, err, errs.ErrInvalidShape)
	require.False(t, root.HasChild("empty"))

	_, err = root.CreateDataset("zerocol", Array{
		DType: format.DTypeFloat64,
		Shape: []int{0, 3},
	}, 1)
	require.ErrorIs(t, err, errs.ErrInvalidShape)
	require.False(t, root.HasChild("zerocol"))
}

func TestDataset_Append(t *testing.T) {
	root := newTestRoot()
	ds, err := root.CreateDataset("temp", Float64Array([]float64{1, 2, 3}), 1)
	require.NoError(t, err)

	require.NoError(t, ds.Append(Float64Array([]float64{4, 5})))
	require.Equal(t, 5, ds.Rows())
	require.Equal(t, []float64{1, 2, 3, 4, 5}, ds.Float64s())
}

func TestDataset_AppendOneByOneMatchesBulk(t *testing.T) {
	values := []float64{0.5, 1.5, 2.5, 3.5, 4.5, 5.5}

	root := newTestRoot()
	one, err := root.CreateDataset("one", Float64Array(values[:1]), 1)
	require.NoError(t, err)
	for _, v := range values[1:] {
		require.NoError(t, one.Append(Float64Array([]float64{v})))
	}

	bulk, err := root.CreateDataset("bulk", Float64Array(values), 1)
	require.NoError(t, err)

	require.Equal(t, bulk.Shape(), one.Shape())
	require.Equal(t, bulk.Float64s(), one.Float64s())
}

func TestDataset_AppendShapeMismatch(t *testing.T) {
	root := newTestRoot()
	ds, err := root.CreateDataset("spectrum", Array{
		DType:    format.DTypeFloat64,
		Shape:    []int{1, 3},
		Float64s: []float64{1, 2, 3},
	}, 1)
	require.NoError(t, err)

	err = ds.Append(Array{
		DType:    format.DTypeFloat64,
		Shape:    []int{1, 4},
		Float64s: []float64{1, 2, 3, 4},
	})
	require.ErrorIs(t, err, errs.ErrShapeMismatch)
}

func TestDataset_AppendDTypeMismatch(t *testing.T) {
	root := newTestRoot()
	ds, err := root.CreateDataset("temp", Float64Array([]float64{1}), 1)
	require.NoError(t, err)

	require.ErrorIs(t, ds.Append(Int64Array([]int64{2})), errs.ErrDTypeMismatch)
}

func TestDataset_StringWidthGrows(t *testing.T) {
	root := newTestRoot()
	ds, err := root.CreateDataset("state", StringArray([]string{"on"}), 1)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Array().Width)

	require.NoError(t, ds.Append(StringArray([]string{"standby"})))
	require.Equal(t, len("standby"), ds.Array().Width)
}

func TestDataset_Attrs(t *testing.T) {
	root := newTestRoot()
	ds, err := root.CreateDataset("temp", Float64Array([]float64{20.0}), 1)
	require.NoError(t, err)

	ds.SetAttr("units", "degC")
	v, ok := ds.Attr("units")
	require.True(t, ok)
	require.Equal(t, "degC", v)
}
