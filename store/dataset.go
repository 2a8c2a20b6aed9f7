package store

import (
	"fmt"

	"github.com/measuredat/nexo/errs"
	"github.com/measuredat/nexo/format"
)

// Dataset is a growable typed multi-dimensional array. The dtype and the
// trailing shape are fixed by the first write; Append only grows the
// leading (row) dimension. A Dataset is owned by exactly one Group and is
// the physical storage that virtual views reference.
type Dataset struct {
	name   string
	parent *Group
	arr    Array
	chunk  int
	attrs  *attrSet
}

// Name returns the dataset's name within its parent.
func (d *Dataset) Name() string { return d.name }

// Path returns the absolute slash-separated path of the dataset.
func (d *Dataset) Path() string {
	parent := d.parent.Path()
	if parent == "/" {
		return "/" + d.name
	}

	return parent + "/" + d.name
}

// DType returns the element type fixed at creation.
func (d *Dataset) DType() format.DType { return d.arr.DType }

// Shape returns the current shape, leading dimension first.
func (d *Dataset) Shape() []int {
	shape := make([]int, len(d.arr.Shape))
	copy(shape, d.arr.Shape)

	return shape
}

// Rows returns the current leading dimension.
func (d *Dataset) Rows() int { return d.arr.Rows() }

// RowSize returns the number of elements per row.
func (d *Dataset) RowSize() int { return d.arr.RowSize() }

// Chunk returns the chunk size declared at creation.
func (d *Dataset) Chunk() int { return d.chunk }

// SetAttr sets an attribute on the dataset.
func (d *Dataset) SetAttr(key string, value any) {
	d.attrs.set(key, value)
}

// Attr returns the named attribute.
func (d *Dataset) Attr(key string) (any, bool) {
	return d.attrs.get(key)
}

// AttrKeys returns the attribute keys in insertion order.
func (d *Dataset) AttrKeys() []string {
	return d.attrs.keys()
}

// Append grows the leading dimension by rows.Rows() and writes the new rows
// at the tail. The appended array must match the dataset's dtype and
// trailing shape; mismatches are fatal to the write.
func (d *Dataset) Append(rows Array) error {
	if rows.DType != d.arr.DType {
		return fmt.Errorf("%w: %s appended to %s dataset %q",
			errs.ErrDTypeMismatch, rows.DType, d.arr.DType, d.name)
	}
	if !trailingShapeEqual(d.arr.Shape, rows.Shape) {
		return fmt.Errorf("%w: %v appended to %v dataset %q",
			errs.ErrShapeMismatch, rows.Shape, d.arr.Shape, d.name)
	}

	switch d.arr.DType {
	case format.DTypeFloat64:
		d.arr.Float64s = append(d.arr.Float64s, rows.Float64s...)
	case format.DTypeInt64:
		d.arr.Int64s = append(d.arr.Int64s, rows.Int64s...)
	case format.DTypeBool:
		d.arr.Bools = append(d.arr.Bools, rows.Bools...)
	case format.DTypeBytes:
		d.arr.Strings = append(d.arr.Strings, rows.Strings...)
		if rows.Width > d.arr.Width {
			d.arr.Width = rows.Width
		}
	}
	d.arr.Shape[0] += rows.Rows()

	return nil
}

// Array returns the dataset's backing array. The returned value shares the
// element slices with the dataset; callers must treat it as read-only.
func (d *Dataset) Array() Array { return d.arr }

// Float64s returns the flattened float64 elements. Returns nil for other
// dtypes.
func (d *Dataset) Float64s() []float64 { return d.arr.Float64s }

// Int64s returns the flattened int64 elements.
func (d *Dataset) Int64s() []int64 { return d.arr.Int64s }

// Strings returns the byte-string elements.
func (d *Dataset) Strings() []string { return d.arr.Strings }

// Bools returns the boolean elements.
func (d *Dataset) Bools() []bool { return d.arr.Bools }

// ElementAt returns the flattened element at index i.
func (d *Dataset) ElementAt(i int) any { return d.arr.ElementAt(i) }
