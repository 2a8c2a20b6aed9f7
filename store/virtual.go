package store

import (
	"fmt"
	"slices"

	"github.com/measuredat/nexo/errs"
	"github.com/measuredat/nexo/format"
)

// VirtualSource wraps a physical dataset so slices of it can be mapped into
// a VirtualLayout. The source holds a reference, never a copy.
type VirtualSource struct {
	ds *Dataset
}

// NewVirtualSource creates a virtual source over the given dataset.
func NewVirtualSource(ds *Dataset) VirtualSource {
	return VirtualSource{ds: ds}
}

// Dataset returns the referenced dataset.
func (s VirtualSource) Dataset() *Dataset { return s.ds }

// segment maps count rows of src starting at srcStart into the layout
// starting at dstStart.
type segment struct {
	dstStart int
	src      *Dataset
	srcStart int
	count    int
}

// VirtualLayout assembles row slices of several physical datasets into one
// virtually contiguous array of a declared total length. Mapping records
// references only; no element data is copied.
type VirtualLayout struct {
	length   int
	rowShape []int // trailing dims of one row
	dtype    format.DType
	segments []segment
	mapped   int
}

// NewVirtualLayout creates a layout of the given total row count whose
// dtype and per-row shape are taken from the sample dataset.
func NewVirtualLayout(length int, sample *Dataset) *VirtualLayout {
	shape := sample.Shape()

	return &VirtualLayout{
		length:   length,
		rowShape: shape[1:],
		dtype:    sample.DType(),
	}
}

// Length returns the declared total row count.
func (l *VirtualLayout) Length() int { return l.length }

// MapSlice maps count rows of src, starting at srcStart, into the layout at
// dstStart. Segments must stay inside both the source's current length and
// the layout's declared length.
func (l *VirtualLayout) MapSlice(dstStart int, src VirtualSource, srcStart, count int) error {
	if count < 0 || dstStart < 0 || srcStart < 0 {
		return fmt.Errorf("%w: negative slice bounds", errs.ErrLayoutOverflow)
	}
	if dstStart+count > l.length {
		return fmt.Errorf("%w: [%d,%d) in layout of length %d",
			errs.ErrLayoutOverflow, dstStart, dstStart+count, l.length)
	}
	if srcStart+count > src.ds.Rows() {
		return fmt.Errorf("%w: [%d,%d) in source %q of %d rows",
			errs.ErrLayoutOverflow, srcStart, srcStart+count, src.ds.Name(), src.ds.Rows())
	}
	if src.ds.DType() != l.dtype || !trailingShapeEqual(append([]int{0}, l.rowShape...), src.ds.Shape()) {
		return fmt.Errorf("%w: source %q does not match layout dtype/shape",
			errs.ErrShapeMismatch, src.ds.Name())
	}
	if count == 0 {
		return nil
	}

	l.segments = append(l.segments, segment{
		dstStart: dstStart,
		src:      src.ds,
		srcStart: srcStart,
		count:    count,
	})
	l.mapped += count

	return nil
}

// validate checks that the mapped segments exactly cover the declared
// length.
func (l *VirtualLayout) validate() error {
	if l.mapped != l.length {
		return fmt.Errorf("%w: mapped %d of %d rows", errs.ErrLayoutOverflow, l.mapped, l.length)
	}

	return nil
}

// VirtualDataset is a read-only, non-copying view over fragments owned by
// other datasets, exposed as if it were one contiguous array. Reads resolve
// through to the owning datasets at access time, so rows appended to a
// source after mapping are not visible (segments are fixed slices).
type VirtualDataset struct {
	name   string
	layout *VirtualLayout
	attrs  *attrSet
}

// Name returns the view's name within its parent.
func (v *VirtualDataset) Name() string { return v.name }

// Rows returns the total row count of the view.
func (v *VirtualDataset) Rows() int { return v.layout.length }

// RowSize returns the number of elements per row.
func (v *VirtualDataset) RowSize() int {
	size := 1
	for _, dim := range v.layout.rowShape {
		size *= dim
	}

	return size
}

// DType returns the element type of the view.
func (v *VirtualDataset) DType() format.DType { return v.layout.dtype }

// Shape returns the view's shape, leading dimension first.
func (v *VirtualDataset) Shape() []int {
	return append([]int{v.layout.length}, v.layout.rowShape...)
}

// SetAttr sets an attribute on the view.
func (v *VirtualDataset) SetAttr(key string, value any) {
	v.attrs.set(key, value)
}

// Attr returns the named attribute.
func (v *VirtualDataset) Attr(key string) (any, bool) {
	return v.attrs.get(key)
}

// locate finds the segment containing global row index and returns the
// owning dataset plus the local row index within it.
func (v *VirtualDataset) locate(row int) (*Dataset, int, bool) {
	for _, seg := range v.layout.segments {
		if row >= seg.dstStart && row < seg.dstStart+seg.count {
			return seg.src, seg.srcStart + (row - seg.dstStart), true
		}
	}

	return nil, 0, false
}

// ElementAt returns the flattened element at global index i, resolving
// through to the owning dataset.
func (v *VirtualDataset) ElementAt(i int) (any, bool) {
	rowSize := v.RowSize()
	src, localRow, ok := v.locate(i / rowSize)
	if !ok {
		return nil, false
	}

	return src.ElementAt(localRow*rowSize + i%rowSize), true
}

// Float64At returns the float64 element at global flattened index i.
func (v *VirtualDataset) Float64At(i int) (float64, bool) {
	e, ok := v.ElementAt(i)
	if !ok {
		return 0, false
	}
	f, ok := e.(float64)

	return f, ok
}

// Materialize gathers the view into one contiguous Array. This is the only
// operation that copies element data; it is used when a container file is
// flushed to storage and by tests.
func (v *VirtualDataset) Materialize() Array {
	out := Array{
		DType: v.layout.dtype,
		Shape: v.Shape(),
	}

	total := v.layout.length * v.RowSize()
	switch v.layout.dtype {
	case format.DTypeFloat64:
		out.Float64s = make([]float64, 0, total)
	case format.DTypeInt64:
		out.Int64s = make([]int64, 0, total)
	case format.DTypeBool:
		out.Bools = make([]bool, 0, total)
	case format.DTypeBytes:
		out.Strings = make([]string, 0, total)
	}

	segs := make([]segment, len(v.layout.segments))
	copy(segs, v.layout.segments)
	slices.SortStableFunc(segs, func(a, b segment) int {
		return a.dstStart - b.dstStart
	})

	rowSize := v.RowSize()
	for _, seg := range segs {
		src := seg.src.Array()
		start := seg.srcStart * rowSize
		end := (seg.srcStart + seg.count) * rowSize
		switch v.layout.dtype {
		case format.DTypeFloat64:
			out.Float64s = append(out.Float64s, src.Float64s[start:end]...)
		case format.DTypeInt64:
			out.Int64s = append(out.Int64s, src.Int64s[start:end]...)
		case format.DTypeBool:
			out.Bools = append(out.Bools, src.Bools[start:end]...)
		case format.DTypeBytes:
			out.Strings = append(out.Strings, src.Strings[start:end]...)
			if src.Width > out.Width {
				out.Width = src.Width
			}
		}
	}

	return out
}
