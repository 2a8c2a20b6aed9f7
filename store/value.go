package store

import (
	"fmt"

	"github.com/measuredat/nexo/errs"
	"github.com/measuredat/nexo/format"
)

// Array is the typed batch representation the store accepts for dataset
// writes. Shape includes the leading row dimension; the trailing dimensions
// describe one row. Exactly one of the element slices is populated,
// according to DType, flattened in row-major order.
type Array struct {
	DType format.DType
	Shape []int

	Float64s []float64
	Int64s   []int64
	Bools    []bool
	Strings  []string

	// Width is the fixed byte width of DTypeBytes elements in a container
	// file. Zero means "widest element wins" at encode time.
	Width int
}

// Rows returns the leading dimension of the array.
func (a Array) Rows() int {
	if len(a.Shape) == 0 {
		return 0
	}

	return a.Shape[0]
}

// RowSize returns the number of elements in one row (the product of the
// trailing dimensions).
func (a Array) RowSize() int {
	size := 1
	for _, dim := range a.Shape[1:] {
		size *= dim
	}

	return size
}

// Len returns the total number of elements.
func (a Array) Len() int {
	if len(a.Shape) == 0 {
		return 0
	}

	return a.Rows() * a.RowSize()
}

// ElementAt returns the flattened element at index i as an any value.
func (a Array) ElementAt(i int) any {
	switch a.DType {
	case format.DTypeFloat64:
		return a.Float64s[i]
	case format.DTypeInt64:
		return a.Int64s[i]
	case format.DTypeBool:
		return a.Bools[i]
	case format.DTypeBytes:
		return a.Strings[i]
	default:
		return nil
	}
}

// hasNonPositiveDim reports whether any dimension of the shape is <= 0.
// Such writes are rejected by CreateDataset; callers treat the rejection as
// a non-fatal skip.
func (a Array) hasNonPositiveDim() bool {
	for _, dim := range a.Shape {
		if dim <= 0 {
			return true
		}
	}

	return len(a.Shape) == 0
}

// trailingShapeEqual reports whether two arrays agree on everything but the
// leading dimension.
func trailingShapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 1; i < len(a); i++ {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// Float64Array builds a one-dimensional float64 array.
func Float64Array(values []float64) Array {
	return Array{
		DType:    format.DTypeFloat64,
		Shape:    []int{len(values)},
		Float64s: values,
	}
}

// Int64Array builds a one-dimensional int64 array.
func Int64Array(values []int64) Array {
	return Array{
		DType:  format.DTypeInt64,
		Shape:  []int{len(values)},
		Int64s: values,
	}
}

// BoolArray builds a one-dimensional bool array.
func BoolArray(values []bool) Array {
	return Array{
		DType: format.DTypeBool,
		Shape: []int{len(values)},
		Bools: values,
	}
}

// StringArray builds a one-dimensional fixed-width byte-string array.
func StringArray(values []string) Array {
	width := 0
	for _, s := range values {
		if len(s) > width {
			width = len(s)
		}
	}

	return Array{
		DType:   format.DTypeBytes,
		Shape:   []int{len(values)},
		Strings: values,
		Width:   width,
	}
}

// CoerceColumn converts one column of per-row values into a homogeneous
// Array. Rows may be scalars (float, int, bool, string) or flat numeric
// sequences; numeric rows are widened to float64 when any row is
// fractional. Textual rows become fixed-width byte strings. Anything the
// store cannot hold natively falls back to its string representation, so
// coercion itself never fails for non-empty input.
func CoerceColumn(values []any) (Array, error) {
	if len(values) == 0 {
		return Array{}, fmt.Errorf("%w: empty column", errs.ErrInvalidShape)
	}

	if arr, ok := coerceNumericColumn(values); ok {
		return arr, nil
	}
	if arr, ok := coerceBoolColumn(values); ok {
		return arr, nil
	}
	if arr, ok := coerceStringColumn(values); ok {
		return arr, nil
	}
	if arr, ok := coerceNestedColumn(values); ok {
		return arr, nil
	}

	// Heterogeneous or unsupported rows: store their textual form.
	texts := make([]string, len(values))
	for i, v := range values {
		texts[i] = fmt.Sprint(v)
	}

	return StringArray(texts), nil
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func isFractional(v any) bool {
	switch v.(type) {
	case float64, float32:
		return true
	default:
		return false
	}
}

func coerceNumericColumn(values []any) (Array, bool) {
	allInt := true
	for _, v := range values {
		if _, ok := asFloat64(v); !ok {
			return Array{}, false
		}
		if isFractional(v) {
			allInt = false
		}
	}

	if allInt {
		ints := make([]int64, len(values))
		for i, v := range values {
			n, ok := asInt64(v)
			if !ok {
				// uint64 beyond int64 range: widen the whole column.
				allInt = false
				break
			}
			ints[i] = n
		}
		if allInt {
			return Int64Array(ints), true
		}
	}

	floats := make([]float64, len(values))
	for i, v := range values {
		f, _ := asFloat64(v)
		floats[i] = f
	}

	return Float64Array(floats), true
}

func coerceBoolColumn(values []any) (Array, bool) {
	bools := make([]bool, len(values))
	for i, v := range values {
		b, ok := v.(bool)
		if !ok {
			return Array{}, false
		}
		bools[i] = b
	}

	return BoolArray(bools), true
}

func coerceStringColumn(values []any) (Array, bool) {
	strs := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return Array{}, false
		}
		strs[i] = s
	}

	return StringArray(strs), true
}

// coerceNestedColumn handles rows that are flat numeric sequences, producing
// a two-dimensional array. Every row must have the same element count as the
// first; ragged or deeper nesting falls through to the text fallback.
func coerceNestedColumn(values []any) (Array, bool) {
	first, ok := rowElements(values[0])
	if !ok || len(first) == 0 {
		return Array{}, false
	}

	flat := make([]any, 0, len(values)*len(first))
	for _, v := range values {
		row, ok := rowElements(v)
		if !ok || len(row) != len(first) {
			return Array{}, false
		}
		flat = append(flat, row...)
	}

	arr, ok := coerceNumericColumn(flat)
	if !ok {
		return Array{}, false
	}

	arr.Shape = []int{len(values), len(first)}

	return arr, true
}

func rowElements(v any) ([]any, bool) {
	switch row := v.(type) {
	case []any:
		return row, true
	case []float64:
		out := make([]any, len(row))
		for i, f := range row {
			out[i] = f
		}

		return out, true
	case []int64:
		out := make([]any, len(row))
		for i, n := range row {
			out[i] = n
		}

		return out, true
	case []int:
		out := make([]any, len(row))
		for i, n := range row {
			out[i] = n
		}

		return out, true
	default:
		return nil, false
	}
}
