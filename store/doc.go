// Package store provides the hierarchical container the serializer writes
// into: groups with ordered children and attributes, scalar leaves,
// growable typed datasets, soft links, and non-copying virtual datasets
// assembled from fragments owned elsewhere.
//
// The tree lives in memory while a run is being serialized and is flushed
// to a single container file on Close. The file format is a small header
// (magic, version, compression type, xxHash64 digest) followed by a
// codec-compressed YAML document; dataset payloads ride inside it as
// little-endian binary blocks. Open reads a container back for inspection.
//
// # Datasets
//
// A dataset's dtype and trailing shape are fixed by the first write; Append
// only grows the leading (row) dimension:
//
//	ds, _ := group.CreateDataset("temp", store.Float64Array([]float64{1, 2, 3}), 1)
//	_ = ds.Append(store.Float64Array([]float64{4, 5}))
//	// ds.Rows() == 5
//
// # Virtual datasets
//
// A VirtualLayout maps row slices of several physical datasets into one
// virtually contiguous array without copying:
//
//	layout := store.NewVirtualLayout(10, a)
//	_ = layout.MapSlice(0, store.NewVirtualSource(a), 0, 5)
//	_ = layout.MapSlice(5, store.NewVirtualSource(b), 0, 3)
//	_ = layout.MapSlice(8, store.NewVirtualSource(a), 5, 2)
//	vds, _ := group.CreateVirtualDataset("value_log", layout)
//
// Files are single-writer; nothing in this package is safe for concurrent
// mutation.
package store
