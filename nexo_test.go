package nexo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/measuredat/nexo/document"
	"github.com/measuredat/nexo/serializer"
	"github.com/measuredat/nexo/store"
)

func TestExport_FullRun(t *testing.T) {
	dir := t.TempDir()

	docs := func(yield func(document.Kind, any) bool) {
		start := &document.Start{
			UID:  "run-1",
			Time: 100,
			Fields: map[string]any{
				"session_name": "demo",
			},
		}
		if !yield(document.KindStart, start) {
			return
		}
		if !yield(document.KindDescriptor, &document.Descriptor{UID: "d1", Name: "primary"}) {
			return
		}
		batch := &document.EventBatch{
			Descriptor: "d1",
			Time:       []float64{100, 101},
			Data:       map[string][]any{"temp": {20.0, 21.0}},
		}
		if !yield(document.KindEventBatch, batch) {
			return
		}
		yield(document.KindStop, &document.Stop{Time: 102})
	}

	artifacts, err := Export(dir, docs)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	paths := artifacts["demo"]
	require.Len(t, paths, 1)
	require.Equal(t, dir, filepath.Dir(paths[0]))

	file, err := store.Open(paths[0])
	require.NoError(t, err)

	node, err := file.Resolve("/RUN_demo/data/temp")
	require.NoError(t, err)
	ds, ok := node.(*store.Dataset)
	require.True(t, ok)
	require.Equal(t, []float64{20.0, 21.0}, ds.Float64s())
}

func TestExport_ErrorTearsDown(t *testing.T) {
	dir := t.TempDir()

	docs := func(yield func(document.Kind, any) bool) {
		// A stop without a start is a protocol violation.
		yield(document.KindStop, &document.Stop{Time: 1})
	}

	_, err := Export(dir, docs, serializer.WithNewFileEach(true))
	require.Error(t, err)
}
