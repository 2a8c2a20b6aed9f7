package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/measuredat/nexo/errs"
)

func newTestRoot() *Group {
	return newGroup("", nil)
}

func TestGroup_CreateGroup(t *testing.T) {
	root := newTestRoot()

	entry, err := root.CreateGroup("entry")
	require.NoError(t, err)
	require.Equal(t, "/entry", entry.Path())

	_, err = root.CreateGroup("entry")
	require.ErrorIs(t, err, errs.ErrNodeExists)
}

func TestGroup_RequireGroup(t *testing.T) {
	root := newTestRoot()

	a, err := root.RequireGroup("fits")
	require.NoError(t, err)

	b, err := root.RequireGroup("fits")
	require.NoError(t, err)
	require.Same(t, a, b)

	require.NoError(t, root.SetValue("leaf", 1))
	_, err = root.RequireGroup("leaf")
	require.ErrorIs(t, err, errs.ErrNotAGroup)
}

func TestGroup_ChildrenKeepInsertionOrder(t *testing.T) {
	root := newTestRoot()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := root.CreateGroup(name)
		require.NoError(t, err)
	}

	require.Equal(t, []string{"zeta", "alpha", "mid"}, root.Children())
}

func TestGroup_SetValue(t *testing.T) {
	root := newTestRoot()

	require.NoError(t, root.SetValue("scan_id", 42))
	v, ok := root.Value("scan_id")
	require.True(t, ok)
	require.Equal(t, 42, v)

	// Leaves may be overwritten; live-metadata batches rewrite flat fields.
	require.NoError(t, root.SetValue("scan_id", 43))
	v, _ = root.Value("scan_id")
	require.Equal(t, 43, v)

	// Non-leaf children refuse the name.
	_, err := root.CreateGroup("sub")
	require.NoError(t, err)
	require.ErrorIs(t, root.SetValue("sub", 1), errs.ErrNodeExists)
}

func TestGroup_SetValue_TextFallback(t *testing.T) {
	root := newTestRoot()

	type odd struct{ A int }
	require.NoError(t, root.SetValue("odd", odd{A: 7}))
	v, _ := root.Value("odd")
	require.IsType(t, "", v)
}

func TestGroup_Attrs(t *testing.T) {
	root := newTestRoot()
	root.SetAttr("NX_class", "NXroot")
	root.SetAttr("axes", []string{"x"})

	v, ok := root.Attr("NX_class")
	require.True(t, ok)
	require.Equal(t, "NXroot", v)
	require.Equal(t, []string{"NX_class", "axes"}, root.AttrKeys())
}

func TestGroup_SoftLinkResolution(t *testing.T) {
	root := newTestRoot()
	entry, _ := root.CreateGroup("entry")
	details, _ := entry.CreateGroup("measurement_details")
	require.NoError(t, details.SetValue("start_time", "2026-08-30T10:00:00+02:00"))

	nx, _ := root.CreateGroup("nexus")
	_, err := nx.CreateSoftLink("start_time", "/entry/measurement_details/start_time")
	require.NoError(t, err)

	node, err := root.resolve(root, "/nexus/start_time")
	require.NoError(t, err)
	leaf, ok := node.(*Leaf)
	require.True(t, ok)
	require.Equal(t, "2026-08-30T10:00:00+02:00", leaf.Value())
}

func TestGroup_ResolveMissing(t *testing.T) {
	root := newTestRoot()
	_, err := root.resolve(root, "/nope")
	require.ErrorIs(t, err, errs.ErrNodeNotFound)
}
