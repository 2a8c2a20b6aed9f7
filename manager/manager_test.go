package manager

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/measuredat/nexo/errs"
	"github.com/measuredat/nexo/store"
)

func TestCleanLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"with space", "with_space"},
		{"dots.and:colons", "dots_and-colons"},
		{"a/b\\c", "a-b-c"},
		{"what?why*", "what_why_"},
		{"a<b>c", "a_smaller_b_greater_c"},
		{`say "hi"|bye`, "say__quote_hi_quote_-bye"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, CleanLabel(tt.in), "input %q", tt.in)
	}
}

func TestReserve_RejectsAbsolutePath(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Reserve("run", "/abs/path.nxo")
	require.ErrorIs(t, err, errs.ErrAbsolutePath)
}

func TestReserve_ResolvesAgainstRoot(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	require.NoError(t, err)
	defer m.Close()

	abs, err := m.Reserve("run", "scan.nxo")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "scan.nxo"), abs)
}

func TestReserve_DisambiguatesDoubleReservation(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	require.NoError(t, err)
	defer m.Close()

	first, err := m.Reserve("my run", "scan.nxo")
	require.NoError(t, err)
	second, err := m.Reserve("my run", "scan.nxo")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	// The second path carries the cleaned label.
	require.True(t, strings.HasSuffix(second, "_my_run.nxo"), "got %q", second)

	third, err := m.Reserve("my run", "scan.nxo")
	require.NoError(t, err)
	require.NotEqual(t, second, third)
	require.True(t, strings.HasSuffix(third, "_my_run_1.nxo"), "got %q", third)
}

func TestReserve_ExistingFileForcesNewName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.nxo"), []byte("old"), 0o644))

	m, err := New(dir)
	require.NoError(t, err)
	defer m.Close()

	abs, err := m.Reserve("run", "scan.nxo")
	require.NoError(t, err)
	require.NotEqual(t, filepath.Join(dir, "scan.nxo"), abs)
}

func TestReserve_ReuseModeKeepsPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.nxo"), []byte("old"), 0o644))

	m, err := New(dir, WithNewFileEach(false))
	require.NoError(t, err)
	defer m.Close()

	abs, err := m.Reserve("run", "scan.nxo")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "scan.nxo"), abs)
}

func TestOpen_CreatesParentsAndRegistersArtifact(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	require.NoError(t, err)

	f, err := m.Open("run", filepath.Join("sub", "dir", "scan.nxo"), store.ModeExclusive)
	require.NoError(t, err)
	_, err = f.Root().CreateGroup("entry")
	require.NoError(t, err)

	require.NoError(t, m.Close())

	artifacts := m.Artifacts()
	require.Len(t, artifacts["run"], 1)
	require.FileExists(t, artifacts["run"][0])
}

func TestOpen_ExclusiveSecondCallFails(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, WithNewFileEach(false))
	require.NoError(t, err)
	defer m.Close()

	f, err := m.Open("run", "scan.nxo", store.ModeExclusive)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Reuse mode hands back the same path; exclusive creation then fails
	// against the file on storage.
	_, err = m.Open("run", "scan.nxo", store.ModeExclusive)
	require.ErrorIs(t, err, errs.ErrFileExists)
}

func TestClose_IsIdempotentAndBlocksFurtherUse(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = m.Open("run", "scan.nxo", store.ModeExclusive)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err = m.Reserve("run", "other.nxo")
	require.ErrorIs(t, err, errs.ErrManagerClosed)
}
