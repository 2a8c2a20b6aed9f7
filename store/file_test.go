package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/measuredat/nexo/errs"
	"github.com/measuredat/nexo/format"
)

func buildSampleTree(t *testing.T, f *File) {
	t.Helper()

	entry, err := f.Root().CreateGroup("entry")
	require.NoError(t, err)
	entry.SetAttr("NX_class", "NXentry")
	require.NoError(t, entry.SetValue("scan_id", 7))

	data, err := entry.CreateGroup("data")
	require.NoError(t, err)

	ds, err := data.CreateDataset("temp", Float64Array([]float64{20.5, 20.6, 20.7}), 1)
	require.NoError(t, err)
	ds.SetAttr("units", "degC")

	_, err = data.CreateDataset("state", StringArray([]string{"ramping", "hold"}), 1)
	require.NoError(t, err)

	_, err = data.CreateDataset("flags", BoolArray([]bool{true, false, true}), 1)
	require.NoError(t, err)

	_, err = data.CreateDataset("counts", Int64Array([]int64{10, 20, 30}), 1)
	require.NoError(t, err)

	_, err = entry.CreateSoftLink("measurement", "/entry/data")
	require.NoError(t, err)
}

func verifySampleTree(t *testing.T, f *File) {
	t.Helper()

	entry, ok := f.Root().Group("entry")
	require.True(t, ok)
	cls, _ := entry.Attr("NX_class")
	require.Equal(t, "NXentry", cls)

	v, ok := entry.Value("scan_id")
	require.True(t, ok)
	require.EqualValues(t, 7, v)

	data, ok := entry.Group("data")
	require.True(t, ok)

	temp, ok := data.Dataset("temp")
	require.True(t, ok)
	require.Equal(t, []float64{20.5, 20.6, 20.7}, temp.Float64s())
	units, _ := temp.Attr("units")
	require.Equal(t, "degC", units)

	state, ok := data.Dataset("state")
	require.True(t, ok)
	require.Equal(t, []string{"ramping", "hold"}, state.Strings())

	flags, ok := data.Dataset("flags")
	require.True(t, ok)
	require.Equal(t, []bool{true, false, true}, flags.Bools())

	counts, ok := data.Dataset("counts")
	require.True(t, ok)
	require.Equal(t, []int64{10, 20, 30}, counts.Int64s())

	node, err := f.Resolve("/entry/measurement/temp")
	require.NoError(t, err)
	linked, ok := node.(*Dataset)
	require.True(t, ok)
	require.Equal(t, 3, linked.Rows())
}

func TestFile_RoundTrip(t *testing.T) {
	compressions := []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	}

	for _, ct := range compressions {
		t.Run(ct.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "run.nxo")

			f, err := Create(path, ModeExclusive, WithCompression(ct))
			require.NoError(t, err)
			buildSampleTree(t, f)
			require.NoError(t, f.Close())

			back, err := Open(path)
			require.NoError(t, err)
			require.Equal(t, ct, back.Compression())
			verifySampleTree(t, back)
		})
	}
}

func TestFile_VirtualDatasetPersistsMaterialized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.nxo")

	f, err := Create(path, ModeExclusive)
	require.NoError(t, err)

	root := f.Root()
	a, err := root.CreateDataset("a", Float64Array([]float64{1, 2, 3}), 1)
	require.NoError(t, err)
	b, err := root.CreateDataset("b", Float64Array([]float64{4, 5}), 1)
	require.NoError(t, err)

	layout := NewVirtualLayout(5, a)
	require.NoError(t, layout.MapSlice(0, NewVirtualSource(a), 0, 3))
	require.NoError(t, layout.MapSlice(3, NewVirtualSource(b), 0, 2))
	_, err = root.CreateVirtualDataset("view", layout)
	require.NoError(t, err)

	require.NoError(t, f.Close())

	back, err := Open(path)
	require.NoError(t, err)
	view, ok := back.Root().Dataset("view")
	require.True(t, ok)
	require.Equal(t, []float64{1, 2, 3, 4, 5}, view.Float64s())
}

func TestCreate_ExclusiveFailsOnExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.nxo")

	f, err := Create(path, ModeExclusive)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Create(path, ModeExclusive)
	require.ErrorIs(t, err, errs.ErrFileExists)
}

func TestCreate_AppendReadsExistingTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.nxo")

	f, err := Create(path, ModeExclusive)
	require.NoError(t, err)
	_, err = f.Root().CreateGroup("entry")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	again, err := Create(path, ModeAppend)
	require.NoError(t, err)
	require.True(t, again.Root().HasChild("entry"))

	_, err = again.Root().CreateGroup("entry_1")
	require.NoError(t, err)
	require.NoError(t, again.Close())

	back, err := Open(path)
	require.NoError(t, err)
	require.True(t, back.Root().HasChild("entry"))
	require.True(t, back.Root().HasChild("entry_1"))
}

func TestCreate_TruncateDiscardsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.nxo")

	f, err := Create(path, ModeExclusive)
	require.NoError(t, err)
	_, err = f.Root().CreateGroup("old")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	fresh, err := Create(path, ModeTruncate)
	require.NoError(t, err)
	require.False(t, fresh.Root().HasChild("old"))
	require.NoError(t, fresh.Close())
}

func TestOpen_DetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.nxo")

	f, err := Create(path, ModeExclusive)
	require.NoError(t, err)
	buildSampleTree(t, f)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Flip one payload byte; the header digest must catch it.
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Open(path)
	require.ErrorIs(t, err, errs.ErrChecksumMismatch)
}

func TestOpen_RejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.nxo")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a container"), 0o644))

	_, err := Open(path)
	require.ErrorIs(t, err, errs.ErrInvalidMagicNumber)
}

func TestFile_CloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.nxo")

	f, err := Create(path, ModeExclusive)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}
