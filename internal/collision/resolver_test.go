package collision

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func takenSet(names ...string) TakenFunc {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	return func(name string) bool {
		_, ok := set[name]
		return ok
	}
}

func TestResolve_Free(t *testing.T) {
	got := Resolve("run", "", takenSet())
	require.Equal(t, "run", got)
}

func TestResolve_FirstSuffix(t *testing.T) {
	got := Resolve("run", "", takenSet("run"))
	require.Equal(t, "run_1", got)
}

func TestResolve_ReplacesNumericSuffix(t *testing.T) {
	got := Resolve("run", "", takenSet("run", "run_1", "run_2"))
	require.Equal(t, "run_3", got)
}

func TestResolve_WithExtension(t *testing.T) {
	taken := takenSet("scan.nxo", "scan_1.nxo")
	got := Resolve("scan", ".nxo", taken)
	require.Equal(t, "scan_2.nxo", got)
}

func TestResolve_ExtensionNotSuffixed(t *testing.T) {
	// The numeric suffix lands on the stem, never after the extension.
	got := Resolve("scan", ".nxo", takenSet("scan.nxo"))
	require.Equal(t, "scan_1.nxo", got)
}
