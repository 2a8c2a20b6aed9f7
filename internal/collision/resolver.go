// Package collision resolves naming collisions with an incrementing numeric
// suffix. The same policy covers output file paths (manager) and top-level
// entry names inside a container (serializer): the first free candidate among
// name, name_1, name_2, ... wins, where a previous numeric suffix is replaced
// rather than stacked.
package collision

import (
	"fmt"
	"strings"
)

// TakenFunc reports whether a candidate name is already in use.
type TakenFunc func(name string) bool

// Resolve returns the first candidate derived from stem that is not taken.
// ext is appended to every candidate before the taken check; pass "" when
// resolving plain names. A candidate already ending in _N is advanced to
// _N+1 instead of growing a second suffix, so "run_1" becomes "run_2", not
// "run_1_1".
func Resolve(stem, ext string, taken TakenFunc) string {
	if !taken(stem + ext) {
		return stem + ext
	}

	for i := 1; ; i++ {
		prev := fmt.Sprintf("_%d", i-1)
		if i > 1 && strings.HasSuffix(stem, prev) {
			stem = strings.TrimSuffix(stem, prev) + fmt.Sprintf("_%d", i)
		} else {
			stem += fmt.Sprintf("_%d", i)
		}

		if !taken(stem + ext) {
			return stem + ext
		}
	}
}
