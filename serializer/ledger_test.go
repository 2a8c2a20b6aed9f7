package serializer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedger_CoalescesAdjacentVisits(t *testing.T) {
	var l arrivalLedger
	l.record("a", 3)
	l.record("a", 2)
	l.record("b", 1)
	l.record("a", 4)

	require.Equal(t, arrivalLedger{
		{stream: "a", rows: 5},
		{stream: "b", rows: 1},
		{stream: "a", rows: 4},
	}, l)
}

func TestLedger_NoAdjacentEntriesForSameStream(t *testing.T) {
	var l arrivalLedger
	visits := []struct {
		stream string
		rows   int
	}{
		{"a", 1}, {"a", 1}, {"b", 2}, {"b", 3}, {"a", 1}, {"c", 1}, {"c", 1},
	}
	total := 0
	for _, v := range visits {
		l.record(v.stream, v.rows)
		total += v.rows
	}

	for i := 1; i < len(l); i++ {
		require.NotEqual(t, l[i-1].stream, l[i].stream)
	}

	all := map[string]struct{}{"a": {}, "b": {}, "c": {}}
	require.Equal(t, total, l.totalRows(all))
}

func TestLedger_IgnoresEmptyVisits(t *testing.T) {
	var l arrivalLedger
	l.record("a", 0)
	l.record("a", -1)
	require.Empty(t, l)

	l.record("a", 2)
	l.record("b", 0)
	l.record("a", 3)
	require.Equal(t, arrivalLedger{{stream: "a", rows: 5}}, l)
}

func TestLedger_TotalRowsFiltersByStream(t *testing.T) {
	var l arrivalLedger
	l.record("a", 5)
	l.record("b", 3)
	l.record("a", 5)

	require.Equal(t, 10, l.totalRows(map[string]struct{}{"a": {}}))
	require.Equal(t, 3, l.totalRows(map[string]struct{}{"b": {}}))
	require.Equal(t, 0, l.totalRows(map[string]struct{}{"c": {}}))
}
