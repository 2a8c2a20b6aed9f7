package serializer

// ledgerEntry is one contiguous run of rows received from a single stream.
type ledgerEntry struct {
	stream string
	rows   int
}

// arrivalLedger records the temporal order in which event rows arrived
// across all streams. Adjacent batches from the same stream coalesce, so
// the ledger stays small for the common single-stream run while preserving
// the exact interleaving of multi-stream runs. The stitcher replays it at
// stop time to reassemble per-channel logs in arrival order.
type arrivalLedger []ledgerEntry

// record appends rows received from a stream, merging into the previous
// entry when the stream matches.
func (l *arrivalLedger) record(stream string, rows int) {
	if rows <= 0 {
		return
	}
	if n := len(*l); n > 0 && (*l)[n-1].stream == stream {
		(*l)[n-1].rows += rows
		return
	}
	*l = append(*l, ledgerEntry{stream: stream, rows: rows})
}

// totalRows sums the recorded rows of the given streams.
func (l arrivalLedger) totalRows(streams map[string]struct{}) int {
	total := 0
	for _, e := range l {
		if _, ok := streams[e.stream]; ok {
			total += e.rows
		}
	}

	return total
}
