// Package nexo converts a live stream of typed measurement documents into a
// single hierarchical container file per run.
//
// A run arrives as (kind, document) pairs in causal order: exactly one
// start, any number of descriptor / event-batch pairs, exactly one stop.
// The engine builds the run's entry hierarchy at start, routes event rows
// into growable typed arrays per stream and channel, and at stop stitches
// channels whose rows landed in several streams into one virtually
// contiguous, temporally faithful view.
//
// # Core Features
//
//   - Collision-free output allocation with label and numeric suffixing
//   - Generic recursive mapping of arbitrary nested metadata into groups
//   - Incrementally growing typed arrays without a known final length
//   - Arrival-order stitching of channels fragmented across streams
//   - Best-effort plot-annotation and curve-fit export
//   - Optional standardized alternate-schema projection via soft links
//   - Container payloads compressed with None, Zstd, S2 or LZ4
//
// # Basic Usage
//
// Exporting one run:
//
//	import (
//	    "github.com/measuredat/nexo"
//	    "github.com/measuredat/nexo/document"
//	)
//
//	artifacts, err := nexo.Export("out", func(yield func(document.Kind, any) bool) {
//	    if !yield(document.KindStart, &document.Start{UID: "r1", Time: 100}) {
//	        return
//	    }
//	    // ... descriptors, event batches ...
//	    yield(document.KindStop, &document.Stop{Time: 105})
//	})
//
// For incremental control (one document per call, custom teardown), use the
// serializer package directly.
package nexo

import (
	"iter"

	"github.com/measuredat/nexo/document"
	"github.com/measuredat/nexo/serializer"
)

// Export drains one run's document stream into a container file under
// directory and returns, per logical entry label, the absolute output
// paths produced. The serializer is torn down on every exit path, so the
// container on storage reflects everything written before the first error.
func Export(directory string, docs iter.Seq2[document.Kind, any], opts ...serializer.Option) (map[string][]string, error) {
	s, err := serializer.New(directory, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	for kind, doc := range docs {
		if err := s.Serialize(kind, doc); err != nil {
			return nil, err
		}
	}

	return s.Artifacts(), nil
}
