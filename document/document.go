// Package document defines the typed document model consumed by the
// serializer.
//
// A run is delivered as a stream of (kind, document) pairs in causal order:
// exactly one start, any number of descriptor / event-batch pairs, exactly
// one stop. Validation and normalization of raw documents happen upstream;
// this package only carries the already-validated shapes.
package document

// Kind identifies the document type of one item in a run's stream.
type Kind string

const (
	KindStart      Kind = "start"
	KindDescriptor Kind = "descriptor"
	KindEventBatch Kind = "event_batch"
	KindStop       Kind = "stop"
)

// Start opens a run. UID and Time are mandatory; everything else the
// producer attached (session name, user, sample, devices, plan fields)
// travels in Fields and is consumed key by key while the output hierarchy
// is built. Unconsumed fields end up in the entry as free-form metadata.
type Start struct {
	UID    string
	Time   float64 // epoch seconds
	Fields map[string]any
}

// Field returns the named free-form field.
func (s *Start) Field(key string) (any, bool) {
	v, ok := s.Fields[key]
	return v, ok
}

// StringField returns the named field coerced to a string, or "" when the
// field is absent or not a string.
func (s *Start) StringField(key string) string {
	v, ok := s.Fields[key]
	if !ok {
		return ""
	}
	str, _ := v.(string)

	return str
}

// DataKey carries the per-channel metadata a descriptor declares: units,
// shape, source and any free-form attributes. Values are attached to the
// channel's dataset as attributes on first write.
type DataKey map[string]any

// Variables returns the declared variable names of a variable-count signal,
// or nil when the data key declares none.
func (k DataKey) Variables() []string {
	raw, ok := k["variables"]
	if !ok {
		return nil
	}

	switch vars := raw.(type) {
	case []string:
		return vars
	case []any:
		names := make([]string, 0, len(vars))
		for _, v := range vars {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}

		return names
	default:
		return nil
	}
}

// Descriptor declares a named data stream within a run. UID identifies the
// stream in subsequent event batches; Name is the human-readable stream
// name ("primary" maps onto the run's main data node). DataKeys maps each
// channel key to its declared metadata.
type Descriptor struct {
	UID      string
	Name     string
	DataKeys map[string]DataKey
}

// EventBatch delivers one or more rows for the stream identified by
// Descriptor. Time holds one absolute timestamp per row; Data holds, per
// channel key, one value per row (scalars, arrays, or Tuple records).
type EventBatch struct {
	Descriptor string
	Time       []float64
	Data       map[string][]any
}

// Rows returns the number of rows in the batch.
func (b *EventBatch) Rows() int {
	return len(b.Time)
}

// Stop closes a run.
type Stop struct {
	Time       float64
	ExitStatus string
	Reason     string
}

// Tuple is a structured row value: an ordered list of named fields, the Go
// rendering of a record-typed channel. Field order is preserved so fan-out
// into sub-datasets is deterministic.
type Tuple struct {
	Names  []string
	Values []any
}

// Field returns the value of the named tuple field.
func (t Tuple) Field(name string) (any, bool) {
	for i, n := range t.Names {
		if n == name {
			return t.Values[i], true
		}
	}

	return nil, false
}

// Len returns the number of fields in the tuple.
func (t Tuple) Len() int {
	return len(t.Names)
}
