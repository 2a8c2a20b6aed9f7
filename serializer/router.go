package serializer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/measuredat/nexo/document"
	"github.com/measuredat/nexo/errs"
	"github.com/measuredat/nexo/store"
)

// Descriptor registers a declared data stream. The stream named "primary"
// maps onto the run's main data node; every other name gets its own child
// node. Re-declaring an existing stream name is a protocol violation.
func (s *Serializer) Descriptor(doc *document.Descriptor) error {
	if err := s.requireActive(); err != nil {
		return err
	}

	// Auxiliary fit-preparation streams are dropped wholesale. Their
	// batches later fall through as unknown stream identifiers.
	if strings.Contains(doc.Name, fitReadyingMarker) {
		s.logger.Debug("ignoring auxiliary stream", "name", doc.Name)
		return nil
	}

	if _, ok := s.streamNames[doc.Name]; ok {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateStream, doc.Name)
	}
	s.streamNames[doc.Name] = doc.UID

	// The live-metadata pseudo-stream has no group of its own; its batches
	// are redirected into measurement_details.
	if doc.Name == liveMetadataStream {
		s.liveMeta[doc.UID] = struct{}{}
		return nil
	}

	group := s.dataEntry
	if doc.Name != "primary" {
		var err error
		group, err = s.dataEntry.CreateGroup(doc.Name)
		if err != nil {
			return err
		}
		group.SetAttr("NX_class", "NXdata")
	}

	s.streamGroups[doc.UID] = group
	s.streamMeta[doc.UID] = doc.DataKeys

	return nil
}

// EventBatch appends one batch of rows to its stream's arrays. Batches for
// unknown stream identifiers are discarded silently; live-metadata batches
// are written flat into measurement_details and never touch the arrival
// ledger.
func (s *Serializer) EventBatch(doc *document.EventBatch) error {
	if err := s.requireActive(); err != nil {
		return err
	}

	if _, ok := s.liveMeta[doc.Descriptor]; ok {
		return s.writeLiveMetadata(doc)
	}

	group, ok := s.streamGroups[doc.Descriptor]
	if !ok {
		s.logger.Debug("discarding batch for unknown stream", "descriptor", doc.Descriptor)
		return nil
	}

	rows := doc.Rows()
	s.ledger.record(doc.Descriptor, rows)

	if err := s.appendTimes(group, doc.Time); err != nil {
		return err
	}

	keys := s.streamMeta[doc.Descriptor]
	for _, key := range sortedDataKeys(doc.Data) {
		values := doc.Data[key]
		dataKey := keys[key]
		if vars := dataKey.Variables(); vars != nil || (len(values) > 0 && isTuple(values[0])) {
			if err := s.fanOut(group, key, values, vars, dataKey); err != nil {
				return err
			}
			s.recordChannel(key, doc.Descriptor)
			continue
		}

		arr, err := store.CoerceColumn(values)
		if err != nil {
			s.logger.Warn("skipping unstorable channel batch", "channel", key, "error", err)
			continue
		}
		if err := s.appendColumn(group, key, arr, dataKey); err != nil {
			return err
		}
		s.recordChannel(key, doc.Descriptor)
	}

	return nil
}

func (s *Serializer) requireActive() error {
	switch s.state {
	case awaitingStart:
		return errs.ErrNoRunStarted
	case stopped:
		return errs.ErrRunStopped
	}

	return nil
}

// appendTimes grows the stream's absolute and run-relative time arrays.
func (s *Serializer) appendTimes(group *store.Group, times []float64) error {
	if err := s.appendFloat64s(group, "time", times); err != nil {
		return err
	}

	elapsed := make([]float64, len(times))
	for i, t := range times {
		elapsed[i] = t - s.startTime
	}

	return s.appendFloat64s(group, "ElapsedTime", elapsed)
}

func (s *Serializer) appendFloat64s(group *store.Group, name string, values []float64) error {
	arr := store.Float64Array(values)
	if ds, ok := group.Dataset(name); ok {
		return ds.Append(arr)
	}
	_, err := group.CreateDataset(name, arr, timeChunk)

	return err
}

// fanOut demultiplexes a structured or variable-count channel into one
// sub-array per named field, under a child group carrying the channel key.
func (s *Serializer) fanOut(group *store.Group, key string, values []any, vars []string, dataKey document.DataKey) error {
	sub, err := group.RequireGroup(key)
	if err != nil {
		return err
	}

	names := vars
	if names == nil {
		if t, ok := values[0].(document.Tuple); ok {
			names = t.Names
		}
	}

	for _, name := range names {
		column := make([]any, 0, len(values))
		for _, v := range values {
			field, ok := tupleField(v, name)
			if !ok {
				continue
			}
			column = append(column, field)
		}
		if len(column) == 0 {
			continue
		}

		arr, err := store.CoerceColumn(column)
		if err != nil {
			s.logger.Warn("skipping unstorable field", "channel", key, "field", name, "error", err)
			continue
		}
		if err := s.appendColumn(sub, name, arr, dataKey); err != nil {
			return err
		}
	}

	return nil
}

// appendColumn grows a channel dataset by one batch, creating it from the
// batch on first write and attaching declared plus instrument metadata as
// attributes. A batch with a non-positive trailing dimension is skipped
// with a diagnostic; trailing-shape mismatches on grown datasets stay
// fatal.
func (s *Serializer) appendColumn(group *store.Group, key string, arr store.Array, dataKey document.DataKey) error {
	if ds, ok := group.Dataset(key); ok {
		return ds.Append(arr)
	}

	ds, err := group.CreateDataset(key, arr, timeChunk)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidShape) {
			s.logger.Warn("skipping batch with degenerate shape",
				"channel", key, "shape", arr.Shape)
			return nil
		}

		return err
	}

	for _, attr := range sortedKeys(dataKey) {
		ds.SetAttr(attr, dataKey[attr])
	}
	if meta := s.channelMeta[key]; meta != nil {
		for _, attr := range sortedKeys(meta) {
			ds.SetAttr(attr, meta[attr])
		}
	}

	return nil
}

// recordChannel tracks, per channel, the ordered set of streams that wrote
// to it and the first-write order across channels.
func (s *Serializer) recordChannel(key, stream string) {
	streams, seen := s.channelStreams[key]
	if !seen {
		s.channelOrder = append(s.channelOrder, key)
	}
	for _, id := range streams {
		if id == stream {
			return
		}
	}
	s.channelStreams[key] = append(streams, stream)
}

// writeLiveMetadata flattens a live-metadata batch's structured records
// into measurement_details.
func (s *Serializer) writeLiveMetadata(doc *document.EventBatch) error {
	details, err := s.entry.RequireGroup("measurement_details")
	if err != nil {
		return err
	}

	for _, key := range sortedDataKeys(doc.Data) {
		values := doc.Data[key]
		if len(values) == 0 {
			continue
		}

		switch v := values[0].(type) {
		case map[string]any:
			if err := projectMapping(details, v); err != nil {
				return err
			}
		case document.Tuple:
			for i, name := range v.Names {
				if err := details.SetValue(name, v.Values[i]); err != nil {
					return err
				}
			}
		default:
			if err := details.SetValue(key, v); err != nil {
				return err
			}
		}
	}

	return nil
}

func isTuple(v any) bool {
	_, ok := v.(document.Tuple)
	return ok
}

// tupleField extracts a named field from a structured row value.
func tupleField(v any, name string) (any, bool) {
	switch row := v.(type) {
	case document.Tuple:
		return row.Field(name)
	case map[string]any:
		field, ok := row[name]
		return field, ok
	default:
		return nil, false
	}
}

// sortedDataKeys returns a batch's channel keys in deterministic order.
func sortedDataKeys(data map[string][]any) []string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	return keys
}
