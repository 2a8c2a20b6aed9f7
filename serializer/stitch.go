package serializer

import (
	"github.com/measuredat/nexo/document"
	"github.com/measuredat/nexo/store"
)

const (
	valueLogName   = "value_log"
	timestampsName = "timestamps"
)

// Stop closes the run: it stamps the end time, stitches every fragmented
// channel into virtually contiguous views, runs the best-effort exporters
// and flushes the container.
func (s *Serializer) Stop(doc *document.Stop) error {
	if err := s.requireActive(); err != nil {
		return err
	}

	details, err := s.entry.RequireGroup("measurement_details")
	if err != nil {
		return err
	}
	if err := details.SetValue("end_time", isoTimestamp(doc.Time)); err != nil {
		return err
	}
	if doc.ExitStatus != "" {
		if err := details.SetValue("exit_status", doc.ExitStatus); err != nil {
			return err
		}
	}
	if doc.Reason != "" {
		if err := details.SetValue("exit_reason", doc.Reason); err != nil {
			return err
		}
	}

	if err := s.stitchChannels(); err != nil {
		return err
	}

	s.exportPlots()

	if s.nexusOut {
		s.projectNexus()
	}

	s.state = stopped
	s.logger.Debug("run stopped", "entry", s.entryName)

	return s.Close()
}

// stitchChannels assembles, per channel with a canonical location, one
// value view and one timestamp view spanning every stream the channel ever
// wrote through, in true arrival order.
func (s *Serializer) stitchChannels() error {
	for _, key := range s.channelOrder {
		location := s.channelLinks[key]
		if location == nil {
			continue
		}
		streams := s.channelStreams[key]
		if len(streams) == 0 {
			continue
		}

		if err := s.stitchChannel(key, location, streams); err != nil {
			return err
		}
	}

	return nil
}

func (s *Serializer) stitchChannel(key string, location *store.Group, streams []string) error {
	contributing := make(map[string]struct{}, len(streams))
	values := make(map[string]*store.Dataset, len(streams))
	times := make(map[string]*store.Dataset, len(streams))

	totalLen := 0
	for _, id := range streams {
		group := s.streamGroups[id]
		if group == nil {
			continue
		}
		valueDS, ok := group.Dataset(key)
		if !ok {
			// Fanned-out channels have a group here, not a dataset; they
			// are already split per field and need no stitching.
			s.logger.Debug("channel has no plain dataset, not stitched", "channel", key, "stream", id)
			continue
		}
		timeDS, ok := group.Dataset("time")
		if !ok {
			continue
		}

		contributing[id] = struct{}{}
		values[id] = valueDS
		times[id] = timeDS
		totalLen += timeDS.Rows()
	}
	if len(contributing) == 0 || totalLen == 0 {
		return nil
	}

	var sampleValue, sampleTime *store.Dataset
	for _, id := range streams {
		if _, ok := contributing[id]; ok {
			sampleValue = values[id]
			sampleTime = times[id]
			break
		}
	}

	valueLayout := store.NewVirtualLayout(totalLen, sampleValue)
	timeLayout := store.NewVirtualLayout(totalLen, sampleTime)

	// Replay the arrival ledger with one read cursor per stream. Each
	// ledger entry moves its stream's cursor forward and lands the rows at
	// the next open slot, reconstructing the interleaving instead of
	// concatenating stream by stream.
	cursors := make(map[string]int, len(contributing))
	dst := 0
	for _, entry := range s.ledger {
		if _, ok := contributing[entry.stream]; !ok {
			continue
		}
		src := cursors[entry.stream]
		if err := valueLayout.MapSlice(dst, store.NewVirtualSource(values[entry.stream]), src, entry.rows); err != nil {
			return err
		}
		if err := timeLayout.MapSlice(dst, store.NewVirtualSource(times[entry.stream]), src, entry.rows); err != nil {
			return err
		}
		cursors[entry.stream] = src + entry.rows
		dst += entry.rows
	}

	if _, err := location.CreateVirtualDataset(valueLogName, valueLayout); err != nil {
		return err
	}
	if _, err := location.CreateVirtualDataset(timestampsName, timeLayout); err != nil {
		return err
	}

	return nil
}
