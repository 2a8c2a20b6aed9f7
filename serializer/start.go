package serializer

import (
	"fmt"
	"maps"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/measuredat/nexo/document"
	"github.com/measuredat/nexo/errs"
	"github.com/measuredat/nexo/internal/collision"
	"github.com/measuredat/nexo/store"
)

// engineName is recorded in every container's program node.
const engineName = "nexo"

// Start opens the run: it allocates the output container, creates the
// top-level entry with its fixed substructure (measurement details,
// program, user, sample, instruments) from the start document, and
// prepares the primary data node.
func (s *Serializer) Start(doc *document.Start) error {
	switch s.state {
	case active:
		return fmt.Errorf("%w: start %s", errs.ErrRunAlreadyStarted, doc.UID)
	case stopped:
		return fmt.Errorf("%w: start %s", errs.ErrRunStopped, doc.UID)
	case awaitingStart:
	}

	// Fields are consumed destructively while the hierarchy is built;
	// work on a copy so the caller's document survives.
	fields := maps.Clone(doc.Fields)
	if fields == nil {
		fields = make(map[string]any)
	}

	prefix := s.namer(doc)
	relPath := prefix
	if !strings.HasSuffix(relPath, containerExt) {
		relPath += containerExt
	}

	entryName := defaultEntryName
	if name := doc.StringField("session_name"); name != "" {
		entryName = name
	}

	file, err := s.mgr.Open(entryName, relPath, store.ModeAppend)
	if err != nil {
		return err
	}
	s.file = file
	s.startTime = doc.Time

	root := file.Root()
	root.SetAttr("NX_class", "NXroot")

	// Deduplicate the entry name against existing top-level entries with
	// the same incrementing-suffix policy the manager uses for paths.
	s.entryName = collision.Resolve(entryNamePrefix+entryName, "", root.HasChild)
	entry, err := root.CreateGroup(s.entryName)
	if err != nil {
		return err
	}
	entry.SetAttr("NX_class", "NXentry")
	s.entry = entry

	if err := s.buildMeasurementDetails(entry, doc, fields); err != nil {
		return err
	}
	if err := buildProgram(entry); err != nil {
		return err
	}
	if err := buildIdentityOwner(entry, "user", "NXuser", popMapping(fields, "user"), "user_id"); err != nil {
		return err
	}
	if err := buildIdentityOwner(entry, "sample", "NXsample", popMapping(fields, "sample"), ""); err != nil {
		return err
	}
	if err := s.buildInstruments(entry, popMapping(fields, "devices")); err != nil {
		return err
	}

	// Whatever the builders did not consume lands in the entry as
	// free-form metadata.
	if err := projectMapping(entry, fields); err != nil {
		return err
	}

	dataEntry, err := entry.CreateGroup("data")
	if err != nil {
		return err
	}
	dataEntry.SetAttr("NX_class", "NXdata")
	s.dataEntry = dataEntry

	s.state = active
	s.logger.Debug("run started", "uid", doc.UID, "entry", s.entryName, "path", file.Path())

	return nil
}

// buildMeasurementDetails consumes the well-known start fields into the
// measurement_details node.
func (s *Serializer) buildMeasurementDetails(entry *store.Group, doc *document.Start, fields map[string]any) error {
	details, err := entry.CreateGroup("measurement_details")
	if err != nil {
		return err
	}

	if err := details.SetValue("start_time", isoTimestamp(doc.Time)); err != nil {
		return err
	}

	renames := []struct{ from, to string }{
		{"description", "protocol_description"},
		{"identifier", "measurement_identifier"},
		{"protocol_json", "protocol_json"},
		{"plan_name", "plan_name"},
		{"plan_type", "plan_type"},
		{"protocol_overview", "protocol_overview"},
		{"python_script", "script"},
		{"scan_id", "scan_id"},
		{"session_name", "session_name"},
		{"measurement_tags", "measurement_tags"},
		{"measurement_description", "measurement_description"},
	}
	for _, r := range renames {
		if v, ok := fields[r.from]; ok {
			delete(fields, r.from)
			if err := details.SetValue(r.to, v); err != nil {
				return err
			}
		}
	}

	if doc.UID != "" {
		if err := details.SetValue("uid", doc.UID); err != nil {
			return err
		}
	}

	if vars, ok := fields["variables"]; ok {
		delete(fields, "variables")
		varGroup, err := details.CreateGroup("protocol_variables")
		if err != nil {
			return err
		}
		if err := project(varGroup, vars); err != nil {
			return err
		}
	}

	return nil
}

// buildProgram records the engine name, its version and the full build
// dependency list, so a run can be reproduced against the environment that
// produced it.
func buildProgram(entry *store.Group) error {
	program, err := entry.CreateGroup("program")
	if err != nil {
		return err
	}
	if err := program.SetValue("program_name", engineName); err != nil {
		return err
	}

	env, err := program.CreateGroup("go_environment")
	if err != nil {
		return err
	}
	env.SetAttr("go_version", runtime.Version())

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	if info.Main.Version != "" {
		if err := program.SetValue("version", info.Main.Version); err != nil {
			return err
		}
	}
	for _, dep := range info.Deps {
		name := strings.ReplaceAll(dep.Path, "/", ".")
		if env.HasChild(name) {
			continue
		}
		if err := env.SetValue(name, dep.Version); err != nil {
			return err
		}
	}

	return nil
}

// buildIdentityOwner creates a user- or sample-style node: an optional
// identity sub-record becomes a distinguished identifier child with a
// declared issuing service, and the remaining fields are pushed in via the
// recursive mapper. A record lacking any identifier field simply gets no
// identifier child.
func buildIdentityOwner(entry *store.Group, name, nxClass string, data map[string]any, altIDKey string) error {
	node, err := entry.CreateGroup(name)
	if err != nil {
		return err
	}
	node.SetAttr("NX_class", nxClass)

	if data == nil {
		return nil
	}

	idKey := ""
	if altIDKey != "" {
		if _, ok := data[altIDKey]; ok {
			idKey = altIDKey
		}
	}
	if idKey == "" {
		if _, ok := data["identifier"]; ok {
			idKey = "identifier"
		}
	}

	if idKey != "" {
		if err := buildIdentifier(node, data, idKey); err != nil {
			return err
		}
	}

	return projectMapping(node, data)
}

// buildIdentifier materializes the identity sub-record convention shared by
// user, sample and device fabrication nodes.
func buildIdentifier(node *store.Group, data map[string]any, idKey string) error {
	idGroup, err := node.CreateGroup("identifier")
	if err != nil {
		return err
	}
	idGroup.SetAttr("NX_class", "NXidentifier")

	if err := idGroup.SetValue("identifier", data[idKey]); err != nil {
		return err
	}
	delete(data, idKey)

	if full, ok := data["full_identifier"]; ok {
		delete(data, "full_identifier")
		if err := idGroup.SetValue("full_identifier", full); err != nil {
			return err
		}
	}

	service := any("unknown")
	if svc, ok := data["ELN-service"]; ok {
		delete(data, "ELN-service")
		service = svc
	}

	return idGroup.SetValue("service", service)
}

// buildInstruments creates one device node per declared device, routing
// declared channels into sensors/outputs groups and recording each
// channel's canonical location for the stitcher.
func (s *Serializer) buildInstruments(entry *store.Group, devices map[string]any) error {
	instruments, err := entry.CreateGroup("instruments")
	if err != nil {
		return err
	}

	for _, dev := range sortedKeys(devices) {
		data, ok := asMapping(devices[dev])
		if !ok {
			continue
		}
		data = maps.Clone(data)

		if err := s.buildDevice(instruments, dev, data); err != nil {
			return err
		}
	}

	return nil
}

func (s *Serializer) buildDevice(instruments *store.Group, dev string, data map[string]any) error {
	devGroup, err := instruments.CreateGroup(dev)
	if err != nil {
		return err
	}
	devGroup.SetAttr("NX_class", "NXinstrument")

	if channels := popMapping(data, "instrument_channels"); channels != nil {
		if err := s.buildChannels(devGroup, channels); err != nil {
			return err
		}
	}

	fab, err := devGroup.CreateGroup("fabrication")
	if err != nil {
		return err
	}
	fab.SetAttr("NX_class", "NXfabrication")

	model := data["device_class_name"]
	if idn, ok := data["idn"]; ok {
		delete(data, "idn")
		model = idn
	}
	if err := fab.SetValue("model", model); err != nil {
		return err
	}

	if class, ok := data["device_class_name"]; ok {
		delete(data, "device_class_name")
		if err := devGroup.SetValue("name", class); err != nil {
			return err
		}
	}
	if err := devGroup.SetValue("short_name", dev); err != nil {
		return err
	}

	idKey := ""
	if v, ok := data["ELN-instrument-id"]; ok && v != nil && v != "" {
		idKey = "ELN-instrument-id"
	} else if v, ok := data["identifier"]; ok && v != nil && v != "" {
		idKey = "identifier"
	}
	if idKey != "" {
		if err := buildIdentifier(fab, data, idKey); err != nil {
			return err
		}
	}

	if meta, ok := data["ELN-metadata"]; ok {
		delete(data, "ELN-metadata")
		if err := projectField(fab, "ELN-metadata", meta); err != nil {
			return err
		}
	}

	// Driver source files travel as python_file_* keys.
	var driverKeys []string
	for key := range data {
		if strings.HasPrefix(key, "python_file_") {
			driverKeys = append(driverKeys, key)
		}
	}
	if len(driverKeys) > 0 {
		drivers, err := devGroup.RequireGroup("driver_files")
		if err != nil {
			return err
		}
		for _, key := range driverKeys {
			if err := drivers.SetValue(key, data[key]); err != nil {
				return err
			}
			delete(data, key)
		}
	}

	return projectMapping(devGroup, data)
}

// buildChannels routes each declared instrument channel into the device's
// sensors or outputs group by its output flag and records its final
// location as the channel's canonical location.
func (s *Serializer) buildChannels(devGroup *store.Group, channels map[string]any) error {
	sensors, err := devGroup.CreateGroup("sensors")
	if err != nil {
		return err
	}
	sensors.SetAttr("NX_class", "NXcollection")
	outputs, err := devGroup.CreateGroup("outputs")
	if err != nil {
		return err
	}
	outputs.SetAttr("NX_class", "NXcollection")

	for _, ch := range sortedKeys(channels) {
		chData, ok := asMapping(channels[ch])
		if !ok {
			continue
		}
		chData = maps.Clone(chData)

		isOutput, _ := chData["output"].(bool)
		delete(chData, "output")

		declaredName, _ := chData["name"].(string)
		delete(chData, "name")
		groupName := declaredName
		if idx := strings.LastIndex(declaredName, "."); idx >= 0 {
			groupName = declaredName[idx+1:]
		}
		if groupName == "" {
			groupName = ch
		}

		parent := sensors
		nxClass := "NXsensor"
		if isOutput {
			parent = outputs
			nxClass = "NXactuator"
		}
		sensor, err := parent.CreateGroup(groupName)
		if err != nil {
			return err
		}
		sensor.SetAttr("NX_class", nxClass)
		if err := sensor.SetValue("name", ch); err != nil {
			return err
		}

		meta := popMapping(chData, "metadata")
		if meta != nil {
			if err := projectMapping(sensor, maps.Clone(meta)); err != nil {
				return err
			}
			s.channelMeta[ch] = meta
		}
		if err := projectMapping(sensor, chData); err != nil {
			return err
		}

		s.channelLinks[ch] = sensor
	}

	return nil
}

// popMapping removes and returns a nested mapping field, or nil when the
// field is absent or not a mapping.
func popMapping(fields map[string]any, key string) map[string]any {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	delete(fields, key)
	m, _ := asMapping(v)

	return m
}
