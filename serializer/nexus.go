package serializer

import (
	"runtime/debug"
	"strings"

	"github.com/measuredat/nexo/store"
)

// nexusDefinition names the standardized application schema the projection
// follows.
const nexusDefinition = "NXsensor_scan"

// projectNexus re-links the primary entry under a second top-level node
// following the standardized schema. Data is cross-referenced, never
// copied; the few fields the schema requires but the primary record does
// not carry are filled with fixed placeholders. The projection is
// best-effort and never fails the run.
func (s *Serializer) projectNexus() {
	name := strings.TrimPrefix(s.entryName, entryNamePrefix)
	root := s.file.Root()

	nexus, err := root.CreateGroup("NeXus_" + name)
	if err != nil {
		s.logger.Warn("schema projection skipped", "error", err)
		return
	}
	nexus.SetAttr("NX_class", "NXentry")
	nexus.SetAttr("definition_version", "")
	if err := nexus.SetValue("definition", nexusDefinition); err != nil {
		s.logger.Warn("schema projection incomplete", "error", err)
		return
	}

	entryPath := s.entry.Path()
	s.linkInto(nexus, "user", entryPath+"/user")
	s.linkInto(nexus, "sample", entryPath+"/sample")
	s.linkInto(nexus, "experiment_description", entryPath+"/measurement_details")
	s.linkInto(nexus, "start_time", entryPath+"/measurement_details/start_time")
	s.linkInto(nexus, "end_time", entryPath+"/measurement_details/end_time")

	if info, err := nexus.CreateGroup("additional_information"); err == nil {
		info.SetAttr("NX_class", "NXcollection")
		s.linkInto(info, "measurement_details", entryPath+"/measurement_details")
		s.linkInto(info, "program", entryPath+"/program")
	}

	s.projectProcess(nexus)
	s.projectInstruments(nexus, entryPath)
	s.projectData(nexus)
}

func (s *Serializer) projectProcess(nexus *store.Group) {
	process, err := nexus.CreateGroup("process")
	if err != nil {
		s.logger.Warn("process projection skipped", "error", err)
		return
	}
	process.SetAttr("NX_class", "NXprocess")
	process.SetAttr("program_url", "https://github.com/measuredat/nexo")

	version := ""
	if info, ok := debug.ReadBuildInfo(); ok {
		version = info.Main.Version
	}
	process.SetAttr("version", version)

	if err := process.SetValue("program", engineName); err != nil {
		s.logger.Warn("process projection incomplete", "error", err)
	}
}

// projectInstruments links every device node and writes, through the link
// target, the environment placeholders the schema requires.
func (s *Serializer) projectInstruments(nexus *store.Group, entryPath string) {
	instruments, ok := s.entry.Group("instruments")
	if !ok {
		return
	}

	for _, dev := range instruments.Children() {
		devGroup, ok := instruments.Group(dev)
		if !ok {
			continue
		}

		// Placeholders land in the primary tree, so the projection's link
		// resolves to a complete environment node.
		env, err := devGroup.RequireGroup("environment")
		if err != nil {
			s.logger.Warn("environment placeholders skipped", "device", dev, "error", err)
			continue
		}
		env.SetAttr("NX_class", "NXenvironment")
		if !env.HasChild("calibration_time") {
			if err := env.SetValue("calibration_time", 0.0); err != nil {
				s.logger.Warn("environment placeholders incomplete", "device", dev, "error", err)
				continue
			}
		}
		if !env.HasChild("run_control") {
			rc, err := env.CreateGroup("run_control")
			if err == nil {
				rc.SetAttr("description", "placeholder")
				if err := rc.SetValue("value", 0.0); err != nil {
					s.logger.Warn("environment placeholders incomplete", "device", dev, "error", err)
				}
			}
		}
		if !env.HasChild("pid") {
			if pid, err := env.CreateGroup("pid"); err == nil {
				pid.SetAttr("NX_class", "NXpid")
			}
		}
		if ctrl, err := env.RequireGroup("independent_controllers"); err == nil {
			ctrl.SetAttr("NX_class", "NXcollection")
		}
		if sens, err := env.RequireGroup("measurement_sensors"); err == nil {
			sens.SetAttr("NX_class", "NXcollection")
			if sensors, ok := devGroup.Group("sensors"); ok {
				base := sensors.Path()
				for _, name := range sensors.Children() {
					if !sens.HasChild(name) {
						s.linkInto(sens, name, base+"/"+name)
					}
				}
			}
		}

		s.linkInto(nexus, dev, entryPath+"/instruments/"+dev)
	}
}

// projectData links the primary data node's children under a fresh data
// node so consumers find the run's series where the schema expects them.
func (s *Serializer) projectData(nexus *store.Group) {
	if s.dataEntry == nil {
		return
	}

	data, err := nexus.CreateGroup("data")
	if err != nil {
		s.logger.Warn("data projection skipped", "error", err)
		return
	}
	data.SetAttr("NX_class", "NXdata")

	base := s.dataEntry.Path()
	for _, child := range s.dataEntry.Children() {
		s.linkInto(data, child, base+"/"+child)
	}
}

func (s *Serializer) linkInto(group *store.Group, name, target string) {
	if _, err := group.CreateSoftLink(name, target); err != nil {
		s.logger.Warn("link omitted", "name", name, "target", target, "error", err)
	}
}
