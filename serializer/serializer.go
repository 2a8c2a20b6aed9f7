package serializer

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/measuredat/nexo/document"
	"github.com/measuredat/nexo/errs"
	"github.com/measuredat/nexo/format"
	"github.com/measuredat/nexo/internal/options"
	"github.com/measuredat/nexo/manager"
	"github.com/measuredat/nexo/store"
)

const (
	// containerExt is the extension of generated container files.
	containerExt = ".nxo"

	// entryNamePrefix namespaces run entries inside a container so several
	// runs can share one file in append mode.
	entryNamePrefix = "RUN_"

	// defaultEntryName is used when the start document carries no session
	// name.
	defaultEntryName = "entry"

	// liveMetadataStream is the reserved pseudo-stream whose batches are
	// redirected into measurement_details instead of a stream group.
	liveMetadataStream = "_live_metadata_reading_"

	// fitReadyingMarker marks auxiliary descriptors that must be ignored
	// entirely.
	fitReadyingMarker = "_fits_readying_"

	// timeChunk is the chunk size of the per-stream time arrays.
	timeChunk = 1
)

type runState uint8

const (
	awaitingStart runState = iota
	active
	stopped
)

// FileNamer derives the relative output file name from a start document.
// Placeholders in user-supplied patterns are filled by an external
// collaborator; the serializer only consumes the finished prefix.
type FileNamer func(start *document.Start) string

// Serializer converts one run's document stream into a hierarchical
// container file. Documents must arrive in causal order: exactly one start,
// any number of descriptor / event-batch pairs, exactly one stop. The
// serializer is single-threaded and pull-driven; each call runs to
// completion before the next document is delivered.
//
// The caller is responsible for invoking Close on every exit path,
// including mid-run failure:
//
//	s, err := serializer.New(dir)
//	if err != nil { ... }
//	defer s.Close()
type Serializer struct {
	mgr      *manager.Manager
	namer    FileNamer
	plotData []PlotDescriptor
	nexusOut bool
	logger   *slog.Logger

	state     runState
	file      *store.File
	entry     *store.Group
	dataEntry *store.Group
	entryName string
	startTime float64

	streamGroups map[string]*store.Group // stream ID → group
	streamNames  map[string]string       // stream name → stream ID
	streamMeta   map[string]map[string]document.DataKey
	liveMeta     map[string]struct{} // stream IDs redirected to measurement_details

	channelLinks   map[string]*store.Group   // channel key → canonical sensor group
	channelMeta    map[string]map[string]any // channel key → instrument-declared metadata
	channelStreams map[string][]string       // channel key → contributing stream IDs, first-seen order
	channelOrder   []string                  // channel keys in first-write order

	ledger arrivalLedger
}

// config collects the options applied by New before the Serializer is
// assembled.
type config struct {
	directory   string
	mgr         *manager.Manager
	namer       FileNamer
	plotData    []PlotDescriptor
	nexusOut    bool
	logger      *slog.Logger
	newFileEach bool
	compression format.CompressionType
}

// Option configures a Serializer.
type Option = options.Option[*config]

// WithFileNamer sets the function deriving the output file name from the
// start document. The default uses the run UID.
func WithFileNamer(namer FileNamer) Option {
	return options.NoError(func(c *config) {
		c.namer = namer
	})
}

// WithManager supplies an externally owned resource manager. The serializer
// will use it for all reservations but will still close it on Close, so the
// resulting container is flushed together with the run.
func WithManager(m *manager.Manager) Option {
	return options.NoError(func(c *config) {
		c.mgr = m
	})
}

// WithPlotData supplies the plot descriptors exported best-effort at stop.
func WithPlotData(plots []PlotDescriptor) Option {
	return options.NoError(func(c *config) {
		c.plotData = plots
	})
}

// WithNexusOutput enables the standardized alternate-schema projection at
// stop.
func WithNexusOutput(enabled bool) Option {
	return options.NoError(func(c *config) {
		c.nexusOut = enabled
	})
}

// WithLogger sets the logger used for non-fatal diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(c *config) {
		c.logger = logger
	})
}

// WithNewFileEach controls whether every run forces a fresh output file
// (default true). With false, an existing file is reopened and the new run
// becomes an additional entry.
func WithNewFileEach(enabled bool) Option {
	return options.NoError(func(c *config) {
		c.newFileEach = enabled
	})
}

// WithCompression selects the container payload compression.
func WithCompression(ct format.CompressionType) Option {
	return options.New(func(c *config) error {
		if !ct.IsValid() {
			return fmt.Errorf("%w: %d", errs.ErrInvalidCompression, uint8(ct))
		}
		c.compression = ct

		return nil
	})
}

// New creates a Serializer writing into the given output directory. An
// empty directory means the current working directory.
func New(directory string, opts ...Option) (*Serializer, error) {
	cfg := &config{
		directory:   directory,
		newFileEach: true,
		compression: format.CompressionS2,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	mgr := cfg.mgr
	if mgr == nil {
		var err error
		mgr, err = manager.New(cfg.directory,
			manager.WithNewFileEach(cfg.newFileEach),
			manager.WithCompression(cfg.compression),
		)
		if err != nil {
			return nil, err
		}
	}

	namer := cfg.namer
	if namer == nil {
		namer = func(start *document.Start) string {
			return start.UID + "-"
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Serializer{
		mgr:            mgr,
		namer:          namer,
		plotData:       cfg.plotData,
		nexusOut:       cfg.nexusOut,
		logger:         logger,
		streamGroups:   make(map[string]*store.Group),
		streamNames:    make(map[string]string),
		streamMeta:     make(map[string]map[string]document.DataKey),
		liveMeta:       make(map[string]struct{}),
		channelLinks:   make(map[string]*store.Group),
		channelMeta:    make(map[string]map[string]any),
		channelStreams: make(map[string][]string),
	}, nil
}

// Serialize routes one (kind, document) pair to the matching handler.
func (s *Serializer) Serialize(kind document.Kind, doc any) error {
	switch kind {
	case document.KindStart:
		d, ok := doc.(*document.Start)
		if !ok {
			return fmt.Errorf("start document has type %T", doc)
		}

		return s.Start(d)
	case document.KindDescriptor:
		d, ok := doc.(*document.Descriptor)
		if !ok {
			return fmt.Errorf("descriptor document has type %T", doc)
		}

		return s.Descriptor(d)
	case document.KindEventBatch:
		d, ok := doc.(*document.EventBatch)
		if !ok {
			return fmt.Errorf("event batch document has type %T", doc)
		}

		return s.EventBatch(d)
	case document.KindStop:
		d, ok := doc.(*document.Stop)
		if !ok {
			return fmt.Errorf("stop document has type %T", doc)
		}

		return s.Stop(d)
	default:
		return fmt.Errorf("unknown document kind %q", kind)
	}
}

// Artifacts returns, per entry label, the absolute output paths produced.
func (s *Serializer) Artifacts() map[string][]string {
	return s.mgr.Artifacts()
}

// Close releases every resource the serializer allocated. It is idempotent
// and must be called on every exit path; the container on storage reflects
// whatever was written up to this point.
func (s *Serializer) Close() error {
	return s.mgr.Close()
}

// isoTimestamp formats an epoch-seconds timestamp as ISO-8601 with the
// local offset, microsecond precision.
func isoTimestamp(ts float64) string {
	sec, frac := math.Modf(ts)

	return time.Unix(int64(sec), int64(frac*1e9)).Local().Format("2006-01-02T15:04:05.999999-07:00")
}
