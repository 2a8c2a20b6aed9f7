package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/measuredat/nexo/errs"
	"github.com/measuredat/nexo/format"
	"github.com/measuredat/nexo/internal/options"
)

// Mode controls how Create behaves when the target path already exists.
type Mode uint8

const (
	// ModeExclusive fails with errs.ErrFileExists if the path exists.
	ModeExclusive Mode = iota
	// ModeTruncate discards any existing file at the path.
	ModeTruncate
	// ModeAppend reads an existing container back and continues into it;
	// a missing file behaves like ModeTruncate.
	ModeAppend
)

// File is one hierarchical container: an in-memory tree flushed to a single
// file on Close. A File is exclusively owned by one writer for its
// lifetime; it is not designed for concurrent use.
type File struct {
	path        string
	root        *Group
	compression format.CompressionType
	closed      bool
}

// FileOption configures container creation.
type FileOption = options.Option[*File]

// WithCompression selects the payload compression codec recorded in the
// container header. The default is S2.
func WithCompression(ct format.CompressionType) FileOption {
	return options.New(func(f *File) error {
		if !ct.IsValid() {
			return fmt.Errorf("%w: %d", errs.ErrInvalidCompression, uint8(ct))
		}
		f.compression = ct

		return nil
	})
}

// Create opens a container file at path for writing. The tree lives in
// memory until Flush or Close writes it out; parent directories are the
// caller's concern.
func Create(path string, mode Mode, opts ...FileOption) (*File, error) {
	f := &File{
		path:        path,
		root:        newGroup("", nil),
		compression: format.CompressionS2,
	}
	if err := options.Apply(f, opts...); err != nil {
		return nil, err
	}

	_, statErr := os.Stat(path)
	exists := statErr == nil

	switch mode {
	case ModeExclusive:
		if exists {
			return nil, fmt.Errorf("%w: %s", errs.ErrFileExists, path)
		}
	case ModeTruncate:
		// Existing content is discarded at flush time.
	case ModeAppend:
		if exists {
			existing, err := Open(path)
			if err != nil {
				return nil, err
			}
			f.root = existing.root
		}
	default:
		return nil, fmt.Errorf("invalid file mode: %d", mode)
	}

	return f, nil
}

// Path returns the file's path on storage.
func (f *File) Path() string { return f.path }

// Root returns the root group of the hierarchy.
func (f *File) Root() *Group { return f.root }

// Compression returns the payload compression recorded in the header.
func (f *File) Compression() format.CompressionType { return f.compression }

// Resolve walks an absolute slash-separated path from the root, resolving
// soft links along the way.
func (f *File) Resolve(path string) (Node, error) {
	return f.root.resolve(f.root, path)
}

// Flush encodes the tree and writes it to storage.
func (f *File) Flush() error {
	if f.closed {
		return fmt.Errorf("%w: %s", errs.ErrManagerClosed, f.path)
	}

	data, err := encodeContainer(f.root, f.compression)
	if err != nil {
		return fmt.Errorf("encode container %s: %w", f.path, err)
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return err
	}

	return nil
}

// Close flushes the tree and marks the file closed. Close is idempotent and
// safe to call from failure paths.
func (f *File) Close() error {
	if f.closed {
		return nil
	}

	err := f.Flush()
	f.closed = true

	return err
}

// Open reads a container file back into memory.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	root, compression, err := decodeContainer(data)
	if err != nil {
		return nil, fmt.Errorf("decode container %s: %w", path, err)
	}

	return &File{
		path:        path,
		root:        root,
		compression: compression,
	}, nil
}
