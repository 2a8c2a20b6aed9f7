// Package manager allocates collision-free output files inside an output
// root and owns the handles it opens.
//
// Paths are reserved before use: a path that is already reserved, or that
// already exists on storage while "new file each run" is enabled, is
// disambiguated by suffixing the cleaned entry label and then an
// incrementing number until free. Close releases every handle the manager
// ever opened and is safe to call from failure paths.
package manager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/measuredat/nexo/errs"
	"github.com/measuredat/nexo/format"
	"github.com/measuredat/nexo/internal/collision"
	"github.com/measuredat/nexo/internal/options"
	"github.com/measuredat/nexo/store"
)

// Manager tracks reserved output paths and open container files for one
// serializer. It is not safe for concurrent use.
type Manager struct {
	directory   string
	newFileEach bool
	compression format.CompressionType

	reserved  map[string]struct{}
	artifacts map[string][]string
	labels    []string
	files     map[string]*store.File
	closed    bool
}

// Option configures a Manager.
type Option = options.Option[*Manager]

// WithNewFileEach controls whether a path that already exists on storage
// forces disambiguation (true, the default) or may be reopened/overwritten
// according to the open mode (false).
func WithNewFileEach(enabled bool) Option {
	return options.NoError(func(m *Manager) {
		m.newFileEach = enabled
	})
}

// WithCompression selects the payload compression for files the manager
// opens.
func WithCompression(ct format.CompressionType) Option {
	return options.New(func(m *Manager) error {
		if !ct.IsValid() {
			return fmt.Errorf("%w: %d", errs.ErrInvalidCompression, uint8(ct))
		}
		m.compression = ct

		return nil
	})
}

// New creates a manager rooted at directory. An empty directory means the
// current working directory.
func New(directory string, opts ...Option) (*Manager, error) {
	m := &Manager{
		directory:   directory,
		newFileEach: true,
		compression: format.CompressionS2,
		reserved:    make(map[string]struct{}),
		artifacts:   make(map[string][]string),
		files:       make(map[string]*store.File),
	}
	if err := options.Apply(m, opts...); err != nil {
		return nil, err
	}

	return m, nil
}

// CleanLabel maps an entry label onto a filesystem-safe form: spaces and
// filename metacharacters become safe substitutes, punctuation that would
// collide with the suffixing scheme is replaced.
func CleanLabel(label string) string {
	replacer := strings.NewReplacer(
		" ", "_",
		".", "_",
		":", "-",
		"/", "-",
		"\\", "-",
		"?", "_",
		"*", "_",
		"<", "_smaller_",
		">", "_greater_",
		"|", "-",
		`"`, "_quote_",
	)

	return replacer.Replace(label)
}

// Reserve resolves relativePath against the output root and reserves a
// collision-free absolute path for the given entry label. An absolute
// relativePath is a usage error.
func (m *Manager) Reserve(entryLabel, relativePath string) (string, error) {
	if m.closed {
		return "", errs.ErrManagerClosed
	}
	if filepath.IsAbs(relativePath) {
		return "", fmt.Errorf("%w: %q", errs.ErrAbsolutePath, relativePath)
	}

	absPath, err := filepath.Abs(filepath.Join(m.directory, relativePath))
	if err != nil {
		return "", err
	}

	if m.taken(absPath) {
		// First disambiguation step: suffix the cleaned entry label,
		// unless the path already carries it.
		clean := CleanLabel(entryLabel)
		ext := filepath.Ext(absPath)
		stem := strings.TrimSuffix(absPath, ext)
		if !strings.HasSuffix(stem, "_"+clean) {
			stem += "_" + clean
		}
		absPath = collision.Resolve(stem, ext, m.taken)
	}

	m.reserved[absPath] = struct{}{}
	if _, ok := m.artifacts[entryLabel]; !ok {
		m.labels = append(m.labels, entryLabel)
	}
	m.artifacts[entryLabel] = append(m.artifacts[entryLabel], absPath)

	return absPath, nil
}

func (m *Manager) taken(absPath string) bool {
	if _, ok := m.reserved[absPath]; ok {
		return true
	}
	if !m.newFileEach {
		return false
	}
	info, err := os.Stat(absPath)

	return err == nil && !info.IsDir()
}

// Open reserves a path, creates missing parent directories, opens the
// container in the requested mode and registers the handle for teardown.
func (m *Manager) Open(entryLabel, relativePath string, mode store.Mode) (*store.File, error) {
	absPath, err := m.Reserve(entryLabel, relativePath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, err
	}

	f, err := store.Create(absPath, mode, store.WithCompression(m.compression))
	if err != nil {
		return nil, err
	}
	m.files[absPath] = f

	return f, nil
}

// Artifacts returns, per entry label, the absolute paths produced so far in
// reservation order.
func (m *Manager) Artifacts() map[string][]string {
	out := make(map[string][]string, len(m.artifacts))
	for label, paths := range m.artifacts {
		out[label] = append([]string(nil), paths...)
	}

	return out
}

// Close releases every handle the manager ever opened, regardless of error
// state, and refuses further reservations. Safe to call more than once and
// from failure paths; errors from individual files are joined.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	var errsAll []error
	for _, f := range m.files {
		if err := f.Close(); err != nil {
			errsAll = append(errsAll, err)
		}
	}

	return errors.Join(errsAll...)
}
