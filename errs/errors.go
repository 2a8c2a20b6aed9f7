// Package errs defines the sentinel errors shared across the nexo packages.
//
// Callers can match errors with errors.Is, e.g.:
//
//	if errors.Is(err, errs.ErrDuplicateStream) {
//	    // the document stream re-declared an existing stream name
//	}
package errs

import "errors"

var (
	// ErrAbsolutePath is returned when a caller passes an absolute path where
	// a path relative to the output root is required.
	ErrAbsolutePath = errors.New("path must be relative to the output root")

	// ErrManagerClosed is returned when a resource is requested from a
	// manager whose Close has already run.
	ErrManagerClosed = errors.New("resource manager is closed")

	// ErrFileExists is returned by exclusive-mode creation when the target
	// container file already exists on storage.
	ErrFileExists = errors.New("container file already exists")

	// ErrDuplicateStream is returned when a stream descriptor re-declares a
	// stream name that already has a group. Re-declaration is a protocol
	// violation and fatal to the run.
	ErrDuplicateStream = errors.New("stream already declared")

	// ErrNoRunStarted is returned when a descriptor, data batch or stop
	// document arrives before the start document.
	ErrNoRunStarted = errors.New("no run started")

	// ErrRunAlreadyStarted is returned when a second start document arrives
	// for a serializer that already has an active run.
	ErrRunAlreadyStarted = errors.New("run already started")

	// ErrRunStopped is returned when a document arrives after the stop
	// document closed the run.
	ErrRunStopped = errors.New("run already stopped")

	// ErrInvalidShape is returned when a dataset write carries a
	// non-positive trailing dimension. Callers treat this as a non-fatal
	// skip.
	ErrInvalidShape = errors.New("invalid dataset shape")

	// ErrShapeMismatch is returned when appended rows disagree with the
	// trailing shape fixed by the dataset's first write.
	ErrShapeMismatch = errors.New("dataset shape mismatch")

	// ErrDTypeMismatch is returned when appended rows disagree with the
	// dtype fixed by the dataset's first write.
	ErrDTypeMismatch = errors.New("dataset dtype mismatch")

	// ErrNodeExists is returned when a group child is created under a name
	// that is already taken.
	ErrNodeExists = errors.New("node already exists")

	// ErrNodeNotFound is returned when a path lookup does not resolve.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNotAGroup is returned when a path component resolves to a leaf.
	ErrNotAGroup = errors.New("node is not a group")

	// ErrLayoutOverflow is returned when a virtual layout mapping exceeds
	// the declared total length.
	ErrLayoutOverflow = errors.New("virtual layout mapping exceeds declared length")

	// ErrInvalidMagicNumber is returned when a container file does not start
	// with the expected magic bytes.
	ErrInvalidMagicNumber = errors.New("invalid magic number")

	// ErrUnsupportedVersion is returned when a container file declares a
	// format version this build cannot read.
	ErrUnsupportedVersion = errors.New("unsupported container format version")

	// ErrChecksumMismatch is returned when a container file's payload digest
	// does not match the digest recorded in its header.
	ErrChecksumMismatch = errors.New("container checksum mismatch")

	// ErrInvalidCompression is returned for an unknown compression type
	// byte, either in options or in a container header.
	ErrInvalidCompression = errors.New("invalid compression type")
)
