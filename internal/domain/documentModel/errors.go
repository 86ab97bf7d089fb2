package documentModel

import "errors"

var (
	// ErrUnsupportedFormat is fatal for the document.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrUnreadable covers files that look like PDFs but no parser can open.
	ErrUnreadable = errors.New("document unreadable")
	// ErrExtractionFailure is recovered at page scope.
	ErrExtractionFailure = errors.New("extraction failure")
	// ErrTableDetectionFailure is recovered at region scope.
	ErrTableDetectionFailure = errors.New("table detection failure")
	// ErrParseFailure marks a matched value that could not be normalized; it is skipped.
	ErrParseFailure = errors.New("parse failure")
	// ErrPersistenceFailure is surfaced to the caller.
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrNotFound           = errors.New("document not found")
)
