package storage

import "errors"

// Sentinel errors for the storage package. Sentinels instead of ad-hoc
// fmt.Errorf let callers match with errors.Is.
var (
	// ErrArtifactNotFound is returned when reading an absent artifact.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrNameRequired is returned for operations with an empty artifact name.
	ErrNameRequired = errors.New("artifact name is required")

	// ErrNameOutsideRoot is returned when an artifact name escapes the
	// change directory.
	ErrNameOutsideRoot = errors.New("artifact name escapes change directory")
)
