package seed

import "errors"

var (
	// ErrNoTags is returned when a catalog has no tags to seed.
	ErrNoTags = errors.New("catalog has no tags")
	// ErrUnknownTag is returned when a profile references a tag missing from the store.
	ErrUnknownTag = errors.New("tag not present in store")
	// ErrInvalidCount is returned when a run is asked for fewer than one user.
	ErrInvalidCount = errors.New("number of users must be positive")
)
