package challenge

import "errors"

var (
	ErrNotFound = errors.New("challenge not found")

	// ErrNoStereocenters is returned by Start when no drawn record carried
	// enough stereocenters within the attempt limit.
	ErrNoStereocenters = errors.New("not enough stereocenters, try again")
)
