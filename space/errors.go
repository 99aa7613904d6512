package space

import "errors"

var (
	// ErrNoUpstream is returned by Push/Pull when no remote has been added.
	ErrNoUpstream = errors.New("space: no upstream configured")
	// ErrUpstreamAlreadySet is returned by AddRemote when a branch already
	// has an upstream; exactly one upstream is permitted per branch.
	ErrUpstreamAlreadySet = errors.New("space: upstream already configured")
	// ErrSpaceNotFound is returned by Open when no persisted snapshot exists
	// for the given DID under the given adapter.
	ErrSpaceNotFound = errors.New("space: not found")
)
