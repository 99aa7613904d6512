package tonkcore

import "errors"

var (
	// ErrNoStorageConfig names a missing storage configuration. No Builder
	// method returns it: a zero StorageConfig selects StorageMemory.
	ErrNoStorageConfig = errors.New("tonkcore: no storage configured")
	// ErrUnsupportedStorageKind is returned for a StorageKind the builder
	// does not recognize.
	ErrUnsupportedStorageKind = errors.New("tonkcore: unsupported storage kind")
	// ErrNotConnected names a closed connection. No Connection method returns
	// it: Disconnect returns the socket's Close error, and a terminal failure
	// is reported through Err and Finished.
	ErrNotConnected = errors.New("tonkcore: not connected")
)
