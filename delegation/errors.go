package delegation

import "errors"

var (
	// ErrExpired is returned by Validate when expiration <= now.
	ErrExpired = errors.New("delegation: expired")
	// ErrNotYetValid is returned by Validate when notBefore > now.
	ErrNotYetValid = errors.New("delegation: not yet valid")
)
