package bundle

import "errors"

var (
	// ErrMissingManifest is returned when manifest.json is absent.
	ErrMissingManifest = errors.New("bundle: missing manifest.json")
	// ErrInvalidManifest is returned when manifest.json cannot be parsed.
	ErrInvalidManifest = errors.New("bundle: invalid manifest.json")
	// ErrUnsupportedManifestVersion is returned when manifestVersion != 1.
	ErrUnsupportedManifestVersion = errors.New("bundle: unsupported manifest version")
	// ErrMissingRootDocument is returned when the manifest's root file is absent.
	ErrMissingRootDocument = errors.New("bundle: missing root document")
	// ErrCorruptArchive is returned when the underlying zip cannot be read.
	ErrCorruptArchive = errors.New("bundle: corrupt archive")
	// ErrDuplicateEntry is returned by Put when the path already exists.
	ErrDuplicateEntry = errors.New("bundle: duplicate entry")
)
