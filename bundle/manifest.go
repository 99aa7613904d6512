package bundle

import "encoding/json"

// ManifestVersion is the only manifest version this implementation accepts.
const ManifestVersion = 1

// Version is the bundle's content version, distinct from ManifestVersion.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// Manifest is the parsed form of manifest.json.
type Manifest struct {
	ManifestVersion int             `json:"manifestVersion"`
	Version         Version         `json:"version"`
	Root            string          `json:"root,omitempty"`
	RootID          string          `json:"rootId,omitempty"`
	Entrypoints     []string        `json:"entrypoints"`
	NetworkURIs     []string        `json:"networkUris"`
	XNotes          string          `json:"xNotes,omitempty"`
	XVendor         json.RawMessage `json:"xVendor,omitempty"`
}

// RootName returns whichever of Root/RootID is populated, preferring Root.
func (m Manifest) RootName() string {
	if m.Root != "" {
		return m.Root
	}
	return m.RootID
}

// Clone returns a deep-enough copy safe for a caller to mutate without
// affecting the Bundle's internal manifest.
func (m Manifest) Clone() Manifest {
	c := m
	c.Entrypoints = append([]string(nil), m.Entrypoints...)
	c.NetworkURIs = append([]string(nil), m.NetworkURIs...)
	if m.XVendor != nil {
		c.XVendor = append(json.RawMessage(nil), m.XVendor...)
	}
	return c
}

// ExportConfig overrides manifest fields when exporting a new bundle.
type ExportConfig struct {
	Entrypoints []string
	NetworkURIs []string
	XNotes      string
	XVendor     json.RawMessage
}
