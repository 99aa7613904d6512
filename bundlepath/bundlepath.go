// Package bundlepath implements the normalized slash-separated key used to
// address entries inside a bundle and, by extension, storage-adapter keys.
package bundlepath

import "strings"

// Path is a normalized, slash-separated sequence of non-empty components.
// The zero value is the root path.
type Path struct {
	components []string
}

// Root returns the path with no components, rendered as "/".
func Root() Path {
	return Path{}
}

// From parses s into a Path. Leading/trailing slashes and empty components
// (from repeated slashes) are dropped; case is preserved.
func From(s string) Path {
	parts := strings.Split(s, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return Path{components: out}
}

// FromComponents builds a Path directly from already-split components,
// dropping any empty ones.
func FromComponents(components []string) Path {
	out := make([]string, 0, len(components))
	for _, c := range components {
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	return Path{components: out}
}

// String renders the canonical form: "/" for root, otherwise "/a/b/c".
func (p Path) String() string {
	if len(p.components) == 0 {
		return "/"
	}
	return "/" + strings.Join(p.components, "/")
}

// Components returns the path's components. Callers must not mutate the
// returned slice.
func (p Path) Components() []string {
	return p.components
}

// IsRoot reports whether p has no components.
func (p Path) IsRoot() bool {
	return len(p.components) == 0
}

// Parent returns the path with its last component removed, and the removed
// leaf component. Calling Parent on the root path returns (Root(), "").
func (p Path) Parent() (Path, string) {
	if len(p.components) == 0 {
		return Root(), ""
	}
	leaf := p.components[len(p.components)-1]
	parent := make([]string, len(p.components)-1)
	copy(parent, p.components[:len(p.components)-1])
	return Path{components: parent}, leaf
}

// Join appends components to p and returns the result.
func (p Path) Join(components ...string) Path {
	out := make([]string, 0, len(p.components)+len(components))
	out = append(out, p.components...)
	for _, c := range components {
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	return Path{components: out}
}

// IsPrefixOf reports whether other's components start with p's components.
func (p Path) IsPrefixOf(other Path) bool {
	if len(p.components) > len(other.components) {
		return false
	}
	for i, c := range p.components {
		if other.components[i] != c {
			return false
		}
	}
	return true
}

// Equal reports componentwise equality.
func (p Path) Equal(other Path) bool {
	if len(p.components) != len(other.components) {
		return false
	}
	for i, c := range p.components {
		if other.components[i] != c {
			return false
		}
	}
	return true
}
