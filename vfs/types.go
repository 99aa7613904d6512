// Package vfs implements the virtual file system layered over a CRDT
// document graph: backend helpers for the directory/document shapes, path
// traversal with auto-create semantics, and the public VirtualFileSystem API
// with its event stream and bundle import/export.
package vfs

import "encoding/json"

// NodeType discriminates a CRDT document's role in the VFS tree.
type NodeType string

const (
	NodeTypeDirectory NodeType = "dir"
	NodeTypeDocument  NodeType = "doc"
)

// Timestamps are milliseconds since the Unix epoch; Modified >= Created.
type Timestamps struct {
	Created  int64 `json:"created"`
	Modified int64 `json:"modified"`
}

// RefNode is a named child entry inside a directory's children list.
type RefNode struct {
	Name       string     `json:"name"`
	Type       NodeType   `json:"type"`
	Pointer    string     `json:"pointer"`
	Timestamps Timestamps `json:"timestamps"`
}

// DirNode is the materialized shape of a directory document.
type DirNode struct {
	Type       NodeType   `json:"type"`
	Name       string     `json:"name"`
	Timestamps Timestamps `json:"timestamps"`
	Children   []RefNode  `json:"children"`
}

// DocNode is the materialized shape of a document (file) document.
type DocNode struct {
	Type       NodeType        `json:"type"`
	Name       string          `json:"name"`
	Timestamps Timestamps      `json:"timestamps"`
	Content    json.RawMessage `json:"content,omitempty"`
	Bytes      []byte          `json:"bytes,omitempty"`
}

// EventKind discriminates the VfsEvent variants.
type EventKind string

const (
	EventDocumentCreated  EventKind = "document_created"
	EventDirectoryCreated EventKind = "directory_created"
	EventDocumentUpdated  EventKind = "document_updated"
	EventDocumentDeleted  EventKind = "document_deleted"
)

// Event is emitted on the VFS's broadcast stream.
type Event struct {
	Kind EventKind
	Path string
	ID   string
}
