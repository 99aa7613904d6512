package vfs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tonk-labs/tonk-sub000/crdt"
)

// envelope is the on-the-wire CRDT document shape; both DirNode and DocNode
// marshal into and out of this single envelope so a document can be read
// without knowing its type in advance.
type envelope struct {
	Type       NodeType        `json:"type"`
	Name       string          `json:"name"`
	Timestamps Timestamps      `json:"timestamps"`
	Children   []RefNode       `json:"children,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
	Bytes      []byte          `json:"bytes,omitempty"`
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func readEnvelope(data []byte) (envelope, error) {
	if len(data) == 0 {
		return envelope{}, fmt.Errorf("%w: empty document", ErrInvalidDocumentStructure)
	}
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrInvalidDocumentStructure, err)
	}
	return e, nil
}

// InitAsDirectory writes the initial {type:"dir", name, timestamps, children:[]} shape.
func InitAsDirectory(ctx context.Context, h *crdt.Handle, name string) error {
	ts := nowMillis()
	e := envelope{
		Type:       NodeTypeDirectory,
		Name:       name,
		Timestamps: Timestamps{Created: ts, Modified: ts},
		Children:   []RefNode{},
	}
	return writeEnvelope(ctx, h, e)
}

// InitAsDocument writes {type:"doc", name, timestamps, content}.
func InitAsDocument(ctx context.Context, h *crdt.Handle, name string, content any) error {
	return InitAsDocumentWithBytes(ctx, h, name, content, nil)
}

// InitAsDocumentWithBytes additionally stores an opaque binary blob.
func InitAsDocumentWithBytes(ctx context.Context, h *crdt.Handle, name string, content any, blob []byte) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("vfs: marshal document content: %w", err)
	}
	ts := nowMillis()
	e := envelope{
		Type:       NodeTypeDocument,
		Name:       name,
		Timestamps: Timestamps{Created: ts, Modified: ts},
		Content:    raw,
		Bytes:      blob,
	}
	return writeEnvelope(ctx, h, e)
}

func writeEnvelope(ctx context.Context, h *crdt.Handle, e envelope) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("vfs: marshal document: %w", err)
	}
	return h.WithDocument(ctx, func([]byte) ([]byte, error) {
		return data, nil
	})
}

// ReadDirectory type-checks and reads a directory document.
func ReadDirectory(ctx context.Context, h *crdt.Handle) (DirNode, error) {
	var out DirNode
	var readErr error
	err := h.WithDocument(ctx, func(current []byte) ([]byte, error) {
		e, err := readEnvelope(current)
		if err != nil {
			readErr = err
			return nil, nil
		}
		if e.Type != NodeTypeDirectory {
			readErr = &NodeTypeMismatchError{Expected: NodeTypeDirectory, Actual: e.Type}
			return nil, nil
		}
		out = DirNode{Type: e.Type, Name: e.Name, Timestamps: e.Timestamps, Children: e.Children}
		return nil, nil
	})
	if err != nil {
		return DirNode{}, err
	}
	if readErr != nil {
		return DirNode{}, readErr
	}
	return out, nil
}

// ReadDocument type-checks and reads a document node.
func ReadDocument(ctx context.Context, h *crdt.Handle) (DocNode, error) {
	var out DocNode
	var readErr error
	err := h.WithDocument(ctx, func(current []byte) ([]byte, error) {
		e, err := readEnvelope(current)
		if err != nil {
			readErr = err
			return nil, nil
		}
		if e.Type != NodeTypeDocument {
			readErr = &NodeTypeMismatchError{Expected: NodeTypeDocument, Actual: e.Type}
			return nil, nil
		}
		out = DocNode{Type: e.Type, Name: e.Name, Timestamps: e.Timestamps, Content: e.Content, Bytes: e.Bytes}
		return nil, nil
	})
	if err != nil {
		return DocNode{}, err
	}
	if readErr != nil {
		return DocNode{}, readErr
	}
	return out, nil
}

// AddChildToDirectory idempotently upserts ref into the directory's children
// list, keyed by child name.
func AddChildToDirectory(ctx context.Context, h *crdt.Handle, ref RefNode) error {
	var opErr error
	err := h.WithDocument(ctx, func(current []byte) ([]byte, error) {
		e, err := readEnvelope(current)
		if err != nil {
			opErr = err
			return nil, nil
		}
		if e.Type != NodeTypeDirectory {
			opErr = &NodeTypeMismatchError{Expected: NodeTypeDirectory, Actual: e.Type}
			return nil, nil
		}
		replaced := false
		for i, c := range e.Children {
			if c.Name == ref.Name {
				e.Children[i] = ref
				replaced = true
				break
			}
		}
		if !replaced {
			e.Children = append(e.Children, ref)
		}
		e.Timestamps.Modified = nowMillis()
		return json.Marshal(e)
	})
	if err != nil {
		return err
	}
	return opErr
}

// RemoveChildFromDirectory removes the named child, returning it if present.
func RemoveChildFromDirectory(ctx context.Context, h *crdt.Handle, name string) (RefNode, bool, error) {
	var removed RefNode
	var found bool
	var opErr error
	err := h.WithDocument(ctx, func(current []byte) ([]byte, error) {
		e, err := readEnvelope(current)
		if err != nil {
			opErr = err
			return nil, nil
		}
		if e.Type != NodeTypeDirectory {
			opErr = &NodeTypeMismatchError{Expected: NodeTypeDirectory, Actual: e.Type}
			return nil, nil
		}
		next := make([]RefNode, 0, len(e.Children))
		for _, c := range e.Children {
			if c.Name == name {
				removed = c
				found = true
				continue
			}
			next = append(next, c)
		}
		if !found {
			return nil, nil
		}
		e.Children = next
		e.Timestamps.Modified = nowMillis()
		return json.Marshal(e)
	})
	if err != nil {
		return RefNode{}, false, err
	}
	if opErr != nil {
		return RefNode{}, false, opErr
	}
	return removed, found, nil
}

// UpdateDocumentContent replaces a document's content and bumps modified.
func UpdateDocumentContent(ctx context.Context, h *crdt.Handle, content any) error {
	return UpdateDocumentContentWithBytes(ctx, h, content, nil)
}

// UpdateDocumentContentWithBytes replaces content and bytes, bumping modified.
func UpdateDocumentContentWithBytes(ctx context.Context, h *crdt.Handle, content any, blob []byte) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("vfs: marshal document content: %w", err)
	}
	var opErr error
	writeErr := h.WithDocument(ctx, func(current []byte) ([]byte, error) {
		e, err := readEnvelope(current)
		if err != nil {
			opErr = err
			return nil, nil
		}
		if e.Type != NodeTypeDocument {
			opErr = &NodeTypeMismatchError{Expected: NodeTypeDocument, Actual: e.Type}
			return nil, nil
		}
		e.Content = raw
		if blob != nil {
			e.Bytes = blob
		}
		e.Timestamps.Modified = nowMillis()
		return json.Marshal(e)
	})
	if writeErr != nil {
		return writeErr
	}
	return opErr
}

// UpdateChildRefTimestamp propagates modified into the named child's RefNode
// inside the parent directory h.
func UpdateChildRefTimestamp(ctx context.Context, h *crdt.Handle, name string, modified int64) error {
	var opErr error
	err := h.WithDocument(ctx, func(current []byte) ([]byte, error) {
		e, err := readEnvelope(current)
		if err != nil {
			opErr = err
			return nil, nil
		}
		if e.Type != NodeTypeDirectory {
			opErr = &NodeTypeMismatchError{Expected: NodeTypeDirectory, Actual: e.Type}
			return nil, nil
		}
		changed := false
		for i, c := range e.Children {
			if c.Name == name {
				e.Children[i].Timestamps.Modified = modified
				changed = true
				break
			}
		}
		if !changed {
			return nil, nil
		}
		e.Timestamps.Modified = nowMillis()
		return json.Marshal(e)
	})
	if err != nil {
		return err
	}
	return opErr
}
