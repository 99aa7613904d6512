package vfs

import (
	"context"
	"fmt"

	"github.com/tonk-labs/tonk-sub000/bundlepath"
	"github.com/tonk-labs/tonk-sub000/crdt"
)

// maxTraversalDepth guards against cycles an accidental CRDT merge might
// introduce into what is otherwise a strict tree.
const maxTraversalDepth = 10

// TraverseResult is the outcome of walking a path down to its parent
// directory, with an optional RefNode for the final component if present.
type TraverseResult struct {
	DirHandle *crdt.Handle
	Dir       DirNode
	Target    *RefNode
}

// OnDirectoryCreated, when non-nil, is invoked once per ancestor directory
// Traverse had to auto-create, in creation order, so callers can emit
// DirectoryCreated events for each.
type OnDirectoryCreated func(path bundlepath.Path, id string)

// Traverse resolves path starting from rootID. Empty or "/" returns the root
// with no target. Otherwise it walks each component, descending into
// existing children or, when createMissing is true, creating missing
// intermediate directories. The final component is never auto-created here;
// callers create the leaf themselves after inspecting Target.
func Traverse(ctx context.Context, repo *crdt.Repo, rootID string, path bundlepath.Path, createMissing bool, onCreated OnDirectoryCreated) (TraverseResult, error) {
	rootHandle, ok := repo.Find(ctx, rootID)
	if !ok {
		return TraverseResult{}, fmt.Errorf("%w: root document %s", ErrDocumentNotFound, rootID)
	}
	rootDir, err := ReadDirectory(ctx, rootHandle)
	if err != nil {
		return TraverseResult{}, err
	}

	components := path.Components()
	if len(components) == 0 {
		return TraverseResult{DirHandle: rootHandle, Dir: rootDir}, nil
	}
	if len(components) > maxTraversalDepth {
		return TraverseResult{}, fmt.Errorf("%w: path exceeds max depth %d", ErrPathNotFound, maxTraversalDepth)
	}

	currentHandle := rootHandle
	currentDir := rootDir
	builtPath := bundlepath.Root()

	for i, comp := range components {
		last := i == len(components)-1

		var match *RefNode
		for j := range currentDir.Children {
			if currentDir.Children[j].Name == comp {
				match = &currentDir.Children[j]
				break
			}
		}

		if match != nil {
			if last {
				return TraverseResult{DirHandle: currentHandle, Dir: currentDir, Target: match}, nil
			}
			nextHandle, ok := repo.Find(ctx, match.Pointer)
			if !ok {
				return TraverseResult{}, fmt.Errorf("%w: %s", ErrInvalidDocumentStructure, match.Pointer)
			}
			nextDir, err := ReadDirectory(ctx, nextHandle)
			if err != nil {
				return TraverseResult{}, err
			}
			currentHandle, currentDir = nextHandle, nextDir
			builtPath = builtPath.Join(comp)
			continue
		}

		// Absent.
		if last {
			return TraverseResult{DirHandle: currentHandle, Dir: currentDir, Target: nil}, nil
		}
		if !createMissing {
			return TraverseResult{}, ErrPathNotFound
		}

		childHandle, err := repo.Create(ctx, nil)
		if err != nil {
			return TraverseResult{}, err
		}
		if err := InitAsDirectory(ctx, childHandle, comp); err != nil {
			return TraverseResult{}, err
		}
		ref := RefNode{
			Name:       comp,
			Type:       NodeTypeDirectory,
			Pointer:    childHandle.DocumentID(),
			Timestamps: Timestamps{Created: nowMillis(), Modified: nowMillis()},
		}
		if err := AddChildToDirectory(ctx, currentHandle, ref); err != nil {
			return TraverseResult{}, err
		}
		childDir, err := ReadDirectory(ctx, childHandle)
		if err != nil {
			return TraverseResult{}, err
		}
		builtPath = builtPath.Join(comp)
		if onCreated != nil {
			onCreated(builtPath, childHandle.DocumentID())
		}
		currentHandle, currentDir = childHandle, childDir
	}

	return TraverseResult{DirHandle: currentHandle, Dir: currentDir}, nil
}
