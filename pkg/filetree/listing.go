package filetree

import (
	"context"
	"sort"
	"strings"

	"github.com/fragmentd/fragmentd/pkg/api"
)

// FromListing builds a forest from the newline-delimited output of a
// recursive filesystem enumeration (files and directories intermixed,
// no type tag). Only paths under rootPrefix are considered; the prefix is
// stripped and node paths are re-rooted at "/".
//
// Directory-ness is inferred: a path is marked as a directory the moment
// another path is attached as its child. A path with no discovered children
// stays a file even if it is conceptually an empty directory; inference
// from a flat walk cannot tell the two apart.
func FromListing(output, rootPrefix string) []*api.FileNode {
	prefix := strings.TrimSuffix(rootPrefix, "/") + "/"

	var paths []string
	for _, line := range strings.Split(output, "\n") {
		p := strings.TrimSpace(line)
		if p == "" || !strings.HasPrefix(p, prefix) {
			continue
		}
		rel := strings.TrimPrefix(p, prefix)
		if rel == "" {
			// The root itself.
			continue
		}
		paths = append(paths, rel)
	}
	sort.Strings(paths)

	var root []*api.FileNode
	nodes := make(map[string]*api.FileNode, len(paths))

	for _, rel := range paths {
		if _, seen := nodes[rel]; seen {
			continue
		}

		parts := strings.Split(rel, "/")
		name := parts[len(parts)-1]
		parentPath := strings.Join(parts[:len(parts)-1], "/")

		node := &api.FileNode{
			Name: name,
			Path: "/" + rel,
		}
		nodes[rel] = node

		if parentPath == "" {
			root = append(root, node)
			continue
		}
		if parent, ok := nodes[parentPath]; ok {
			parent.Children = append(parent.Children, node)
			parent.IsDirectory = true
		} else {
			// A child appeared without its ancestor in the listing
			// (truncated walk). Keep it reachable at the root.
			root = append(root, node)
		}
	}

	return root
}

// Entry is one name returned by a DirectoryLister.
type Entry struct {
	Name        string
	IsDirectory bool
}

// DirectoryLister enumerates one directory level of a remote filesystem.
type DirectoryLister interface {
	List(ctx context.Context, path string) ([]Entry, error)
}

// FromLister builds a forest by walking the remote filesystem depth-first,
// one directory listing at a time. For inputs describing the same
// filesystem, the output shape is identical to FromListing on a flat
// enumeration: children are ordered by name, and an empty directory stays
// an untagged leaf even when the lister marks it as a directory, matching
// the flat builder's children-based inference.
func FromLister(ctx context.Context, lister DirectoryLister, root string) ([]*api.FileNode, error) {
	return walkDir(ctx, lister, strings.TrimSuffix(root, "/"), "")
}

func walkDir(ctx context.Context, lister DirectoryLister, absRoot, rel string) ([]*api.FileNode, error) {
	abs := absRoot
	if rel != "" {
		abs += "/" + rel
	}

	entries, err := lister.List(ctx, abs)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var nodes []*api.FileNode
	for _, e := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		childRel := e.Name
		if rel != "" {
			childRel = rel + "/" + e.Name
		}
		node := &api.FileNode{
			Name: e.Name,
			Path: "/" + childRel,
		}
		if e.IsDirectory {
			children, err := walkDir(ctx, lister, absRoot, childRel)
			if err != nil {
				return nil, err
			}
			// Match the inference rule of the flat builder: a directory
			// is only marked once children are discovered.
			if len(children) > 0 {
				node.IsDirectory = true
				node.Children = children
			}
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}
