package filetree

import (
	"sort"
	"strings"

	"github.com/fragmentd/fragmentd/pkg/api"
)

// Record is the flat input for the workspace tree builder: one persisted
// file row. ParentPath empty means the record sits at tree root.
type Record struct {
	Path        string
	Name        string
	IsDirectory bool
	ParentPath  string
}

// FromRecords builds an ordered-by-path forest from an unordered set of
// workspace records. Every record maps to exactly one node. Directory-ness
// comes from the record's own flag, never inferred.
//
// Records are sorted lexicographically by path, which guarantees that an
// explicit ancestor row precedes its descendants. A record whose parent row
// is absent is attached to the root list (orphan-to-root). Inconsistent
// linkage (a record naming itself as parent, or a parent pointer that
// contradicts the record's own path) fails construction with a
// malformed_tree error instead of silently misplacing nodes.
func FromRecords(records []Record) ([]*api.FileNode, error) {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var root []*api.FileNode
	nodes := make(map[string]*api.FileNode, len(sorted))

	for _, rec := range sorted {
		if err := checkLinkage(rec); err != nil {
			return nil, err
		}

		node := &api.FileNode{
			Name:        rec.Name,
			Path:        rec.Path,
			IsDirectory: rec.IsDirectory,
		}
		if rec.IsDirectory {
			node.Children = []*api.FileNode{}
		}
		nodes[rec.Path] = node

		if rec.ParentPath != "" {
			if parent, ok := nodes[rec.ParentPath]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		root = append(root, node)
	}

	return root, nil
}

// checkLinkage validates the parent-pointer invariants of a single record:
// no self-parenting, and path == parentPath + "/" + name when a parent is set.
func checkLinkage(rec Record) *api.APIError {
	if rec.ParentPath == "" {
		return nil
	}
	if rec.ParentPath == rec.Path {
		return api.NewMalformedTreeError(rec.Path, "record names itself as parent")
	}
	if rec.Path != rec.ParentPath+"/"+rec.Name {
		return api.NewMalformedTreeError(rec.Path,
			"path does not match parentPath/name linkage")
	}
	if !strings.HasPrefix(rec.Path, rec.ParentPath+"/") {
		return api.NewMalformedTreeError(rec.Path, "parent pointer is not an ancestor")
	}
	return nil
}
