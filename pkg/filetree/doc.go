// Package filetree reconstructs nested file trees from flat, path-bearing
// sources. Two builders are provided: FromRecords builds from persisted
// workspace rows with explicit parent pointers and directory flags, while
// FromListing builds from a raw recursive path enumeration where
// directory-ness must be inferred. Both are pure: no I/O, deterministic
// output for identical input.
package filetree
