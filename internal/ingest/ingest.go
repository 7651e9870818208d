// Package ingest discovers receipt files on disk, either by walking a tree
// once or by watching it for new arrivals.
package ingest

// FileEntry is one receipt discovered under a root.
type FileEntry struct {
	Path string // as found by the walk
	Rel  string // relative to the walk root, slash separated
	Ext  string // lowercased, without dot
	Size int64
}

// DirStats summarizes a directory walk.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}
