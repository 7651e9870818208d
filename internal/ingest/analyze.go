package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Analysis counts the files of a root/person/bank tree. Only files at least
// two directories deep are counted.
type Analysis struct {
	TotalFiles int
	ByExt      map[string]int            // ext -> files
	ByPerson   map[string]map[string]int // person -> bank -> files
	ByBank     map[string]map[string]int // bank -> ext -> files
}

// Analyze walks root and fills an Analysis. Symlinked roots are resolved.
func Analyze(root string) (*Analysis, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", root, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("analyze %s: not a directory", root)
	}

	a := &Analysis{
		ByExt:    map[string]int{},
		ByPerson: map[string]map[string]int{},
		ByBank:   map[string]map[string]int{},
	}
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 3 {
			return nil
		}
		person, bank := parts[0], parts[1]

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if ext == "" {
			ext = "no_extension"
		}

		a.TotalFiles++
		a.ByExt[ext]++
		if a.ByPerson[person] == nil {
			a.ByPerson[person] = map[string]int{}
		}
		a.ByPerson[person][bank]++
		if a.ByBank[bank] == nil {
			a.ByBank[bank] = map[string]int{}
		}
		a.ByBank[bank][ext]++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}
