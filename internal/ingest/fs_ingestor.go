package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/receipts-redactor/constants"
)

// WalkOptions tunes Walk.
type WalkOptions struct {
	SkipHidden bool
	// Exclude lists directories that are never entered, e.g. a work or
	// output tree nested inside the input.
	Exclude []string
	Logger  *slog.Logger
}

// Walk lists the receipts under root in lexical order. Unreadable entries
// are counted as failed and do not stop the walk.
func Walk(root string, opts WalkOptions) ([]FileEntry, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	excluded := newExcludeSet(opts.Exclude)

	var files []FileEntry
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logger.Warn("ingest.walk.error", "path", path, "error", walkErr)
			stats.Failed++
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if opts.SkipHidden && IsHidden(path) {
				return filepath.SkipDir
			}
			if excluded.covers(path) {
				return filepath.SkipDir
			}
			return nil
		}

		stats.Scanned++
		if opts.SkipHidden && IsHidden(path) {
			stats.Skipped++
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if !AllowedExt(ext) {
			stats.Skipped++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("ingest.walk.stat_failed", "path", path, "error", err)
			stats.Failed++
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			stats.Failed++
			return nil
		}

		stats.Matched++
		files = append(files, FileEntry{
			Path: path,
			Rel:  filepath.ToSlash(rel),
			Ext:  ext,
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return files, stats, fmt.Errorf("walk: %w", err)
	}

	logger.Debug("ingest.walk.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return files, stats, nil
}

// HashFile returns the hex sha256 of the file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
