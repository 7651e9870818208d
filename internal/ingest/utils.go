package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/receipts-redactor/constants"
)

// AllowedExt checks if a file extension is in the allowed set (pdf/jpg/jpeg/png).
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// excludeSet holds absolute directory paths that are never entered.
type excludeSet map[string]struct{}

func newExcludeSet(dirs []string) excludeSet {
	set := make(excludeSet, len(dirs))
	for _, d := range dirs {
		if strings.TrimSpace(d) == "" {
			continue
		}
		if abs, err := filepath.Abs(d); err == nil {
			set[abs] = struct{}{}
		}
	}
	return set
}

// covers reports whether path is an excluded directory or sits below one.
func (s excludeSet) covers(path string) bool {
	if len(s) == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for {
		if _, ok := s[abs]; ok {
			return true
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return false
		}
		abs = parent
	}
}
