// Package organize sorts loose receipts into per-person folders using the
// "xxx-Name.ext" naming convention, and can hand each person folder to the
// bank classifier afterwards.
package organize

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/receipts-redactor/internal/classify"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/utils"
)

// NameFromFilename returns the text after the last '-' of the base name,
// without extension. ok is false when the name has no dash or the part is blank.
func NameFromFilename(filename string) (string, bool) {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	i := strings.LastIndex(stem, "-")
	if i < 0 {
		return "", false
	}
	name := strings.TrimSpace(stem[i+1:])
	return name, name != ""
}

// Report summarizes an Organize call.
type Report struct {
	Moved   map[string][]string // person -> destination paths
	Skipped []string
	Failed  []string
}

// People returns the person folders that received files, sorted.
func (r Report) People() []string {
	people := make([]string, 0, len(r.Moved))
	for p := range r.Moved {
		people = append(people, p)
	}
	sort.Strings(people)
	return people
}

// Organize moves every file under src into out/<Name>/. Files that do not
// follow the naming convention stay where they are.
func Organize(ctx context.Context, src, out string, logger *slog.Logger) (Report, error) {
	log := common.LoggerWith(ctx, logger)
	rep := Report{Moved: map[string][]string{}}

	if _, err := os.Stat(src); err != nil {
		return rep, common.WrapError(err, "stat source")
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return rep, common.WrapError(err, "create output dir")
	}

	var files []string
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != src && samePath(p, out) {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return rep, common.WrapError(err, "walk source")
	}

	for _, p := range files {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		name, ok := NameFromFilename(p)
		if !ok {
			rep.Skipped = append(rep.Skipped, p)
			continue
		}
		dst := filepath.Join(out, name, filepath.Base(p))
		if err := utils.MoveFile(p, dst); err != nil {
			log.Error("organize.move.failed", "file", p, "error", err)
			rep.Failed = append(rep.Failed, p)
			continue
		}
		rep.Moved[name] = append(rep.Moved[name], dst)
	}

	log.Info("organize.done", "people", len(rep.Moved), "skipped", len(rep.Skipped), "failed", len(rep.Failed))
	return rep, nil
}

// OrganizeAndClassify organizes src by person into a scratch directory, then
// classifies each person's files into out/<person>/<bank>/.
func OrganizeAndClassify(ctx context.Context, src, out, scratch string, svc *classify.Service, logger *slog.Logger) (Report, error) {
	log := common.LoggerWith(ctx, logger)

	rep, err := Organize(ctx, src, scratch, logger)
	if err != nil {
		return rep, err
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Warn("organize.scratch.cleanup_failed", "dir", scratch, "error", err)
		}
	}()

	final := Report{Moved: map[string][]string{}, Skipped: rep.Skipped, Failed: rep.Failed}
	for _, person := range rep.People() {
		results := svc.ClassifyAll(ctx, rep.Moved[person])
		final.Moved[person] = svc.MoveToBankFolders(ctx, results, filepath.Join(out, person))
	}
	return final, nil
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
