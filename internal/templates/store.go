// Package templates loads the per-bank reference layouts used for matching.
//
// A bank directory holds pairs of files sharing a base name: a JSON array of
// rectangles and the reference document those rectangles were drawn on.
package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/receipts-redactor/constants"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/geometry"
)

// Template is one reference layout of a bank.
type Template struct {
	Name          string
	BankName      string
	FileExtension string
	ReferencePath string
	// ReferenceImage is nil for PDF references.
	ReferenceImage image.Image
	Coordinates    geometry.CoordinateSet
}

// IsPDF reports whether the reference document is a PDF.
func (t Template) IsPDF() bool { return constants.IsPDF(t.FileExtension) }

// BankNotFoundError is returned when a bank has no template directory.
type BankNotFoundError struct {
	Bank string
	Dir  string
}

func (e *BankNotFoundError) Error() string {
	return fmt.Sprintf("bank %q not found in %s", e.Bank, e.Dir)
}

func (e *BankNotFoundError) Is(target error) bool { return target == common.ErrBankNotFound }

// coordinateSchema rejects rectangles without a positive area.
var coordinateSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type":     "object",
		"required": []any{"x", "y", "width", "height"},
		"properties": map[string]any{
			"x":      map[string]any{"type": "integer", "minimum": 0},
			"y":      map[string]any{"type": "integer", "minimum": 0},
			"width":  map[string]any{"type": "integer", "exclusiveMinimum": 0},
			"height": map[string]any{"type": "integer", "exclusiveMinimum": 0},
		},
	},
}

// Store reads templates from a root directory. Nothing is cached between calls.
type Store struct {
	root   string
	logger *slog.Logger
}

func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, logger: logger}
}

// Root returns the templates root directory.
func (s *Store) Root() string { return s.root }

// Load returns the templates of bank that can be compared with an input of
// extension inputExt. PDF inputs only see PDF references; everything else only
// sees raster references.
func (s *Store) Load(bank, inputExt string) ([]Template, error) {
	dir := filepath.Join(s.root, bank)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &BankNotFoundError{Bank: bank, Dir: s.root}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.WrapError(err, "read bank directory")
	}

	eligible := constants.RasterReferenceExts
	if constants.IsPDF(inputExt) {
		eligible = constants.PDFReferenceExts
	}

	var out []Template
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))

		refPath, ext, ok := findReference(dir, base, eligible)
		if !ok {
			s.logger.Debug("templates.load.no_reference", "bank", bank, "template", base)
			continue
		}

		coords, err := readCoordinates(filepath.Join(dir, e.Name()))
		if err != nil {
			s.logger.Warn("templates.load.bad_coordinates", "bank", bank, "template", base, "error", err)
			continue
		}

		tpl := Template{
			Name:          base,
			BankName:      bank,
			FileExtension: ext,
			ReferencePath: refPath,
			Coordinates:   coords,
		}
		if !constants.IsPDF(ext) {
			img, err := imaging.Open(refPath)
			if err != nil {
				s.logger.Warn("templates.load.decode_failed", "bank", bank, "reference", refPath, "error", err)
				continue
			}
			tpl.ReferenceImage = img
		}
		out = append(out, tpl)
	}

	s.logger.Info("templates.load.ok", "bank", bank, "input_ext", inputExt, "count", len(out))
	return out, nil
}

func findReference(dir, base string, exts []string) (string, string, bool) {
	for _, ext := range exts {
		for _, cand := range []string{ext, strings.ToUpper(ext)} {
			p := filepath.Join(dir, base+"."+cand)
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				return p, ext, true
			}
		}
	}
	return "", "", false
}

func readCoordinates(path string) (geometry.CoordinateSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := common.ValidateJSONAgainstSchema(coordinateSchema, data); err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "invalid coordinate file "+filepath.Base(path), err)
	}
	var coords geometry.CoordinateSet
	if err := json.Unmarshal(data, &coords); err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "invalid coordinate file "+filepath.Base(path), err)
	}
	return coords, nil
}

// Banks lists the bank directories under the root in sorted order.
func (s *Store) Banks() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.NewAppError("CONFIG_ERROR", "templates root not found: "+s.root, common.ErrNotFound)
		}
		return nil, err
	}
	var banks []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			banks = append(banks, e.Name())
		}
	}
	sort.Strings(banks)
	return banks, nil
}

// BankCount summarizes one bank directory.
type BankCount struct {
	Bank      string
	Files     int
	Templates int
}

// Count reports files and template pairs per bank, sorted by bank name.
func (s *Store) Count() ([]BankCount, error) {
	banks, err := s.Banks()
	if err != nil {
		return nil, err
	}
	out := make([]BankCount, 0, len(banks))
	for _, b := range banks {
		entries, err := os.ReadDir(filepath.Join(s.root, b))
		if err != nil {
			return nil, err
		}
		n := 0
		for _, e := range entries {
			if !e.IsDir() {
				n++
			}
		}
		out = append(out, BankCount{Bank: b, Files: n, Templates: n / 2})
	}
	return out, nil
}
