package templates

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/geometry"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	img := imaging.New(w, h, color.White)
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
}

func TestStore_LoadBankNotFound(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	_, err := s.Load("nubank", "png")
	if !errors.Is(err, common.ErrBankNotFound) {
		t.Fatalf("err = %v, want ErrBankNotFound", err)
	}
	var bnf *BankNotFoundError
	if !errors.As(err, &bnf) || bnf.Bank != "nubank" {
		t.Errorf("err = %#v, want *BankNotFoundError for nubank", err)
	}
}

func TestStore_LoadFiltersByInputKind(t *testing.T) {
	root := t.TempDir()
	bank := filepath.Join(root, "itau")
	coords := `[{"x":10,"y":20,"width":30,"height":40}]`

	writeFile(t, filepath.Join(bank, "a.json"), coords)
	writePNG(t, filepath.Join(bank, "a.png"), 500, 750)
	writeFile(t, filepath.Join(bank, "b.json"), coords)
	writeFile(t, filepath.Join(bank, "b.pdf"), "%PDF-1.4")
	writeFile(t, filepath.Join(bank, "orphan.json"), coords)
	writeFile(t, filepath.Join(bank, "notes.txt"), "ignore me")

	s := NewStore(root, nil)

	t.Run("raster input", func(t *testing.T) {
		tpls, err := s.Load("itau", ".PNG")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(tpls) != 1 || tpls[0].Name != "a" {
			t.Fatalf("templates = %+v, want only a", tpls)
		}
		got := tpls[0]
		if got.BankName != "itau" || got.FileExtension != "png" || got.IsPDF() {
			t.Errorf("template = %+v", got)
		}
		if got.ReferenceImage == nil || geometry.SizeOf(got.ReferenceImage) != (geometry.Size{W: 500, H: 750}) {
			t.Errorf("reference image not decoded to 500x750")
		}
		want := geometry.Rectangle{X: 10, Y: 20, Width: 30, Height: 40}
		if len(got.Coordinates) != 1 || got.Coordinates[0] != want {
			t.Errorf("coordinates = %+v", got.Coordinates)
		}
	})

	t.Run("pdf input", func(t *testing.T) {
		tpls, err := s.Load("itau", "pdf")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(tpls) != 1 || tpls[0].Name != "b" {
			t.Fatalf("templates = %+v, want only b", tpls)
		}
		if tpls[0].ReferenceImage != nil || !tpls[0].IsPDF() {
			t.Errorf("pdf template should carry no image: %+v", tpls[0])
		}
	})
}

func TestStore_LoadSkipsBadTemplates(t *testing.T) {
	root := t.TempDir()
	bank := filepath.Join(root, "bradesco")

	tests := map[string]string{
		"zero_width": `[{"x":1,"y":1,"width":0,"height":5}]`,
		"negative":   `[{"x":-1,"y":1,"width":3,"height":5}]`,
		"not_array":  `{"x":1}`,
		"broken":     `[{"x":1,`,
	}
	for name, body := range tests {
		writeFile(t, filepath.Join(bank, name+".json"), body)
		writePNG(t, filepath.Join(bank, name+".png"), 10, 10)
	}
	// corrupt reference image
	writeFile(t, filepath.Join(bank, "corrupt.json"), `[{"x":1,"y":1,"width":2,"height":2}]`)
	writeFile(t, filepath.Join(bank, "corrupt.png"), "not a png")
	// one good template keeps the bank usable
	writeFile(t, filepath.Join(bank, "good.json"), `[{"x":1,"y":1,"width":2,"height":2}]`)
	writePNG(t, filepath.Join(bank, "good.jpg"), 10, 10)

	tpls, err := NewStore(root, nil).Load("bradesco", "jpg")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tpls) != 1 || tpls[0].Name != "good" || tpls[0].FileExtension != "jpg" {
		t.Fatalf("templates = %+v, want only good.jpg", tpls)
	}
}

func TestStore_LoadEmptyBank(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "inter"), 0o755); err != nil {
		t.Fatal(err)
	}
	tpls, err := NewStore(root, nil).Load("inter", "png")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tpls) != 0 {
		t.Errorf("templates = %d, want 0", len(tpls))
	}
}

func TestStore_BanksAndCount(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "santander", "a.json"), "[]")
	writeFile(t, filepath.Join(root, "santander", "a.pdf"), "%PDF")
	writeFile(t, filepath.Join(root, "caixa", "x.json"), "[]")
	writeFile(t, filepath.Join(root, "caixa", "x.png"), "")
	writeFile(t, filepath.Join(root, "caixa", "y.json"), "[]")
	writeFile(t, filepath.Join(root, "caixa", "y.png"), "")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref")
	writeFile(t, filepath.Join(root, "README.md"), "root file")

	s := NewStore(root, nil)
	banks, err := s.Banks()
	if err != nil {
		t.Fatalf("Banks: %v", err)
	}
	if len(banks) != 2 || banks[0] != "caixa" || banks[1] != "santander" {
		t.Fatalf("banks = %v", banks)
	}

	counts, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	want := []BankCount{{Bank: "caixa", Files: 4, Templates: 2}, {Bank: "santander", Files: 2, Templates: 1}}
	for i, c := range counts {
		if c != want[i] {
			t.Errorf("count[%d] = %+v, want %+v", i, c, want[i])
		}
	}
}

func TestStore_BanksMissingRoot(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "nope"), nil).Banks()
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
