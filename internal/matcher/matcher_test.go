package matcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/oracle"
	"github.com/joseph-ayodele/receipts-redactor/internal/templates"
)

// fakeOracle answers Compare from a table keyed by the reference file's base
// name and records the order of calls.
type fakeOracle struct {
	mu      sync.Mutex
	answers map[string]oracle.Result
	calls   []string
}

func (f *fakeOracle) Compare(_ context.Context, reference, _ oracle.Document) oracle.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := strings.TrimSuffix(filepath.Base(reference.Path), filepath.Ext(reference.Path))
	f.calls = append(f.calls, name)
	if r, ok := f.answers[name]; ok {
		return r
	}
	return oracle.MatchResult(oracle.Match{})
}

func (f *fakeOracle) Audit(context.Context, oracle.Document) oracle.Result {
	return oracle.AuditResult(oracle.FailClosed("not used"))
}

// fakeSource serves templates from memory, keyed by bank.
type fakeSource struct {
	banks map[string][]string
}

func (s fakeSource) Load(bank, ext string) ([]templates.Template, error) {
	names, ok := s.banks[bank]
	if !ok {
		return nil, &templates.BankNotFoundError{Bank: bank, Dir: "mem"}
	}
	out := make([]templates.Template, 0, len(names))
	for _, n := range names {
		out = append(out, templates.Template{Name: n, BankName: bank, FileExtension: "png", ReferencePath: "/tpl/" + bank + "/" + n + ".png"})
	}
	return out, nil
}

func (s fakeSource) Banks() ([]string, error) {
	var out []string
	for _, b := range []string{"a_bank", "b_bank", "c_bank"} {
		if _, ok := s.banks[b]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func match(isMatch bool, conf float64) oracle.Result {
	return oracle.MatchResult(oracle.Match{IsMatch: isMatch, Confidence: conf, Reason: "layout"})
}

func TestBestOfN_ConfidenceOnlyRanking(t *testing.T) {
	// A says yes at 0.97, B says no at 0.99: confidence wins.
	fo := &fakeOracle{answers: map[string]oracle.Result{
		"A": match(true, 0.97),
		"B": match(false, 0.99),
	}}
	m := New(fakeSource{banks: map[string][]string{"itau": {"A", "B"}}}, fo, Config{}, nil)

	got, err := m.BestOfN(context.Background(), "in.png", "itau")
	if err != nil {
		t.Fatalf("BestOfN: %v", err)
	}
	if got == nil || got.Template.Name != "B" {
		t.Fatalf("winner = %+v, want B", got)
	}
	if got.IsMatch || got.Confidence != 0.99 {
		t.Errorf("result = %+v", got)
	}
}

func TestBestOfN_StableTieBreak(t *testing.T) {
	tests := []struct {
		name  string
		confs []float64
		want  string
	}{
		{"first max wins", []float64{0.5, 0.9, 0.9, 0.1}, "T1"},
		{"all equal", []float64{0.7, 0.7, 0.7}, "T0"},
		{"all zero", []float64{0, 0, 0}, "T0"},
		{"last is max", []float64{0.1, 0.2, 0.3}, "T2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers := map[string]oracle.Result{}
			var names []string
			for i, c := range tt.confs {
				n := "T" + string(rune('0'+i))
				names = append(names, n)
				answers[n] = match(false, c)
			}
			fo := &fakeOracle{answers: answers}
			m := New(fakeSource{banks: map[string][]string{"bank": names}}, fo, Config{}, nil)

			for run := 0; run < 3; run++ {
				got, err := m.BestOfN(context.Background(), "in.png", "bank")
				if err != nil {
					t.Fatalf("BestOfN: %v", err)
				}
				if got.Template.Name != tt.want {
					t.Fatalf("run %d: winner = %s, want %s", run, got.Template.Name, tt.want)
				}
			}
		})
	}
}

func TestBestOfN_OracleErrorIsNoMatch(t *testing.T) {
	fo := &fakeOracle{answers: map[string]oracle.Result{
		"A": oracle.ErrorResult(context.DeadlineExceeded),
		"B": match(true, 0.4),
		"C": oracle.ErrorResult(errors.New("boom")),
	}}
	m := New(fakeSource{banks: map[string][]string{"bank": {"A", "B", "C"}}}, fo, Config{}, nil)

	got, err := m.BestOfN(context.Background(), "in.png", "bank")
	if err != nil {
		t.Fatalf("BestOfN: %v", err)
	}
	if got.Template.Name != "B" {
		t.Errorf("winner = %s, want B", got.Template.Name)
	}
	if len(fo.calls) != 3 {
		t.Errorf("calls = %v, want all three templates compared", fo.calls)
	}

	fo = &fakeOracle{answers: map[string]oracle.Result{"A": oracle.ErrorResult(errors.New("boom"))}}
	got, _ = New(fakeSource{banks: map[string][]string{"bank": {"A"}}}, fo, Config{}, nil).
		BestOfN(context.Background(), "in.png", "bank")
	if got == nil || got.Confidence != 0 || got.IsMatch || !strings.HasPrefix(got.Reason, "Error: ") {
		t.Errorf("error-only result = %+v", got)
	}
}

func TestBestOfN_NoTemplatesNoCalls(t *testing.T) {
	fo := &fakeOracle{}
	m := New(fakeSource{banks: map[string][]string{"empty": nil}}, fo, Config{}, nil)

	got, err := m.BestOfN(context.Background(), "in.png", "empty")
	if err != nil || got != nil {
		t.Fatalf("got %+v, %v; want nil, nil", got, err)
	}
	if len(fo.calls) != 0 {
		t.Errorf("oracle called %d times", len(fo.calls))
	}
}

func TestBestOfN_BankNotFound(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	fo := &fakeOracle{}
	m := New(templates.NewStore(filepath.Join(root, "templates"), nil), fo, Config{}, nil)

	got, err := m.BestOfN(context.Background(), "in.png", "nubank")
	if !errors.Is(err, common.ErrBankNotFound) {
		t.Fatalf("err = %v, want ErrBankNotFound", err)
	}
	if got != nil || len(fo.calls) != 0 {
		t.Errorf("got %+v with %d calls", got, len(fo.calls))
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("no output should be created")
	}
}

func TestFirstAboveThreshold_ShortCircuit(t *testing.T) {
	fo := &fakeOracle{answers: map[string]oracle.Result{
		"T1": match(true, 0.90),  // below threshold
		"T2": match(true, 0.96),  // first hit
		"T3": match(true, 0.99),  // never evaluated
		"U1": match(false, 1.00), // never evaluated
	}}
	src := fakeSource{banks: map[string][]string{
		"a_bank": {"T1", "T2", "T3"},
		"b_bank": {"U1"},
	}}
	m := New(src, fo, Config{}, nil)

	got, err := m.FirstAboveThreshold(context.Background(), "in.png", DefaultThreshold)
	if err != nil {
		t.Fatalf("FirstAboveThreshold: %v", err)
	}
	if got == nil || got.Template.Name != "T2" || got.Template.BankName != "a_bank" {
		t.Fatalf("winner = %+v, want a_bank/T2", got)
	}
	if strings.Join(fo.calls, ",") != "T1,T2" {
		t.Errorf("calls = %v, want [T1 T2]", fo.calls)
	}
}

func TestFirstAboveThreshold_RequiresIsMatch(t *testing.T) {
	fo := &fakeOracle{answers: map[string]oracle.Result{
		"X": match(false, 0.99),
		"Y": match(true, 0.95),
	}}
	src := fakeSource{banks: map[string][]string{"a_bank": {"X"}, "c_bank": {"Y"}}}

	got, err := New(src, fo, Config{}, nil).FirstAboveThreshold(context.Background(), "in.png", 0.95)
	if err != nil {
		t.Fatalf("FirstAboveThreshold: %v", err)
	}
	if got == nil || got.Template.Name != "Y" {
		t.Fatalf("winner = %+v, want Y (threshold is inclusive)", got)
	}
}

func TestFirstAboveThreshold_Miss(t *testing.T) {
	fo := &fakeOracle{answers: map[string]oracle.Result{"X": match(true, 0.5)}}
	src := fakeSource{banks: map[string][]string{"a_bank": {"X"}, "b_bank": nil}}

	got, err := New(src, fo, Config{}, nil).FirstAboveThreshold(context.Background(), "in.png", 0.95)
	if err != nil || got != nil {
		t.Fatalf("got %+v, %v; want nil, nil", got, err)
	}
}

func TestMatch_Dispatch(t *testing.T) {
	fo := &fakeOracle{answers: map[string]oracle.Result{
		"A": match(true, 0.96),
		"B": match(false, 0.99),
	}}
	m := New(fakeSource{banks: map[string][]string{"a_bank": {"A", "B"}}}, fo, Config{Threshold: 0.95}, nil)

	best, err := m.Match(context.Background(), PolicyBestOfN, "in.png", "a_bank")
	if err != nil || best.Template.Name != "B" {
		t.Fatalf("best-of-n = %+v, %v", best, err)
	}
	first, err := m.Match(context.Background(), PolicyFirstAboveThreshold, "in.png", "ignored")
	if err != nil || first.Template.Name != "A" {
		t.Fatalf("first-above-threshold = %+v, %v", first, err)
	}
	if _, err := m.Match(context.Background(), Policy("random"), "in.png", "a_bank"); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("unknown policy err = %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := map[string]Policy{
		"":                      PolicyBestOfN,
		"best":                  PolicyBestOfN,
		"BEST-OF-N":             PolicyBestOfN,
		"first":                 PolicyFirstAboveThreshold,
		"first-above-threshold": PolicyFirstAboveThreshold,
	}
	for in, want := range tests {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParsePolicy("worst"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

// rawBackend returns canned model text keyed by the reference file's base name.
type rawBackend struct {
	replies map[string]string
}

func (rawBackend) Name() string { return "raw" }

func (b rawBackend) Generate(_ context.Context, req oracle.Request) ([]byte, error) {
	ref := req.Documents[0].Path
	name := strings.TrimSuffix(filepath.Base(ref), filepath.Ext(ref))
	return []byte(b.replies[name]), nil
}

func TestBestOfN_ReasonlessRepliesThroughClient(t *testing.T) {
	client := oracle.NewClient(rawBackend{replies: map[string]string{
		"A": `{"is_match": true, "confidence": 0.97}`,
		"B": `{"is_match": false, "confidence": 0.99}`,
	}}, oracle.Config{}, nil)
	m := New(fakeSource{banks: map[string][]string{"itau": {"A", "B"}}}, client, Config{}, nil)

	got, err := m.BestOfN(context.Background(), "in.png", "itau")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Template.Name != "B" {
		t.Fatalf("expected B to win, got %+v", got)
	}
	if got.Confidence != 0.99 || got.IsMatch {
		t.Errorf("got confidence=%v is_match=%v, want 0.99 false", got.Confidence, got.IsMatch)
	}
	if got.Reason != "" {
		t.Errorf("expected empty reason, got %q", got.Reason)
	}
}

func TestFirstAboveThreshold_ReasonlessHitThroughClient(t *testing.T) {
	client := oracle.NewClient(rawBackend{replies: map[string]string{
		"A": `{"is_match": true, "confidence": 0.97}`,
	}}, oracle.Config{}, nil)
	m := New(fakeSource{banks: map[string][]string{"a_bank": {"A"}}}, client, Config{}, nil)

	got, err := m.FirstAboveThreshold(context.Background(), "in.png", 0.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Template.Name != "A" {
		t.Fatalf("expected a hit on A, got %+v", got)
	}
}
