package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"entgo.io/ent/dialect"

	"github.com/joseph-ayodele/receipts-redactor/constants"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/pipeline"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		dialect string
		source  string
		wantErr bool
	}{
		{"sqlite:/tmp/ledger.db", dialect.SQLite, "/tmp/ledger.db", false},
		{"postgres://u:p@localhost:5432/redactor", dialect.Postgres, "postgres://u:p@localhost:5432/redactor", false},
		{"postgresql://localhost/redactor", dialect.Postgres, "postgresql://localhost/redactor", false},
		{"postgres:host=localhost dbname=redactor", dialect.Postgres, "host=localhost dbname=redactor", false},
		{"sqlite:", "", "", true},
		{"mysql://localhost", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			d, src, err := ParseDSN(tt.dsn)
			if tt.wantErr {
				if !errors.Is(err, common.ErrInvalidInput) {
					t.Fatalf("err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDSN: %v", err)
			}
			if d != tt.dialect || src != tt.source {
				t.Errorf("got (%q, %q), want (%q, %q)", d, src, tt.dialect, tt.source)
			}
		})
	}
}

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(context.Background(), Config{DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestLedger_RecordAndList(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	if l.Dialect() != dialect.SQLite {
		t.Fatalf("dialect = %s", l.Dialect())
	}
	if err := l.HealthCheck(ctx, time.Second); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	started := time.UnixMilli(1_700_000_000_123)
	outcomes := []pipeline.Outcome{
		{RunID: "r1", Path: "/in/ana/nubank/a.png", Rel: "ana/nubank/a.png", Person: "ana", Bank: "nubank",
			State: constants.FileStateDone, Template: "nubank/pix.png", Confidence: 0.97,
			OutputPath: "/out/ana/nubank/a.png", StartedAt: started, Duration: 1250 * time.Millisecond},
		{RunID: "r1", Path: "/in/ana/itau/b.pdf", State: constants.FileStateRejected,
			Leaked: []string{"cpf"}, StartedAt: started},
		{RunID: "r2", Path: "/in/bob/inter/c.jpg", State: constants.FileStateNoTemplate, StartedAt: started},
	}
	for _, o := range outcomes {
		if err := l.Record(ctx, o); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := l.List(ctx, Filter{RunID: "r1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// newest first
	if got[0].State != constants.FileStateRejected || len(got[0].Leaked) != 1 || got[0].Leaked[0] != "cpf" {
		t.Errorf("got[0] = %+v", got[0])
	}
	first := got[1]
	if first.Template != "nubank/pix.png" || first.Confidence != 0.97 || first.Person != "ana" {
		t.Errorf("got[1] = %+v", first)
	}
	if !first.StartedAt.Equal(started) || first.Duration != 1250*time.Millisecond {
		t.Errorf("times = %v %v", first.StartedAt, first.Duration)
	}
	if len(first.Leaked) != 0 {
		t.Errorf("leaked = %v, want empty", first.Leaked)
	}

	byState, err := l.List(ctx, Filter{State: constants.FileStateNoTemplate})
	if err != nil || len(byState) != 1 || byState[0].RunID != "r2" {
		t.Errorf("state filter = %+v, %v", byState, err)
	}
	limited, err := l.List(ctx, Filter{Limit: 1})
	if err != nil || len(limited) != 1 || limited[0].RunID != "r2" {
		t.Errorf("limit = %+v, %v", limited, err)
	}
}

func TestLedger_Stats(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	states := []constants.FileState{
		constants.FileStateDone,
		constants.FileStateDone,
		constants.FileStateRejected,
		constants.FileStateMaskFailed,
		constants.FileStateSkipped,
	}
	for i, s := range states {
		run := "r1"
		if i == 0 {
			run = "r0"
		}
		if err := l.Record(ctx, pipeline.Outcome{RunID: run, Path: "/x", State: s}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := l.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := pipeline.StatsSnapshot{Total: 5, Success: 2, Error: 2, Rejected: 1, Skipped: 1}
	if all != want {
		t.Errorf("all = %+v, want %+v", all, want)
	}

	r1, err := l.Stats(ctx, "r1")
	if err != nil {
		t.Fatalf("Stats(r1): %v", err)
	}
	if r1.Total != 4 || r1.Success != 1 {
		t.Errorf("r1 = %+v", r1)
	}
}

func TestLedger_SatisfiesRecorder(t *testing.T) {
	var _ pipeline.Recorder = (*Ledger)(nil)
}
