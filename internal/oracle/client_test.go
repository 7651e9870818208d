package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubBackend struct {
	out   string
	err   error
	delay time.Duration
	got   []Request
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Generate(ctx context.Context, req Request) ([]byte, error) {
	s.got = append(s.got, req)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.out), nil
}

func TestClientCompareSendsReferenceFirst(t *testing.T) {
	b := &stubBackend{out: `{"is_match": true, "confidence": 0.97, "reason": "igual"}`}
	c := NewClient(b, Config{}, nil)

	ref, in := NewDocument("/t/nubank/a.png"), NewDocument("/in/x.jpg")
	r := c.Compare(context.Background(), ref, in)
	if r.Kind != KindMatch {
		t.Fatalf("kind = %v, err = %v", r.Kind, r.Err)
	}
	if len(b.got) != 1 || len(b.got[0].Documents) != 2 {
		t.Fatalf("unexpected requests: %+v", b.got)
	}
	if b.got[0].Documents[0] != ref || b.got[0].Documents[1] != in {
		t.Errorf("documents out of order: %+v", b.got[0].Documents)
	}
	if b.got[0].Documents[1].MIMEType != "image/jpeg" {
		t.Errorf("mime = %q", b.got[0].Documents[1].MIMEType)
	}
}

func TestClientCompareBackendError(t *testing.T) {
	c := NewClient(&stubBackend{err: errors.New("boom")}, Config{}, nil)
	r := c.Compare(context.Background(), NewDocument("a.png"), NewDocument("b.png"))
	if r.Kind != KindError {
		t.Fatalf("kind = %v", r.Kind)
	}
	if m := r.MatchOrNoMatch(); m.Confidence != 0 || m.IsMatch {
		t.Errorf("got %+v", m)
	}
}

func TestClientAuditTimeoutFailsClosed(t *testing.T) {
	c := NewClient(&stubBackend{delay: time.Second, out: `{"has_sensitive_data": false}`}, Config{Timeout: 20 * time.Millisecond}, nil)
	r := c.Audit(context.Background(), NewDocument("masked.png"))
	if r.Kind != KindError {
		t.Fatalf("kind = %v", r.Kind)
	}
	a := r.AuditOrFailClosed()
	if !a.HasSensitiveData {
		t.Fatal("timeout must fail closed")
	}
	if !strings.HasPrefix(a.Reason, "Error during check: ") {
		t.Errorf("reason = %q", a.Reason)
	}
}

func TestClientClassify(t *testing.T) {
	c := NewClient(&stubBackend{out: "```json\n{\"classify\": \"Itaú\"}\n```"}, Config{}, nil)
	bank, err := c.Classify(context.Background(), NewDocument("r.pdf"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bank != "Itaú" {
		t.Errorf("bank = %q", bank)
	}
}
