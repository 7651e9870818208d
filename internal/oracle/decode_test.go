package oracle

import (
	"reflect"
	"strings"
	"testing"
)

func TestDecodeMatch(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Match
		wantErr bool
	}{
		{
			name: "plain object",
			raw:  `{"is_match": true, "confidence": 0.97, "reason": "mesmos rótulos"}`,
			want: Match{IsMatch: true, Confidence: 0.97, Reason: "mesmos rótulos"},
		},
		{
			name: "fenced block",
			raw:  "Claro!\n```json\n{\"is_match\": false, \"confidence\": 0.2, \"reason\": \"web vs app\"}\n```",
			want: Match{IsMatch: false, Confidence: 0.2, Reason: "web vs app"},
		},
		{
			name: "loose types",
			raw:  `{"is_match": "true", "confidence": "0,85", "reason": "ok"}`,
			want: Match{IsMatch: true, Confidence: 0.85, Reason: "ok"},
		},
		{
			name: "percent confidence",
			raw:  `{"is_match": true, "confidence": 92, "reason": "ok"}`,
			want: Match{IsMatch: true, Confidence: 0.92, Reason: "ok"},
		},
		{
			name: "missing confidence",
			raw:  `{"is_match": true, "reason": "x"}`,
			want: Match{IsMatch: true, Confidence: 0, Reason: "x"},
		},
		{
			name: "missing reason",
			raw:  `{"is_match": false, "confidence": 0.99}`,
			want: Match{IsMatch: false, Confidence: 0.99},
		},
		{
			name: "missing verdict",
			raw:  `{"confidence": 0.4, "reason": "talvez"}`,
			want: Match{IsMatch: false, Confidence: 0.4, Reason: "talvez"},
		},
		{name: "empty object", raw: `{}`, want: Match{}},
		{name: "verdict of wrong type", raw: `{"is_match": 1, "confidence": 0.5}`, wantErr: true},
		{name: "confidence out of range", raw: `{"is_match": true, "confidence": 250, "reason": "x"}`, wantErr: true},
		{name: "not json", raw: `the layouts look the same`, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMatch([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeAuditFailsClosed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Audit
	}{
		{
			name: "clean pass",
			raw:  `{"has_sensitive_data": false, "reason": "tudo coberto"}`,
			want: Audit{HasSensitiveData: false, Reason: "tudo coberto", LeakedFields: []string{}},
		},
		{
			name: "analysis instead of reason",
			raw:  `{"has_sensitive_data": false, "analysis": "tarjas sólidas"}`,
			want: Audit{HasSensitiveData: false, Reason: "tarjas sólidas", LeakedFields: []string{}},
		},
		{
			name: "leak with fields",
			raw:  `{"has_sensitive_data": true, "reason": "nome visível", "leaked_fields": ["Destinatário", 3, "CPF"]}`,
			want: Audit{HasSensitiveData: true, Reason: "nome visível", LeakedFields: []string{"Destinatário", "CPF"}},
		},
		{
			name: "missing verdict",
			raw:  `{"reason": "não sei"}`,
			want: Audit{HasSensitiveData: true, Reason: "não sei", LeakedFields: []string{}},
		},
		{
			name: "empty object",
			raw:  `{}`,
			want: Audit{HasSensitiveData: true, Reason: "No reason provided", LeakedFields: []string{}},
		},
		{
			name: "verdict of wrong type",
			raw:  `{"has_sensitive_data": 0}`,
			want: Audit{HasSensitiveData: true, Reason: "No reason provided", LeakedFields: []string{}},
		},
		{
			name: "fenced",
			raw:  "```\n{\"has_sensitive_data\": \"false\", \"reason\": \"ok\"}\n```",
			want: Audit{HasSensitiveData: false, Reason: "ok", LeakedFields: []string{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeAudit([]byte(tt.raw))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeAuditUnparseable(t *testing.T) {
	got := DecodeAudit([]byte("I could not read the image"))
	if !got.HasSensitiveData {
		t.Fatal("unparseable response must fail closed")
	}
	if !strings.HasPrefix(got.Reason, "Unparseable oracle response") {
		t.Errorf("unexpected reason %q", got.Reason)
	}
}

func TestDecodeClassify(t *testing.T) {
	got, err := DecodeClassify([]byte(`{"classify": " Nubank "}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Nubank" {
		t.Errorf("got %q", got)
	}
	if _, err := DecodeClassify([]byte(`{"bank": "Nubank"}`)); err == nil {
		t.Error("expected schema error for missing classify")
	}
}

func TestResultDefaults(t *testing.T) {
	r := ErrorResult(errTest("timeout"))
	if m := r.MatchOrNoMatch(); m.IsMatch || m.Confidence != 0 {
		t.Errorf("error result must be a non-match, got %+v", m)
	}
	a := r.AuditOrFailClosed()
	if !a.HasSensitiveData || a.Reason != "Error during check: timeout" {
		t.Errorf("error result must fail closed, got %+v", a)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
