// Package oracle wraps the vision model used to compare receipt layouts, audit
// masked output for leftover PII and classify the issuing bank. Every call
// resolves to a tagged Result so callers never deal with raw model output.
package oracle

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/receipts-redactor/constants"
)

// Kind tags the variant held by a Result.
type Kind int

const (
	KindMatch Kind = iota + 1
	KindAudit
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindMatch:
		return "match"
	case KindAudit:
		return "audit"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Match is the layout comparison judgment.
type Match struct {
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Audit is the PII audit judgment. Reason holds either the model's "reason" or
// its "analysis" field.
type Audit struct {
	HasSensitiveData bool     `json:"has_sensitive_data"`
	Reason           string   `json:"reason"`
	LeakedFields     []string `json:"leaked_fields"`
}

// Result is the tagged outcome of one oracle call.
type Result struct {
	Kind  Kind
	Match Match
	Audit Audit
	Err   error
}

func MatchResult(m Match) Result { return Result{Kind: KindMatch, Match: m} }
func AuditResult(a Audit) Result { return Result{Kind: KindAudit, Audit: a} }
func ErrorResult(err error) Result {
	return Result{Kind: KindError, Err: err}
}

// MatchOrNoMatch returns the parsed match, or a zero-confidence non-match
// carrying the error text when the call failed.
func (r Result) MatchOrNoMatch() Match {
	if r.Kind == KindMatch {
		return r.Match
	}
	return Match{IsMatch: false, Confidence: 0, Reason: fmt.Sprintf("Error: %v", r.Err)}
}

// AuditOrFailClosed returns the parsed audit, or a fail-closed audit when the
// call failed.
func (r Result) AuditOrFailClosed() Audit {
	if r.Kind == KindAudit {
		return r.Audit
	}
	return FailClosed(fmt.Sprintf("Error during check: %v", r.Err))
}

// FailClosed builds the audit used whenever a decision cannot be made.
func FailClosed(reason string) Audit {
	return Audit{HasSensitiveData: true, Reason: reason, LeakedFields: []string{}}
}

// Document is a file handed to the model.
type Document struct {
	Path     string
	MIMEType string
}

// NewDocument derives the MIME type from the file extension.
func NewDocument(path string) Document {
	return Document{Path: path, MIMEType: constants.MIMEType(filepath.Ext(path))}
}

// IsPDF reports whether the document is a PDF.
func (d Document) IsPDF() bool { return d.MIMEType == "application/pdf" }

// Base64 reads the document and returns it base64-encoded.
func (d Document) Base64() (string, error) {
	b, err := os.ReadFile(d.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", d.Path, err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Request is what a backend sends to its model.
type Request struct {
	Prompt    string
	Documents []Document
	Shape     Shape
}

// Backend is a transport to one vision model. It returns the model's raw text output.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// Oracle is what the matcher and the guardrail depend on.
type Oracle interface {
	Compare(ctx context.Context, reference, input Document) Result
	Audit(ctx context.Context, doc Document) Result
}

// Classifier identifies the bank that issued a receipt.
type Classifier interface {
	Classify(ctx context.Context, doc Document) (string, error)
}

// Rasterizer renders the first page of a PDF to a PNG inside dir.
type Rasterizer interface {
	FirstPagePNG(ctx context.Context, pdfPath, dir string) (string, error)
}
