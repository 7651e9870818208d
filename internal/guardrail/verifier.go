// Package guardrail re-audits masked output and decides whether it may leave
// the work area.
package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/oracle"
	"github.com/joseph-ayodele/receipts-redactor/internal/utils"
)

// Result is the audit of one masked file. HasSensitiveData is true whenever
// the audit could not be completed or understood.
type Result = oracle.Audit

// Decision is what Gate did with a masked file.
type Decision int

const (
	DecisionPromoted Decision = iota + 1
	DecisionKept
	DecisionDeleted
)

func (d Decision) String() string {
	switch d {
	case DecisionPromoted:
		return "promoted"
	case DecisionKept:
		return "kept"
	case DecisionDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Outcome of Gate. Path is where the file ended up; empty when deleted.
type Outcome struct {
	Result   Result
	Decision Decision
	Path     string
}

// Passed reports whether the file was promoted.
func (o Outcome) Passed() bool { return o.Decision == DecisionPromoted }

type Config struct {
	RejectMode string // common.RejectKeep (default) or common.RejectDelete
}

type Verifier struct {
	oracle oracle.Oracle
	cfg    Config
	logger *slog.Logger
}

func NewVerifier(o oracle.Oracle, cfg Config, logger *slog.Logger) *Verifier {
	if cfg.RejectMode == "" {
		cfg.RejectMode = common.RejectKeep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{oracle: o, cfg: cfg, logger: logger}
}

// Verify audits maskedPath. Oracle failures, timeouts included, fail closed.
func (v *Verifier) Verify(ctx context.Context, maskedPath string) Result {
	log := common.LoggerWith(ctx, v.logger).With("file", maskedPath)
	start := time.Now()

	res := v.oracle.Audit(ctx, oracle.NewDocument(maskedPath)).AuditOrFailClosed()
	if res.LeakedFields == nil {
		res.LeakedFields = []string{}
	}

	if res.HasSensitiveData {
		log.Warn("guardrail.verify.failed",
			"reason", res.Reason, "leaked_fields", res.LeakedFields, "elapsed_ms", time.Since(start).Milliseconds())
	} else {
		log.Info("guardrail.verify.passed", "reason", res.Reason, "elapsed_ms", time.Since(start).Milliseconds())
	}
	return res
}

// Gate verifies maskedPath, which must live under workRoot. A clean file is
// moved to the same relative path under outRoot. A flagged file is kept in
// place or deleted according to the reject mode. The error covers file
// system failures only.
func (v *Verifier) Gate(ctx context.Context, maskedPath, workRoot, outRoot string) (Outcome, error) {
	parts, err := utils.RelParts(workRoot, maskedPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	rel := filepath.Join(parts...)

	res := v.Verify(ctx, maskedPath)
	log := common.LoggerWith(ctx, v.logger).With("file", maskedPath)

	if !res.HasSensitiveData {
		dst := filepath.Join(outRoot, rel)
		if err := utils.MoveFile(maskedPath, dst); err != nil {
			return Outcome{Result: res, Decision: DecisionKept, Path: maskedPath}, common.WrapError(err, "promote")
		}
		log.Info("guardrail.promoted", "dest", dst)
		return Outcome{Result: res, Decision: DecisionPromoted, Path: dst}, nil
	}

	if v.cfg.RejectMode == common.RejectDelete {
		if err := os.Remove(maskedPath); err != nil && !os.IsNotExist(err) {
			return Outcome{Result: res, Decision: DecisionKept, Path: maskedPath}, common.WrapError(err, "delete rejected")
		}
		log.Info("guardrail.rejected.deleted")
		return Outcome{Result: res, Decision: DecisionDeleted}, nil
	}

	log.Info("guardrail.rejected.kept")
	return Outcome{Result: res, Decision: DecisionKept, Path: maskedPath}, nil
}
