package constants

// FileState is the per-file pipeline state.
type FileState string

// Stable values (these exact strings land in the ledger and the report).
const (
	FileStateStart    FileState = "START"
	FileStateMatched  FileState = "MATCHED"
	FileStateMasked   FileState = "MASKED"
	FileStateVerified FileState = "VERIFIED"
	FileStateDone     FileState = "DONE"

	FileStateNoTemplate FileState = "NO_TEMPLATE" // terminal: matcher found nothing
	FileStateMaskFailed FileState = "MASK_FAILED" // terminal: masking engine returned false
	FileStateRejected   FileState = "REJECTED"    // terminal: guardrail found PII
	FileStateSkipped    FileState = "SKIPPED"     // terminal: path does not follow person/bank/file
	FileStateError      FileState = "ERROR"       // terminal: unreadable input
)

// Terminal reports whether no further transition can happen from s.
func (s FileState) Terminal() bool {
	switch s {
	case FileStateDone, FileStateNoTemplate, FileStateMaskFailed, FileStateRejected, FileStateSkipped, FileStateError:
		return true
	}
	return false
}

// Succeeded reports whether s is the happy terminal state.
func (s FileState) Succeeded() bool { return s == FileStateDone }
