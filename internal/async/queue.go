package async

import (
	"context"
	"time"
)

// Job is one file handed to a worker.
type Job struct {
	Path        string
	Root        string // tree the path belongs to; relative paths are computed from it
	SubmittedAt time.Time
	RunID       string
}

// Processor handles a single job.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) error

func (f ProcessorFunc) Process(ctx context.Context, job Job) error { return f(ctx, job) }

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
