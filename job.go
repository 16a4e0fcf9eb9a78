package animcore

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Job scopes a single Encode call: a request id, a progress sink, and the
// context used as its cooperative cancellation token. A Job is never
// reused across calls.
type Job struct {
	ID       uuid.UUID
	Progress ProgressSink
	Logger   zerolog.Logger

	ctx context.Context
}

// NewJob creates a Job bound to ctx, with a freshly generated request id.
// progress may be nil, in which case progress events are discarded.
// logger may be the zero value, in which case logging is a no-op
// (zerolog.Logger's zero value discards all events).
func NewJob(ctx context.Context, progress ProgressSink, logger zerolog.Logger) *Job {
	if progress == nil {
		progress = noopSink{}
	}
	id := uuid.New()
	return &Job{
		ID:       id,
		Progress: progress,
		Logger:   logger.With().Str("job_id", id.String()).Logger(),
		ctx:      ctx,
	}
}

// cancelled reports whether the job's context has been cancelled.
func (j *Job) cancelled() bool {
	return j.ctx != nil && j.ctx.Err() != nil
}

func (j *Job) emit(e ProgressEvent) {
	j.Progress.OnProgress(e)
}
