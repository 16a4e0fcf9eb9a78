package animcore

// Stage identifies which pipeline component emitted a ProgressEvent.
type Stage string

const (
	StageScale    Stage = "scale"
	StageQuantize Stage = "quantize"
	StagePlan     Stage = "plan"
	StageWrite    Stage = "write"
)

// ProgressEvent reports forward movement through the pipeline. Emission is
// synchronous and ordered; a ProgressSink must not block or apply
// back-pressure to the encoder.
type ProgressEvent struct {
	Stage        Stage
	FrameIndex   int
	FrameCount   int
	BytesWritten int
}

// ProgressSink receives ProgressEvents. It must be side-effect only: it
// never influences control flow or the bytes Encode produces.
type ProgressSink interface {
	OnProgress(ProgressEvent)
}

// ProgressFunc adapts a plain function to ProgressSink.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) OnProgress(e ProgressEvent) { f(e) }

// noopSink discards every event; used when a Job carries no ProgressSink.
type noopSink struct{}

func (noopSink) OnProgress(ProgressEvent) {}
