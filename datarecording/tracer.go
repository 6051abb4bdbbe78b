package datarecording

import "github.com/CircuitSutra/VeeR-ISS/mem/vm"

// A Tracer publishes completed translations to a TraceRecorder. It
// satisfies the tracer interface of the MMU.
type Tracer struct {
	recorder *TraceRecorder
}

// NewTracer creates a Tracer feeding the given recorder.
func NewTracer(r *TraceRecorder) *Tracer {
	return &Tracer{recorder: r}
}

// TraceTranslation records one completed translation.
func (t *Tracer) TraceTranslation(
	hartIx int,
	va, pa uint64,
	mode vm.Mode,
	read, write, exec bool,
	cause vm.ExceptionCause,
) {
	t.recorder.Record(TranslationTrace{
		HartIx: hartIx,
		Mode:   mode.String(),
		VA:     va,
		PA:     pa,
		Read:   read,
		Write:  write,
		Exec:   exec,
		Cause:  cause.String(),
	})
}
