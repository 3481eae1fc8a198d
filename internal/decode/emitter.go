package decode

import (
	"strings"
	"time"

	"sketchd/internal/canvas"
)

// Emitter applies the preview/final emission policy on top of Actions as a
// buffer grows. It guarantees that every logical action is emitted with
// Complete=true exactly once, in array order, preceded by at most one
// Complete=false preview, and that nothing is emitted twice.
//
// Emitter is not safe for concurrent use; one goroutine feeds it.
type Emitter struct {
	buf    strings.Builder
	emit   func(canvas.Action)
	now    func() time.Time
	cursor int // actions already finalized
	// preview holds the last previewed action while no final has been
	// emitted for it; nil otherwise. previewStart is its streaming start,
	// kept apart from starts because the parsed entry behind a preview can
	// regress to unparseable and drop out of the parse entirely.
	preview      *canvas.Action
	previewStart time.Time
	starts       []time.Time // per-action streaming start, by array index
}

// NewEmitter wraps an emission callback. The callback is invoked
// synchronously from Feed and Finish.
func NewEmitter(emit func(canvas.Action)) *Emitter {
	return &Emitter{emit: emit, now: time.Now}
}

// Feed appends the next text delta and emits whatever the grown buffer now
// allows: finals for every newly closed action, then at most one preview of
// the action still being written.
func (e *Emitter) Feed(delta string) {
	e.buf.WriteString(delta)
	acts := Actions(e.buf.String())

	// A trailing entry can regress out of the parse when its tail turns
	// unparseable. Its recorded start goes with it, so a later action at
	// the same index gets its own timing instead of the stale one.
	if n := len(acts); n < len(e.starts) {
		if n < e.cursor {
			n = e.cursor
		}
		e.starts = e.starts[:n]
	}
	for i := len(e.starts); i < len(acts); i++ {
		e.starts = append(e.starts, e.now())
	}

	finalCount := len(acts)
	if finalCount > 0 && !acts[finalCount-1].Complete {
		finalCount--
	}

	for e.cursor < finalCount {
		a := acts[e.cursor]
		a.Complete = true
		a.ElapsedMs = e.elapsed(e.cursor)
		e.preview = nil
		e.cursor++
		e.emit(a)
	}

	if len(acts) > e.cursor && !acts[len(acts)-1].Complete && e.preview == nil {
		a := acts[len(acts)-1]
		a.ElapsedMs = e.elapsed(e.cursor)
		e.preview = &a
		if e.cursor < len(e.starts) {
			e.previewStart = e.starts[e.cursor]
		}
		e.emit(a)
	}
}

// Finish flushes the stream end. If a preview was emitted without a matching
// final, the best parse of that action is emitted once with Complete=true so
// no action is ever lost. That holds even when the entry's tail turned
// unparseable after the preview went out and the entry no longer appears in
// the parse; the previewed content stands in as the final.
func (e *Emitter) Finish() {
	acts := Actions(e.buf.String())
	for e.cursor < len(acts) {
		a := acts[e.cursor]
		a.Complete = true
		a.ElapsedMs = e.elapsed(e.cursor)
		e.preview = nil
		e.cursor++
		e.emit(a)
	}
	if e.preview != nil {
		a := *e.preview
		a.Complete = true
		if !e.previewStart.IsZero() {
			a.ElapsedMs = e.now().Sub(e.previewStart).Milliseconds()
		}
		e.preview = nil
		e.cursor++
		e.emit(a)
	}
}

// Emitted reports how many actions have been finalized so far.
func (e *Emitter) Emitted() int {
	return e.cursor
}

// Buffer exposes the accumulated text, for diagnostics.
func (e *Emitter) Buffer() string {
	return e.buf.String()
}

func (e *Emitter) elapsed(idx int) int64 {
	if idx < 0 || idx >= len(e.starts) {
		return 0
	}
	return e.now().Sub(e.starts[idx]).Milliseconds()
}
