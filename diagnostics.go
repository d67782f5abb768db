package rtmcvm

import (
	"fmt"
	"io"
	"sync"
)

// Diagnostics is the VM's tagged output channel. Every line it writes
// carries one of the two tags the original firmware's
// rtmc_debug_print/rtmc_error_print helpers use, so host tooling can
// grep/filter the stream without parsing structured fields.
type Diagnostics struct {
	mu    sync.Mutex
	w     io.Writer
	trace bool
}

// NewDiagnostics wraps w as a Diagnostics sink. A nil w discards output.
func NewDiagnostics(w io.Writer) *Diagnostics {
	return &Diagnostics{w: w}
}

// SetTrace enables or disables per-instruction trace lines.
func (d *Diagnostics) SetTrace(on bool) {
	d.mu.Lock()
	d.trace = on
	d.mu.Unlock()
}

// Tracing reports whether trace lines are currently enabled.
func (d *Diagnostics) Tracing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trace
}

// Debugf writes one "[RTMC DEBUG] ..." line.
func (d *Diagnostics) Debugf(format string, args ...any) {
	d.writeLine("[RTMC DEBUG] " + fmt.Sprintf(format, args...))
}

// Errorf writes one "[RTMC ERROR] ..." line.
func (d *Diagnostics) Errorf(format string, args ...any) {
	d.writeLine("[RTMC ERROR] " + fmt.Sprintf(format, args...))
}

// Trace emits one per-instruction trace line: task name and PC, matching
// spec.md §6's "(task name, pc)" trace format.
func (d *Diagnostics) Trace(taskName string, pc uint32) {
	if !d.Tracing() {
		return
	}
	d.Debugf("(%s, %d)", taskName, pc)
}

func (d *Diagnostics) writeLine(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.w == nil {
		return
	}
	fmt.Fprintln(d.w, line)
}
