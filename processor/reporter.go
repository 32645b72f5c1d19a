package processor

import (
	"fmt"
	"go/token"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// Severity classifies a diagnostic.
type Severity int

const (
	// Warning diagnostics describe suspicious annotations that do not
	// prevent code generation.
	Warning Severity = iota
	// Error diagnostics describe invalid annotations. Processing continues
	// with other elements and packages, but the run as a whole fails.
	Error
	// Internal diagnostics describe bugs in a processor rather than problems
	// with the processed source.
	Internal
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Internal:
		return "internal"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Diagnostic is a single problem found while processing annotations,
// associated with the source position it was found at when one is known.
type Diagnostic struct {
	Pos      token.Position
	Severity Severity
	Message  string
}

// String formats the diagnostic the way compilers do, as
// "file:line:col: message". Warnings and internal errors carry a severity
// prefix on the message; errors do not, since they are the common case.
func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Pos.Filename != "" || d.Pos.IsValid() {
		b.WriteString(d.Pos.String())
		b.WriteString(": ")
	}
	switch d.Severity {
	case Warning:
		b.WriteString("warning: ")
	case Internal:
		b.WriteString("internal: ")
	}
	b.WriteString(d.Message)
	return b.String()
}

// Reporter accumulates the diagnostics produced while computing annotations
// and running processors. A single reporter is shared by all of the contexts
// in a run, so a failure in one package does not hide problems in another.
// It is safe for concurrent use.
type Reporter struct {
	mu    sync.Mutex
	diags []Diagnostic
	errs  int
}

// NewReporter returns an empty reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

func (r *Reporter) add(d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, d)
	if d.Severity != Warning {
		r.errs++
	}
}

// Errorf records an error diagnostic at the given position.
func (r *Reporter) Errorf(pos token.Position, format string, args ...interface{}) {
	r.add(Diagnostic{Pos: pos, Severity: Error, Message: fmt.Sprintf(format, args...)})
}

// Warningf records a warning diagnostic at the given position.
func (r *Reporter) Warningf(pos token.Position, format string, args ...interface{}) {
	r.add(Diagnostic{Pos: pos, Severity: Warning, Message: fmt.Sprintf(format, args...)})
}

// Internalf records an internal error diagnostic at the given position.
func (r *Reporter) Internalf(pos token.Position, format string, args ...interface{}) {
	r.add(Diagnostic{Pos: pos, Severity: Internal, Message: fmt.Sprintf(format, args...)})
}

// Report records an error as a diagnostic. If the error carries position
// information it is attached to the diagnostic, and assertion failures are
// classified as internal errors instead of problems with the processed
// source.
func (r *Reporter) Report(err error) {
	var pos token.Position
	msg := err.Error()
	var pe *ErrorWithPosition
	if errors.As(err, &pe) {
		pos = pe.Pos()
		msg = pe.Underlying().Error()
	}
	sev := Error
	if errors.HasAssertionFailure(err) {
		sev = Internal
	}
	r.add(Diagnostic{Pos: pos, Severity: sev, Message: msg})
}

// HasErrors reports whether any diagnostics of severity Error or Internal
// have been recorded.
func (r *Reporter) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs > 0
}

// Diagnostics returns a copy of the recorded diagnostics, ordered by source
// position. Diagnostics at the same position stay in the order they were
// recorded.
func (r *Reporter) Diagnostics() []Diagnostic {
	r.mu.Lock()
	diags := make([]Diagnostic, len(r.diags))
	copy(diags, r.diags)
	r.mu.Unlock()

	sort.SliceStable(diags, func(i, j int) bool {
		pi, pj := diags[i].Pos, diags[j].Pos
		if pi.Filename != pj.Filename {
			return pi.Filename < pj.Filename
		}
		if pi.Line != pj.Line {
			return pi.Line < pj.Line
		}
		return pi.Column < pj.Column
	})
	return diags
}

// Print writes all recorded diagnostics to the given writer, one per line.
func (r *Reporter) Print(w io.Writer) {
	for _, d := range r.Diagnostics() {
		fmt.Fprintln(w, d)
	}
}

// Err returns nil if no errors have been recorded, and otherwise an error
// summarizing them.
func (r *Reporter) Err() error {
	diags := r.Diagnostics()
	var first *Diagnostic
	n := 0
	for i := range diags {
		if diags[i].Severity == Warning {
			continue
		}
		if first == nil {
			first = &diags[i]
		}
		n++
	}
	if first == nil {
		return nil
	}
	switch n {
	case 1:
		return errors.Newf("%s", *first)
	case 2:
		return errors.Newf("%s (and 1 more error)", *first)
	}
	return errors.Newf("%s (and %d more errors)", *first, n-1)
}
