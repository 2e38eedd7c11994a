package compiler

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ColorEnabled gates ANSI escapes in diagnostic output. It defaults to
// whether stdout is a terminal; the CLI flips it off for --no-color.
var ColorEnabled = term.IsTerminal(int(os.Stdout.Fd()))

const (
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiReset  = "\033[00m"
)

func paint(color, s string) string {
	if !ColorEnabled {
		return s
	}
	return color + s + ansiReset
}

// DiagKind is the taxonomy of parser diagnostics.
type DiagKind int

const (
	UnexpectedTokenReached DiagKind = iota
	ExpectedTokenMissing
	EnclosingTokenMissing
	EnclosingTokenMismatch
	UnexpectedEndOfFile
	MissingReturnStatement
	UnexpectedTokenPosition // warning
)

var diagHeadlines = [...]string{
	UnexpectedTokenReached:  "unexpected token",
	ExpectedTokenMissing:    "missing expected token",
	EnclosingTokenMissing:   "missing enclosing token",
	EnclosingTokenMismatch:  "mismatching tokens found",
	UnexpectedEndOfFile:     "unexpected end of file",
	MissingReturnStatement:  "missing return statement",
	UnexpectedTokenPosition: "unexpected token position",
}

func (k DiagKind) String() string {
	if int(k) >= 0 && int(k) < len(diagHeadlines) {
		return diagHeadlines[k]
	}
	return fmt.Sprintf("DiagKind(%d)", int(k))
}

// Issue points one diagnostic at one token. A diagnostic may carry several
// issues (a tag mismatch points at both tags).
type Issue struct {
	Token   Token
	Message string
}

// Diagnostic is a single reported problem.
type Diagnostic struct {
	Kind    DiagKind
	Warning bool
	Issues  []Issue
}

// Diagnostics collects and renders parser diagnostics for one compilation.
// It replaces what used to be process-wide error state: each Parse call owns
// its own collector.
type Diagnostics struct {
	sourceLines []string
	out         io.Writer
	diags       []Diagnostic
	errCount    int
}

// NewDiagnostics creates a collector over the source being parsed. Rendered
// diagnostics go to out as they are reported.
func NewDiagnostics(src string, out io.Writer) *Diagnostics {
	return &Diagnostics{
		sourceLines: strings.Split(src, "\n"),
		out:         out,
	}
}

// Error records and renders a fatal diagnostic.
func (d *Diagnostics) Error(kind DiagKind, issues ...Issue) {
	d.errCount++
	diag := Diagnostic{Kind: kind, Issues: issues}
	d.diags = append(d.diags, diag)
	d.render(diag)
}

// Warn records and renders a non-fatal diagnostic.
func (d *Diagnostics) Warn(kind DiagKind, issues ...Issue) {
	diag := Diagnostic{Kind: kind, Warning: true, Issues: issues}
	d.diags = append(d.diags, diag)
	d.render(diag)
}

// HadErrors reports whether any fatal diagnostic was recorded. Warnings do
// not count.
func (d *Diagnostics) HadErrors() bool { return d.errCount > 0 }

// All returns every recorded diagnostic in report order.
func (d *Diagnostics) All() []Diagnostic { return d.diags }

// render prints one diagnostic with a caret-annotated source excerpt per
// issue.
func (d *Diagnostics) render(diag Diagnostic) {
	if d.out == nil {
		return
	}

	if diag.Warning {
		fmt.Fprintf(d.out, "%s %s\n", paint(ansiYellow, "[warning]:"), diag.Kind)
	} else {
		fmt.Fprintf(d.out, "%s %s\n", paint(ansiRed, "[error]:"), diag.Kind)
	}

	for _, issue := range diag.Issues {
		tok := issue.Token
		fmt.Fprintf(d.out, "\nat %s\n\n", tok.Location)

		line := ""
		if idx := tok.Location.Line - 1; idx >= 0 && idx < len(d.sourceLines) {
			line = d.sourceLines[idx]
		}

		trimmed := strings.TrimLeft(line, " ")
		indent := len(line) - len(trimmed)

		caretPos := tok.Location.Column - 1 - indent
		if caretPos < 0 {
			caretPos = 0
		}
		carets := strings.Repeat("^", max(len(tok.Text), 1))

		caretColor := ansiRed
		if diag.Warning {
			caretColor = ansiYellow
		}

		fmt.Fprintf(d.out, "%s | %s\n", paint(ansiGreen, fmt.Sprintf("%4d", tok.Location.Line)), trimmed)
		fmt.Fprintf(d.out, "     | %s%s %s\n",
			strings.Repeat(" ", caretPos), paint(caretColor, carets), issue.Message)
	}

	fmt.Fprintln(d.out)
}
