package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/xplshn/mcc/pkg/diag"
	"github.com/xplshn/mcc/pkg/token"
)

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

// Reporter renders diagnostics the way a compiler prints them: a location
// line, the offending source line and a caret under the token.
type Reporter struct {
	out   io.Writer
	files []SourceFileRecord
	color bool
}

// NewReporter writes to out. Colors are used only when out is a terminal.
func NewReporter(out io.Writer, files []SourceFileRecord) *Reporter {
	r := &Reporter{out: out, files: files}
	if f, ok := out.(*os.File); ok {
		r.color = term.IsTerminal(int(f.Fd()))
	}
	return r
}

func (r *Reporter) SetColor(enabled bool) { r.color = enabled }

func (r *Reporter) paint(code, s string) string {
	if !r.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// FileName returns the name of the file a token belongs to.
func (r *Reporter) FileName(fileIndex int) string {
	if fileIndex < 0 || fileIndex >= len(r.files) {
		return "unknown"
	}
	return r.files[fileIndex].Name
}

// printErrorLine prints the source line and a caret indicating the error position
func (r *Reporter) printErrorLine(tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(r.files) || tok.Line == 0 {
		return
	}

	content := r.files[tok.FileIndex].Content
	lineNum := tok.Line
	lineStart := 0
	// Find the start of the error line
	for i, ch := range content {
		if lineNum <= 1 {
			break
		}
		if ch == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	if lineNum > 1 {
		return
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}
	line := content[lineStart:lineEnd]
	fmt.Fprintf(r.out, "  %s\n", string(line))

	// tabs before the token are kept so the caret lines up
	var pad strings.Builder
	for i := 0; i < tok.Column-1 && i < len(line); i++ {
		if line[i] == '\t' {
			pad.WriteRune('\t')
		} else {
			pad.WriteRune(' ')
		}
	}
	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(r.out, "  %s%s\n", pad.String(), r.paint("32", caret))
}

// Report prints one diagnostic.
func (r *Reporter) Report(d diag.Diagnostic) {
	filename := r.FileName(d.Tok.FileIndex)
	fmt.Fprintf(r.out, "%s:%d:%d: ", filename, d.Tok.Line, d.Tok.Column)
	if d.Severity == diag.Warning {
		fmt.Fprintf(r.out, "%s %s", r.paint("33", "warning:"), d.Message)
		if d.Flag != "" {
			fmt.Fprintf(r.out, " [-W%s]", d.Flag)
		}
	} else {
		fmt.Fprintf(r.out, "%s %s [%s]", r.paint("31", "error:"), d.Message, d.Kind)
	}
	fmt.Fprintln(r.out)
	r.printErrorLine(d.Tok)
}

func (r *Reporter) ReportAll(ds []diag.Diagnostic) {
	for _, d := range ds {
		r.Report(d)
	}
}

// Summary describes the diagnostic counts, e.g. "2 errors and 1 warning generated.".
func Summary(ds []diag.Diagnostic) string {
	errs := diag.CountErrors(ds)
	warns := len(ds) - errs
	plural := func(n int, what string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s", what)
		}
		return fmt.Sprintf("%d %ss", n, what)
	}
	switch {
	case errs > 0 && warns > 0:
		return plural(errs, "error") + " and " + plural(warns, "warning") + " generated."
	case errs > 0:
		return plural(errs, "error") + " generated."
	case warns > 0:
		return plural(warns, "warning") + " generated."
	}
	return ""
}
