// Package fixture checks a source file's diagnostics against the
// "// [ERROR] note" annotations written in it.
//
// An annotation after code on the same line expects an error on that
// line. An annotation alone on its line expects at least one error in the
// block of non-blank lines that follows it. Every error reported for the
// file must be covered by some annotation.
package fixture

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xplshn/mcc/pkg/diag"
)

const Marker = "// [ERROR]"

type Annotation struct {
	Line    int // line of the comment
	Note    string
	Inline  bool
	First   int // first line an error may be reported on
	Last    int // last such line
	claimed bool
}

func (a Annotation) covers(line int) bool { return line >= a.First && line <= a.Last }

// Parse finds the annotations in src. Lines are numbered from 1.
func Parse(src string) []Annotation {
	lines := strings.Split(src, "\n")
	var out []Annotation
	for i, text := range lines {
		idx := strings.Index(text, Marker)
		if idx < 0 {
			continue
		}
		a := Annotation{
			Line: i + 1,
			Note: strings.TrimSpace(text[idx+len(Marker):]),
		}
		if strings.TrimSpace(text[:idx]) != "" {
			a.Inline = true
			a.First, a.Last = a.Line, a.Line
		} else {
			a.First, a.Last = a.Line+1, a.Line
			for j := i + 1; j < len(lines); j++ {
				next := strings.TrimSpace(lines[j])
				if next == "" || strings.Contains(next, Marker) {
					break
				}
				a.Last = j + 1
			}
		}
		out = append(out, a)
	}
	return out
}

type MismatchKind int

const (
	// Missing is an annotation no error was reported for.
	Missing MismatchKind = iota
	// Unexpected is an error no annotation covers.
	Unexpected
)

type Mismatch struct {
	Kind       MismatchKind
	Line       int
	Annotation *Annotation
	Diagnostic *diag.Diagnostic
}

func (m Mismatch) String() string {
	if m.Kind == Missing {
		return fmt.Sprintf("line %d: expected an error (%s) but none was reported", m.Line, m.Annotation.Note)
	}
	return fmt.Sprintf("line %d: unexpected error: %s", m.Line, m.Diagnostic.Message)
}

// Check matches the error diagnostics of the file at fileIndex against
// the annotations of src. Warnings are ignored.
func Check(src string, fileIndex int, ds []diag.Diagnostic) []Mismatch {
	anns := Parse(src)
	var out []Mismatch

	for i := range ds {
		d := &ds[i]
		if d.Severity != diag.Error || d.Tok.FileIndex != fileIndex {
			continue
		}
		claimed := false
		for j := range anns {
			if anns[j].covers(d.Tok.Line) {
				anns[j].claimed = true
				claimed = true
			}
		}
		if !claimed {
			out = append(out, Mismatch{Kind: Unexpected, Line: d.Tok.Line, Diagnostic: d})
		}
	}
	for j := range anns {
		if !anns[j].claimed {
			out = append(out, Mismatch{Kind: Missing, Line: anns[j].Line, Annotation: &anns[j]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}
