// Package diag defines the diagnostics reported by every stage of the
// pipeline and the list that collects them.
package diag

import (
	"fmt"
	"sort"

	"github.com/xplshn/mcc/pkg/token"
)

type Kind int

const (
	Redeclaration Kind = iota
	Undeclared
	TypeMismatch
	NotAnArray
	ArrayRankMismatch
	BreakContinueOutsideLoop
	Lexical
	Syntax
	NarrowingConversion
	ConstIndexOutOfRange
	Shadowing
	UnknownFlag
	KindCount
)

type kindInfo struct {
	Name string
	Code string
}

var kinds = [KindCount]kindInfo{
	Redeclaration:            {"redeclaration", "S0001"},
	Undeclared:               {"undeclared", "S0002"},
	TypeMismatch:             {"type-mismatch", "S0003"},
	NotAnArray:               {"not-an-array", "S0004"},
	ArrayRankMismatch:        {"array-rank-mismatch", "S0005"},
	BreakContinueOutsideLoop: {"break-continue-outside-loop", "S0006"},
	Lexical:                  {"lexical", "L0001"},
	Syntax:                   {"syntax", "P0001"},
	NarrowingConversion:      {"narrowing", "W0001"},
	ConstIndexOutOfRange:     {"const-index", "W0002"},
	Shadowing:                {"shadow", "W0003"},
	UnknownFlag:              {"unknown-flag", "W0004"},
}

func (k Kind) String() string {
	if k >= 0 && k < KindCount {
		return kinds[k].Name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Code is a stable identifier for the kind, used in machine readable output.
func (k Kind) Code() string {
	if k >= 0 && k < KindCount {
		return kinds[k].Code
	}
	return "X0000"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(text []byte) error {
	for i, info := range kinds {
		if info.Name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown diagnostic kind '%s'", text)
}

type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "error":
		*s = Error
	case "warning":
		*s = Warning
	default:
		return fmt.Errorf("unknown severity '%s'", text)
	}
	return nil
}

// Diagnostic is a single problem found in the source. Tok locates it.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Tok      token.Token
	Message  string
	// Flag is the -W name that enabled a warning, empty for errors.
	Flag string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Tok.Line, d.Tok.Column, d.Severity, d.Message)
}

// Record is the serializable form of a Diagnostic.
type Record struct {
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Kind     Kind     `json:"kind"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Flag     string   `json:"flag,omitempty"`
}

func (d Diagnostic) Record(file string) Record {
	return Record{
		File: file, Line: d.Tok.Line, Column: d.Tok.Column,
		Kind: d.Kind, Code: d.Kind.Code(), Severity: d.Severity,
		Message: d.Message, Flag: d.Flag,
	}
}

// List collects diagnostics in the order they are reported.
type List struct {
	items  []Diagnostic
	errors int
}

func (l *List) Add(d Diagnostic) {
	l.items = append(l.items, d)
	if d.Severity == Error {
		l.errors++
	}
}

func (l *List) Errorf(kind Kind, tok token.Token, format string, args ...interface{}) {
	l.Add(Diagnostic{Kind: kind, Severity: Error, Tok: tok, Message: fmt.Sprintf(format, args...)})
}

func (l *List) Warnf(kind Kind, flag string, tok token.Token, format string, args ...interface{}) {
	l.Add(Diagnostic{Kind: kind, Severity: Warning, Tok: tok, Message: fmt.Sprintf(format, args...), Flag: flag})
}

func (l *List) Items() []Diagnostic { return l.items }
func (l *List) Len() int            { return len(l.items) }
func (l *List) HasErrors() bool     { return l.errors > 0 }
func (l *List) ErrorCount() int     { return l.errors }

// Merge appends the diagnostics of every list in order.
func Merge(lists ...[]Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// SortByPosition orders diagnostics by file, line and column, keeping the
// report order of diagnostics at the same position.
func SortByPosition(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i].Tok, ds[j].Tok
		if a.FileIndex != b.FileIndex {
			return a.FileIndex < b.FileIndex
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// CountErrors counts the error severity diagnostics in ds.
func CountErrors(ds []Diagnostic) int {
	n := 0
	for _, d := range ds {
		if d.Severity == Error {
			n++
		}
	}
	return n
}
