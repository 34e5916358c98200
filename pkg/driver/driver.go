// Package driver runs the front end over one source file at a time.
package driver

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/codegen"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/diag"
	"github.com/xplshn/mcc/pkg/ir"
	"github.com/xplshn/mcc/pkg/lexer"
	"github.com/xplshn/mcc/pkg/parser"
	"github.com/xplshn/mcc/pkg/sema"
	"github.com/xplshn/mcc/pkg/util"
)

// Unit is one analyzed source file.
type Unit struct {
	Record util.SourceFileRecord
	// Config is the file's own copy, with its directives applied.
	Config *config.Config
	Root   *ast.Node
	Result sema.Result
	// Diagnostics holds the lexer, parser and analyzer output in source order.
	Diagnostics []diag.Diagnostic
}

func (u *Unit) HasErrors() bool { return diag.CountErrors(u.Diagnostics) > 0 }

// ReadFile loads path as the file at fileIndex.
func ReadFile(path string, fileIndex int, base *config.Config, log zerolog.Logger) (*Unit, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read file '%s': %w", path, err)
	}
	return Analyze(util.SourceFileRecord{Name: path, Content: []rune(string(content))}, fileIndex, base, log), nil
}

// Analyze lexes, parses and checks one file. base is not modified.
func Analyze(rec util.SourceFileRecord, fileIndex int, base *config.Config, log zerolog.Logger) *Unit {
	cfg := base.Clone()
	log = log.With().Str("file", rec.Name).Logger()

	log.Debug().Int("runes", len(rec.Content)).Msg("tokenizing")
	l := lexer.NewLexer(rec.Content, fileIndex, cfg)
	tokens := l.Tokenize()

	log.Debug().Int("tokens", len(tokens)).Msg("parsing")
	p := parser.NewParser(tokens, cfg)
	root := p.Parse()

	log.Debug().Msg("analyzing")
	res := sema.New(cfg).Analyze(root)

	ds := diag.Merge(l.Diagnostics(), p.Diagnostics(), res.Diagnostics)
	diag.SortByPosition(ds)
	log.Debug().Int("errors", diag.CountErrors(ds)).Int("diagnostics", len(ds)).Msg("done")

	return &Unit{Record: rec, Config: cfg, Root: root, Result: res, Diagnostics: ds}
}

// Lower turns an error free unit into IR.
func (u *Unit) Lower() (*ir.Program, error) {
	if u.HasErrors() {
		return nil, codegen.ErrHasErrors
	}
	return codegen.NewContext(u.Config, u.Result).GenerateIR(u.Root)
}
