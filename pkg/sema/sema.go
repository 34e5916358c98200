// Package sema checks declarations, scoping, typing, array usage and loop
// context of a parsed program. It reports every problem it finds and keeps
// going, so one run lists all of them.
package sema

import (
	"errors"
	"fmt"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/diag"
	"github.com/xplshn/mcc/pkg/symtab"
	"github.com/xplshn/mcc/pkg/token"
	"github.com/xplshn/mcc/pkg/types"
)

// Result is the output of one analysis. Types maps every expression node
// to its type; Symbols maps identifiers and declarations to the symbol
// they refer to.
type Result struct {
	Diagnostics []diag.Diagnostic
	Types       map[*ast.Node]*types.Type
	Symbols     map[*ast.Node]*symtab.Symbol
}

// HasErrors reports whether any error severity diagnostic was produced.
func (r Result) HasErrors() bool { return diag.CountErrors(r.Diagnostics) > 0 }

type Analyzer struct {
	cfg   *config.Config
	rules types.Rules

	syms       *symtab.Table
	loops      loopStack
	diags      diag.List
	types      map[*ast.Node]*types.Type
	symbols    map[*ast.Node]*symtab.Symbol
	funcs      map[string]token.Token
	undeclared map[string]bool
	returnType *types.Type
}

func New(cfg *config.Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

func (a *Analyzer) reset() {
	a.rules = a.cfg.Rules()
	a.syms = symtab.New()
	a.loops = loopStack{}
	a.diags = diag.List{}
	a.types = make(map[*ast.Node]*types.Type)
	a.symbols = make(map[*ast.Node]*symtab.Symbol)
	a.funcs = make(map[string]token.Token)
	a.undeclared = nil
	a.returnType = nil
}

// Analyze checks the program rooted at root. The tree is not modified and
// every call starts from a clean state.
func (a *Analyzer) Analyze(root *ast.Node) Result {
	a.reset()
	a.syms.EnterScope()
	a.checkNode(root)
	a.syms.ExitScope()
	if a.syms.Depth() != 0 || a.loops.inLoop() {
		panic("internal error: unbalanced scope or loop stack after analysis")
	}
	return Result{Diagnostics: a.diags.Items(), Types: a.types, Symbols: a.symbols}
}

func (a *Analyzer) warn(wt config.Warning, kind diag.Kind, tok token.Token, format string, args ...interface{}) {
	if a.cfg.IsWarningEnabled(wt) {
		a.diags.Warnf(kind, a.cfg.WarningName(wt), tok, format, args...)
	}
}

// report turns an error from the type rules into a diagnostic.
func (a *Analyzer) report(tok token.Token, err error) {
	kind := diag.TypeMismatch
	switch {
	case errors.Is(err, types.ErrNotAnArray):
		kind = diag.NotAnArray
	case errors.Is(err, types.ErrRankMismatch):
		kind = diag.ArrayRankMismatch
	}
	a.diags.Errorf(kind, tok, "%v", err)
}

func (a *Analyzer) checkNode(node *ast.Node) {
	if node == nil {
		return
	}
	switch d := node.Data.(type) {
	case ast.BlockNode:
		if !d.IsSynthetic {
			a.syms.EnterScope()
		}
		for _, stmt := range d.Stmts {
			a.checkNode(stmt)
		}
		if !d.IsSynthetic {
			a.syms.ExitScope()
		}
	case ast.FuncDeclNode:
		a.checkFuncDecl(node, d)
	case ast.VarDeclNode:
		a.checkVarDecl(node, d)
	case ast.IfNode:
		a.checkExprAsCondition(d.Cond)
		a.checkScoped(d.ThenBody)
		a.checkScoped(d.ElseBody)
	case ast.WhileNode:
		a.checkExprAsCondition(d.Cond)
		a.checkLoopBody(node, d.Body)
	case ast.DoWhileNode:
		a.checkLoopBody(node, d.Body)
		a.checkExprAsCondition(d.Cond)
	case ast.ForNode:
		a.syms.EnterScope()
		if d.Init != nil {
			if d.Init.Type == ast.Block {
				a.checkNode(d.Init)
			} else {
				a.checkExpr(d.Init)
			}
		}
		if d.Cond != nil {
			a.checkExprAsCondition(d.Cond)
		}
		if d.Post != nil {
			a.checkExpr(d.Post)
		}
		a.checkLoopBody(node, d.Body)
		a.syms.ExitScope()
	case ast.ReturnNode:
		a.checkReturn(node, d)
	case ast.BreakNode:
		if !a.loops.inLoop() {
			a.diags.Errorf(diag.BreakContinueOutsideLoop, node.Tok, "'break' statement not within a loop")
		}
	case ast.ContinueNode:
		if !a.loops.inLoop() {
			a.diags.Errorf(diag.BreakContinueOutsideLoop, node.Tok, "'continue' statement not within a loop")
		}
	case ast.NumberNode, ast.FloatNumberNode, ast.IdentNode, ast.AssignNode, ast.BinaryOpNode,
		ast.UnaryOpNode, ast.SubscriptNode, ast.TypeCastNode:
		a.checkExpr(node)
	default:
		panic(fmt.Sprintf("internal error: unhandled node data %T", d))
	}
}

// checkScoped checks a branch or loop body in a scope of its own. A braced
// block already opens one.
func (a *Analyzer) checkScoped(node *ast.Node) {
	if node == nil {
		return
	}
	if d, ok := node.Data.(ast.BlockNode); ok && !d.IsSynthetic {
		a.checkNode(node)
		return
	}
	a.syms.EnterScope()
	a.checkNode(node)
	a.syms.ExitScope()
}

func (a *Analyzer) checkLoopBody(loop, body *ast.Node) {
	a.loops.enterLoop(loop.Tok)
	a.checkScoped(body)
	a.loops.exitLoop()
}

func (a *Analyzer) checkFuncDecl(node *ast.Node, d ast.FuncDeclNode) {
	if prev, ok := a.funcs[d.Name]; ok {
		a.diags.Errorf(diag.Redeclaration, node.Tok, "redefinition of function '%s' (previously defined at %d:%d)", d.Name, prev.Line, prev.Column)
	} else {
		a.funcs[d.Name] = node.Tok
	}
	a.returnType = d.ReturnType
	a.undeclared = make(map[string]bool)
	a.checkNode(d.Body)
	a.returnType, a.undeclared = nil, nil
}

func (a *Analyzer) checkVarDecl(node *ast.Node, d ast.VarDeclNode) {
	if outer, ok := a.syms.LookupOuter(d.Name); ok {
		a.warn(config.WarnShadow, diag.Shadowing, node.Tok, "declaration of '%s' shadows a previous declaration at %d:%d", d.Name, outer.Tok.Line, outer.Tok.Column)
	}
	sym, err := a.syms.Declare(d.Name, d.Type, node.Tok)
	if err != nil {
		var redecl *symtab.RedeclaredError
		if errors.As(err, &redecl) {
			a.diags.Errorf(diag.Redeclaration, node.Tok, "%v", redecl)
		}
	} else {
		a.symbols[node] = sym
	}

	if d.Init != nil {
		initType := a.checkExpr(d.Init)
		a.checkAssignable(d.Init.Tok, d.Type, initType)
	}
}

func (a *Analyzer) checkReturn(node *ast.Node, d ast.ReturnNode) {
	if d.Expr == nil {
		return
	}
	exprType := a.checkExpr(d.Expr)
	if a.returnType != nil {
		a.checkAssignable(d.Expr.Tok, a.returnType, exprType)
	}
}

// checkAssignable validates the implicit conversion of a value of type
// from into a location of type to.
func (a *Analyzer) checkAssignable(tok token.Token, to, from *types.Type) {
	narrowing, err := a.rules.ImplicitCast(to, from)
	if err != nil {
		a.report(tok, err)
		return
	}
	if narrowing {
		a.warn(config.WarnNarrowing, diag.NarrowingConversion, tok, "implicit conversion from '%s' to '%s' may lose range or precision", from, to)
	}
}

func (a *Analyzer) checkExprAsCondition(node *ast.Node) {
	typ := a.checkExpr(node)
	if !types.BooleanCompatible(typ, a.cfg.IsFeatureEnabled(config.FeatFloatCond)) {
		a.diags.Errorf(diag.TypeMismatch, node.Tok, "type mismatch: expression of type '%s' used as a condition", typ)
	}
}
