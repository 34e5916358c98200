// Package codegen lowers an analyzed program to QBE IL.
package codegen

import (
	"errors"
	"fmt"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/ir"
	"github.com/xplshn/mcc/pkg/sema"
	"github.com/xplshn/mcc/pkg/symtab"
	"github.com/xplshn/mcc/pkg/types"
)

var ErrHasErrors = errors.New("cannot generate code for a program with errors")

type Context struct {
	cfg   *config.Config
	res   sema.Result
	rules types.Rules

	prog          *ir.Program
	tempCount     int
	labelCount    int
	currentFunc   *ir.Func
	currentBlock  *ir.BasicBlock
	returnType    *types.Type
	breakLabel    *ir.Label
	continueLabel *ir.Label
	slots         map[*symtab.Symbol]ir.Value
}

// NewContext prepares lowering of the tree that produced res.
func NewContext(cfg *config.Config, res sema.Result) *Context {
	return &Context{
		cfg:   cfg,
		res:   res,
		rules: cfg.Rules(),
		prog:  &ir.Program{WordSize: cfg.WordSize},
		slots: make(map[*symtab.Symbol]ir.Value),
	}
}

func (ctx *Context) newTemp() *ir.Temporary {
	t := &ir.Temporary{ID: ctx.tempCount}
	ctx.tempCount++
	return t
}

func (ctx *Context) newLabel() *ir.Label {
	l := &ir.Label{Name: fmt.Sprintf("L%d", ctx.labelCount)}
	ctx.labelCount++
	return l
}

func (ctx *Context) startBlock(label *ir.Label) {
	block := &ir.BasicBlock{Label: label}
	ctx.currentFunc.Blocks = append(ctx.currentFunc.Blocks, block)
	ctx.currentBlock = block
}

func (ctx *Context) addInstr(instr *ir.Instruction) {
	if ctx.currentBlock == nil {
		ctx.startBlock(ctx.newLabel())
	}
	ctx.currentBlock.Instructions = append(ctx.currentBlock.Instructions, instr)
}

func (ctx *Context) jump(label *ir.Label) {
	ctx.addInstr(&ir.Instruction{Op: ir.OpJmp, Args: []ir.Value{label}})
	ctx.currentBlock = nil
}

// typeOf returns the type sema recorded for an expression.
func (ctx *Context) typeOf(node *ast.Node) *types.Type {
	if t, ok := ctx.res.Types[node]; ok && !t.IsInvalid() {
		return t
	}
	panic(fmt.Sprintf("internal error: no type recorded for %s at %d:%d", node.Type, node.Tok.Line, node.Tok.Column))
}

func (ctx *Context) slotOf(node *ast.Node) ir.Value {
	sym, ok := ctx.res.Symbols[node]
	if !ok {
		panic(fmt.Sprintf("internal error: no symbol recorded for %s at %d:%d", node.Type, node.Tok.Line, node.Tok.Column))
	}
	slot, ok := ctx.slots[sym]
	if !ok {
		panic(fmt.Sprintf("internal error: no stack slot for '%s'", sym.Name))
	}
	return slot
}

// GenerateIR lowers root. It refuses a program whose analysis reported
// errors, since its types are incomplete.
func (ctx *Context) GenerateIR(root *ast.Node) (*ir.Program, error) {
	if ctx.res.HasErrors() {
		return nil, ErrHasErrors
	}
	if root == nil {
		return ctx.prog, nil
	}
	var funcs []*ast.Node
	ast.Walk(root, func(n *ast.Node) bool {
		if n.Type == ast.FuncDecl {
			funcs = append(funcs, n)
			return false
		}
		return true
	})
	for _, fn := range funcs {
		ctx.codegenFuncDecl(fn)
	}
	return ctx.prog, nil
}

func (ctx *Context) codegenFuncDecl(node *ast.Node) {
	d := node.Data.(ast.FuncDeclNode)
	fn := &ir.Func{Name: d.Name, ReturnType: ir.GetType(d.ReturnType), Node: node}
	ctx.prog.Funcs = append(ctx.prog.Funcs, fn)

	prevFunc, prevRet := ctx.currentFunc, ctx.returnType
	ctx.currentFunc, ctx.returnType = fn, d.ReturnType
	defer func() { ctx.currentFunc, ctx.returnType, ctx.currentBlock = prevFunc, prevRet, nil }()

	ctx.startBlock(&ir.Label{Name: "start"})
	ctx.allocLocals(d.Body)

	if !ctx.codegenStmt(d.Body) {
		ctx.addInstr(&ir.Instruction{Op: ir.OpRet, Args: []ir.Value{ctx.zero(d.ReturnType)}})
		ctx.currentBlock = nil
	}
}

// allocLocals reserves a stack slot for every variable declared in body,
// so all allocations sit in the entry block.
func (ctx *Context) allocLocals(body *ast.Node) {
	ast.Walk(body, func(n *ast.Node) bool {
		d, ok := n.Data.(ast.VarDeclNode)
		if !ok {
			return true
		}
		sym, ok := ctx.res.Symbols[n]
		if !ok {
			return true
		}
		align := types.Width(d.Type.Scalar())
		slot := ctx.newTemp()
		slot.Name = d.Name
		ctx.addInstr(&ir.Instruction{
			Op:     ir.OpAlloc,
			Typ:    ir.TypeL,
			Result: slot,
			Args:   []ir.Value{&ir.Const{Value: int64(types.Width(d.Type))}},
			Align:  align,
		})
		ctx.slots[sym] = slot
		return true
	})
}

func (ctx *Context) zero(t *types.Type) ir.Value {
	if t.IsFloating() {
		return &ir.FloatConst{Value: 0, Typ: ir.GetType(t)}
	}
	return &ir.Const{Value: 0}
}

func (ctx *Context) codegenStmt(node *ast.Node) (terminates bool) {
	if node == nil {
		return false
	}
	switch d := node.Data.(type) {
	case ast.BlockNode:
		// statements after a jump are lowered into a fresh, unreachable block
		var blockTerminates bool
		for _, stmt := range d.Stmts {
			blockTerminates = ctx.codegenStmt(stmt)
		}
		return blockTerminates
	case ast.FuncDeclNode:
		ctx.codegenFuncDecl(node)
		return false
	case ast.VarDeclNode:
		ctx.codegenVarDecl(node, d)
		return false
	case ast.ReturnNode:
		return ctx.codegenReturn(d)
	case ast.IfNode:
		return ctx.codegenIf(d)
	case ast.WhileNode:
		return ctx.codegenWhile(d)
	case ast.DoWhileNode:
		return ctx.codegenDoWhile(d)
	case ast.ForNode:
		return ctx.codegenFor(d)
	case ast.BreakNode:
		ctx.jump(ctx.breakLabel)
		return true
	case ast.ContinueNode:
		ctx.jump(ctx.continueLabel)
		return true
	default:
		ctx.codegenExpr(node)
		return false
	}
}

func (ctx *Context) codegenVarDecl(node *ast.Node, d ast.VarDeclNode) {
	if d.Init == nil {
		return
	}
	val := ctx.convert(ctx.codegenExpr(d.Init), ctx.typeOf(d.Init), d.Type)
	ctx.genStore(ctx.slotOf(node), val, d.Type)
}

func (ctx *Context) codegenReturn(d ast.ReturnNode) bool {
	retVal := ctx.zero(ctx.returnType)
	if d.Expr != nil {
		retVal = ctx.convert(ctx.codegenExpr(d.Expr), ctx.typeOf(d.Expr), ctx.returnType)
	}
	ctx.addInstr(&ir.Instruction{Op: ir.OpRet, Args: []ir.Value{retVal}})
	ctx.currentBlock = nil
	return true
}

func (ctx *Context) codegenIf(d ast.IfNode) bool {
	thenL, endL := ctx.newLabel(), ctx.newLabel()
	elseL := endL
	if d.ElseBody != nil {
		elseL = ctx.newLabel()
	}

	ctx.codegenLogicalCond(d.Cond, thenL, elseL)

	ctx.startBlock(thenL)
	thenTerminates := ctx.codegenStmt(d.ThenBody)
	if !thenTerminates {
		ctx.jump(endL)
	}

	var elseTerminates bool
	if d.ElseBody != nil {
		ctx.startBlock(elseL)
		elseTerminates = ctx.codegenStmt(d.ElseBody)
		if !elseTerminates {
			ctx.jump(endL)
		}
	}

	if d.ElseBody == nil || !thenTerminates || !elseTerminates {
		ctx.startBlock(endL)
		return false
	}
	return true
}

// withLoop lowers a loop body with break and continue bound to the given
// labels.
func (ctx *Context) withLoop(breakL, continueL *ir.Label, body func()) {
	oldBreak, oldContinue := ctx.breakLabel, ctx.continueLabel
	ctx.breakLabel, ctx.continueLabel = breakL, continueL
	defer func() { ctx.breakLabel, ctx.continueLabel = oldBreak, oldContinue }()
	body()
}

func (ctx *Context) codegenWhile(d ast.WhileNode) bool {
	startL, bodyL, endL := ctx.newLabel(), ctx.newLabel(), ctx.newLabel()

	ctx.jump(startL)
	ctx.startBlock(startL)
	ctx.codegenLogicalCond(d.Cond, bodyL, endL)

	ctx.startBlock(bodyL)
	ctx.withLoop(endL, startL, func() {
		if !ctx.codegenStmt(d.Body) {
			ctx.jump(startL)
		}
	})

	ctx.startBlock(endL)
	return false
}

func (ctx *Context) codegenDoWhile(d ast.DoWhileNode) bool {
	bodyL, condL, endL := ctx.newLabel(), ctx.newLabel(), ctx.newLabel()

	ctx.jump(bodyL)
	ctx.startBlock(bodyL)
	ctx.withLoop(endL, condL, func() {
		if !ctx.codegenStmt(d.Body) {
			ctx.jump(condL)
		}
	})

	ctx.startBlock(condL)
	ctx.codegenLogicalCond(d.Cond, bodyL, endL)

	ctx.startBlock(endL)
	return false
}

func (ctx *Context) codegenFor(d ast.ForNode) bool {
	condL, bodyL, postL, endL := ctx.newLabel(), ctx.newLabel(), ctx.newLabel(), ctx.newLabel()

	if d.Init != nil {
		ctx.codegenStmt(d.Init)
	}
	ctx.jump(condL)
	ctx.startBlock(condL)
	if d.Cond != nil {
		ctx.codegenLogicalCond(d.Cond, bodyL, endL)
	} else {
		ctx.jump(bodyL)
	}

	ctx.startBlock(bodyL)
	ctx.withLoop(endL, postL, func() {
		if !ctx.codegenStmt(d.Body) {
			ctx.jump(postL)
		}
	})

	ctx.startBlock(postL)
	if d.Post != nil {
		ctx.codegenExpr(d.Post)
	}
	ctx.jump(condL)

	ctx.startBlock(endL)
	return false
}
