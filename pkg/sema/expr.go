package sema

import (
	"fmt"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/diag"
	"github.com/xplshn/mcc/pkg/types"
)

// checkExpr types node, records the type and returns it. Expressions that
// cannot be typed get types.TypeInvalid, which the rules accept silently.
func (a *Analyzer) checkExpr(node *ast.Node) *types.Type {
	typ := a.exprType(node)
	a.types[node] = typ
	return typ
}

func (a *Analyzer) exprType(node *ast.Node) *types.Type {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		return types.TypeInt
	case ast.FloatNumberNode:
		return types.TypeFloat
	case ast.IdentNode:
		return a.checkIdent(node, d)
	case ast.AssignNode:
		return a.checkAssign(node, d)
	case ast.BinaryOpNode:
		left, right := a.checkExpr(d.Left), a.checkExpr(d.Right)
		typ, err := a.rules.BinaryResult(d.Op, left, right)
		if err != nil {
			a.report(node.Tok, err)
		}
		return typ
	case ast.UnaryOpNode:
		typ, err := a.rules.UnaryResult(d.Op, a.checkExpr(d.Expr))
		if err != nil {
			a.report(node.Tok, err)
		}
		return typ
	case ast.TypeCastNode:
		typ, err := a.rules.ExplicitCast(d.TargetType, a.checkExpr(d.Expr))
		if err != nil {
			a.report(node.Tok, err)
		}
		return typ
	case ast.SubscriptNode:
		return a.checkSubscript(node, d)
	}
	panic(fmt.Sprintf("internal error: %s is not an expression", node.Type))
}

func (a *Analyzer) checkIdent(node *ast.Node, d ast.IdentNode) *types.Type {
	sym, err := a.syms.Lookup(d.Name)
	if err != nil {
		// later uses of the same name in this function stay quiet
		if !a.undeclared[d.Name] {
			a.diags.Errorf(diag.Undeclared, node.Tok, "use of undeclared identifier '%s'", d.Name)
			if a.undeclared != nil {
				a.undeclared[d.Name] = true
			}
		}
		return types.TypeInvalid
	}
	a.symbols[node] = sym
	return sym.Type
}

func (a *Analyzer) checkAssign(node *ast.Node, d ast.AssignNode) *types.Type {
	target := a.checkExpr(d.Lhs)
	value := a.checkExpr(d.Rhs)

	if op, isCompound := d.Op.CompoundOp(); isCompound {
		typ, err := a.rules.BinaryResult(op, target, value)
		if err != nil {
			a.report(node.Tok, err)
			return types.TypeInvalid
		}
		value = typ
	}

	a.checkAssignable(d.Rhs.Tok, target, value)
	if target.IsArray() {
		return types.TypeInvalid
	}
	return target
}

func (a *Analyzer) checkSubscript(node *ast.Node, d ast.SubscriptNode) *types.Type {
	arrayType := a.checkExpr(d.Array)
	for i, index := range d.Indices {
		indexType := a.checkExpr(index)
		if !indexType.IsInvalid() && !indexType.IsInteger() {
			a.diags.Errorf(diag.TypeMismatch, index.Tok, "type mismatch: array subscript has type '%s', expected an integer type", indexType)
		}
		if n, ok := index.Data.(ast.NumberNode); ok && arrayType.IsArray() && i < len(arrayType.Dims) {
			if n.Value < 0 || n.Value >= int64(arrayType.Dims[i]) {
				a.warn(config.WarnConstIndex, diag.ConstIndexOutOfRange, index.Tok,
					"index %d is past the end of dimension %d of '%s'", n.Value, i+1, arrayType)
			}
		}
	}
	typ, err := a.rules.Subscript(arrayType, len(d.Indices))
	if err != nil {
		a.report(node.Tok, err)
	}
	return typ
}
