package codegen

import (
	"fmt"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/ir"
	"github.com/xplshn/mcc/pkg/token"
	"github.com/xplshn/mcc/pkg/types"
)

func (ctx *Context) codegenExpr(node *ast.Node) ir.Value {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		return &ir.Const{Value: d.Value}
	case ast.FloatNumberNode:
		return &ir.FloatConst{Value: d.Value, Typ: ir.GetType(ctx.typeOf(node))}
	case ast.IdentNode:
		typ := ctx.typeOf(node)
		if typ.IsArray() {
			return ctx.slotOf(node)
		}
		return ctx.genLoad(ctx.slotOf(node), typ)
	case ast.AssignNode:
		return ctx.codegenAssign(d)
	case ast.BinaryOpNode:
		return ctx.codegenBinaryOp(node, d)
	case ast.UnaryOpNode:
		return ctx.codegenUnaryOp(node, d)
	case ast.SubscriptNode:
		addr := ctx.codegenSubscriptAddr(d)
		typ := ctx.typeOf(node)
		if typ.IsArray() {
			return addr
		}
		return ctx.genLoad(addr, typ)
	case ast.TypeCastNode:
		return ctx.convert(ctx.codegenExpr(d.Expr), ctx.typeOf(d.Expr), d.TargetType)
	}
	panic(fmt.Sprintf("internal error: unhandled expression %s in codegen", node.Type))
}

func (ctx *Context) genLoad(addr ir.Value, typ *types.Type) ir.Value {
	res := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{Op: ir.OpLoad, Typ: ir.GetType(typ), Result: res, Args: []ir.Value{addr}})
	return res
}

func (ctx *Context) genStore(addr, value ir.Value, typ *types.Type) {
	ctx.addInstr(&ir.Instruction{Op: ir.OpStore, Typ: ir.GetType(typ), Args: []ir.Value{value, addr}})
}

// genOp emits a two operand instruction, folding integer constants.
func (ctx *Context) genOp(op ir.Op, typ ir.Type, a, b ir.Value) ir.Value {
	ca, aok := a.(*ir.Const)
	cb, bok := b.(*ir.Const)
	if aok && bok {
		switch op {
		case ir.OpAdd:
			return &ir.Const{Value: ca.Value + cb.Value}
		case ir.OpMul:
			return &ir.Const{Value: ca.Value * cb.Value}
		}
	}
	res := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{Op: op, Typ: typ, Result: res, Args: []ir.Value{a, b}})
	return res
}

func (ctx *Context) lvalueAddr(node *ast.Node) ir.Value {
	switch d := node.Data.(type) {
	case ast.IdentNode:
		return ctx.slotOf(node)
	case ast.SubscriptNode:
		return ctx.codegenSubscriptAddr(d)
	}
	panic(fmt.Sprintf("internal error: %s is not an lvalue", node.Type))
}

func (ctx *Context) codegenAssign(d ast.AssignNode) ir.Value {
	target := ctx.typeOf(d.Lhs)
	addr := ctx.lvalueAddr(d.Lhs)
	rhs := ctx.codegenExpr(d.Rhs)
	rhsType := ctx.typeOf(d.Rhs)

	if op, isCompound := d.Op.CompoundOp(); isCompound {
		resType, err := ctx.rules.BinaryResult(op, target, rhsType)
		if err != nil {
			panic(fmt.Sprintf("internal error: %v", err))
		}
		cur := ctx.convert(ctx.genLoad(addr, target), target, resType)
		rhs = ctx.genOp(binaryIROp(op), ir.GetType(resType), cur, ctx.convert(rhs, rhsType, resType))
		rhsType = resType
	}

	val := ctx.convert(rhs, rhsType, target)
	ctx.genStore(addr, val, target)
	return val
}

func binaryIROp(op token.Type) ir.Op {
	switch op {
	case token.Plus:
		return ir.OpAdd
	case token.Minus:
		return ir.OpSub
	case token.Star:
		return ir.OpMul
	case token.Slash:
		return ir.OpDiv
	case token.Rem:
		return ir.OpRem
	case token.EqEq:
		return ir.OpCEq
	case token.Neq:
		return ir.OpCNeq
	case token.Lt:
		return ir.OpCLt
	case token.Gt:
		return ir.OpCGt
	case token.Lte:
		return ir.OpCLe
	case token.Gte:
		return ir.OpCGe
	}
	panic(fmt.Sprintf("internal error: no IR operation for '%s'", op))
}

func (ctx *Context) codegenBinaryOp(node *ast.Node, d ast.BinaryOpNode) ir.Value {
	if d.Op == token.AndAnd || d.Op == token.OrOr {
		return ctx.codegenLogicalValue(node)
	}

	leftType, rightType := ctx.typeOf(d.Left), ctx.typeOf(d.Right)
	left := ctx.codegenExpr(d.Left)
	right := ctx.codegenExpr(d.Right)

	operandType := ctx.rules.Promote(leftType, rightType)
	left = ctx.convert(left, leftType, operandType)
	right = ctx.convert(right, rightType, operandType)

	irOp := binaryIROp(d.Op)
	if irOp >= ir.OpCEq && irOp <= ir.OpCGe {
		res := ctx.newTemp()
		ctx.addInstr(&ir.Instruction{
			Op: irOp, Typ: ir.TypeW, OperandType: ir.GetType(operandType),
			Result: res, Args: []ir.Value{left, right},
		})
		return res
	}
	return ctx.genOp(irOp, ir.GetType(ctx.typeOf(node)), left, right)
}

func (ctx *Context) codegenUnaryOp(node *ast.Node, d ast.UnaryOpNode) ir.Value {
	if d.Op == token.Not {
		return ctx.codegenLogicalValue(node)
	}
	val := ctx.codegenExpr(d.Expr)
	if d.Op == token.Plus {
		return val
	}
	switch c := val.(type) {
	case *ir.Const:
		return &ir.Const{Value: -c.Value}
	case *ir.FloatConst:
		return &ir.FloatConst{Value: -c.Value, Typ: c.Typ}
	}
	res := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{Op: ir.OpNeg, Typ: ir.GetType(ctx.typeOf(node)), Result: res, Args: []ir.Value{val}})
	return res
}

// codegenLogicalValue materializes a short-circuit condition as 0 or 1.
func (ctx *Context) codegenLogicalValue(node *ast.Node) ir.Value {
	res := ctx.newTemp()
	trueL, falseL, endL := ctx.newLabel(), ctx.newLabel(), ctx.newLabel()

	ctx.codegenLogicalCond(node, trueL, falseL)
	ctx.startBlock(trueL)
	ctx.jump(endL)
	ctx.startBlock(falseL)
	ctx.jump(endL)

	ctx.startBlock(endL)
	ctx.addInstr(&ir.Instruction{
		Op: ir.OpPhi, Typ: ir.TypeW, Result: res,
		Args: []ir.Value{trueL, &ir.Const{Value: 1}, falseL, &ir.Const{Value: 0}},
	})
	return res
}

// codegenLogicalCond branches to trueL or falseL on node, evaluating the
// operands of && and || only as far as needed.
func (ctx *Context) codegenLogicalCond(node *ast.Node, trueL, falseL *ir.Label) {
	switch d := node.Data.(type) {
	case ast.BinaryOpNode:
		if d.Op == token.OrOr {
			newFalseL := ctx.newLabel()
			ctx.codegenLogicalCond(d.Left, trueL, newFalseL)
			ctx.startBlock(newFalseL)
			ctx.codegenLogicalCond(d.Right, trueL, falseL)
			return
		}
		if d.Op == token.AndAnd {
			newTrueL := ctx.newLabel()
			ctx.codegenLogicalCond(d.Left, newTrueL, falseL)
			ctx.startBlock(newTrueL)
			ctx.codegenLogicalCond(d.Right, trueL, falseL)
			return
		}
	case ast.UnaryOpNode:
		if d.Op == token.Not {
			ctx.codegenLogicalCond(d.Expr, falseL, trueL)
			return
		}
	}

	typ := ctx.typeOf(node)
	condVal := ctx.codegenExpr(node)
	if typ.Kind != types.Int {
		// jnz tests a word
		res := ctx.newTemp()
		ctx.addInstr(&ir.Instruction{
			Op: ir.OpCNeq, Typ: ir.TypeW, OperandType: ir.GetType(typ),
			Result: res, Args: []ir.Value{condVal, ctx.zero(typ)},
		})
		condVal = res
	}
	ctx.addInstr(&ir.Instruction{Op: ir.OpJnz, Args: []ir.Value{condVal, trueL, falseL}})
	ctx.currentBlock = nil
}

// codegenSubscriptAddr computes the address of an element in row-major
// order: ((i0*d1 + i1)*d2 + i2)... scaled by the element width.
func (ctx *Context) codegenSubscriptAddr(d ast.SubscriptNode) ir.Value {
	arrType := ctx.typeOf(d.Array)
	base := ctx.lvalueAddr(d.Array)

	var offset ir.Value
	for k, index := range d.Indices {
		idx := ctx.convert(ctx.codegenExpr(index), ctx.typeOf(index), types.TypeLong)
		if k == 0 {
			offset = idx
			continue
		}
		scaled := ctx.genOp(ir.OpMul, ir.TypeL, offset, &ir.Const{Value: int64(arrType.Dims[k])})
		offset = ctx.genOp(ir.OpAdd, ir.TypeL, scaled, idx)
	}
	stride := int64(types.Width(arrType.Elem))
	for _, dim := range arrType.Dims[len(d.Indices):] {
		stride *= int64(dim)
	}
	offset = ctx.genOp(ir.OpMul, ir.TypeL, offset, &ir.Const{Value: stride})
	if c, ok := offset.(*ir.Const); ok && c.Value == 0 {
		return base
	}
	return ctx.genOp(ir.OpAdd, ir.TypeL, base, offset)
}

// convert turns v of type from into type to.
func (ctx *Context) convert(v ir.Value, from, to *types.Type) ir.Value {
	if from.Kind == to.Kind || to.IsArray() {
		return v
	}
	switch c := v.(type) {
	case *ir.Const:
		if to.IsFloating() {
			return &ir.FloatConst{Value: float64(c.Value), Typ: ir.GetType(to)}
		}
		if to.Kind == types.Int {
			return &ir.Const{Value: int64(int32(c.Value))}
		}
		return c
	case *ir.FloatConst:
		if to.IsFloating() {
			return &ir.FloatConst{Value: c.Value, Typ: ir.GetType(to)}
		}
		return &ir.Const{Value: int64(c.Value)}
	}

	var op ir.Op
	switch {
	case from.Kind == types.Int && to.Kind == types.Long:
		op = ir.OpExtSW
	case from.Kind == types.Long && to.Kind == types.Int:
		op = ir.OpCopy
	case from.Kind == types.Int && to.IsFloating():
		op = ir.OpSWToF
	case from.Kind == types.Long && to.IsFloating():
		op = ir.OpSLToF
	case from.IsFloating() && to.IsFloating():
		op = ir.OpFToF
	case from.IsFloating() && to.IsInteger():
		op = ir.OpFToSI
	default:
		panic(fmt.Sprintf("internal error: no conversion from '%s' to '%s'", from, to))
	}
	res := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{
		Op: op, Typ: ir.GetType(to), OperandType: ir.GetType(from),
		Result: res, Args: []ir.Value{v},
	})
	return res
}
