// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"fmt"

	"github.com/xplshn/mcc/pkg/token"
	"github.com/xplshn/mcc/pkg/types"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Number NodeType = iota
	FloatNumber
	Ident
	Assign
	BinaryOp
	UnaryOp
	Subscript
	TypeCast

	// Statements
	FuncDecl
	VarDecl
	If
	While
	DoWhile
	For
	Return
	Block
	Break
	Continue
)

var nodeTypeNames = map[NodeType]string{
	Number: "Number", FloatNumber: "FloatNumber", Ident: "Ident", Assign: "Assign",
	BinaryOp: "BinaryOp", UnaryOp: "UnaryOp", Subscript: "Subscript", TypeCast: "TypeCast",
	FuncDecl: "FuncDecl", VarDecl: "VarDecl", If: "If", While: "While", DoWhile: "DoWhile",
	For: "For", Return: "Return", Block: "Block", Break: "Break", Continue: "Continue",
}

func (t NodeType) String() string {
	if s, ok := nodeTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// Node represents a node in the Abstract Syntax Tree. Tok is the token the
// node was built from and doubles as its source position.
type Node struct {
	Type   NodeType
	Tok    token.Token
	Parent *Node
	Data   NodeData
}

// NodeData is implemented only by the node data structs of this package,
// so a type switch over it can be exhaustive.
type NodeData interface{ nodeData() }

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type FloatNumberNode struct{ Value float64 }
type IdentNode struct{ Name string }
type AssignNode struct{ Op token.Type; Lhs, Rhs *Node }
type BinaryOpNode struct{ Op token.Type; Left, Right *Node }
type UnaryOpNode struct{ Op token.Type; Expr *Node }

// SubscriptNode indexes a named array with one expression per dimension.
type SubscriptNode struct {
	Array   *Node
	Indices []*Node
}
type TypeCastNode struct {
	Expr       *Node
	TargetType *types.Type
}
type FuncDeclNode struct {
	Name       string
	ReturnType *types.Type
	Body       *Node
}
type VarDeclNode struct {
	Name string
	Type *types.Type
	Init *Node
}
type IfNode struct{ Cond, ThenBody, ElseBody *Node }
type WhileNode struct{ Cond, Body *Node }
type DoWhileNode struct{ Body, Cond *Node }

// ForNode has optional Init, Cond and Post. Init is either an expression
// or a synthetic block of declarations.
type ForNode struct{ Init, Cond, Post, Body *Node }
type ReturnNode struct{ Expr *Node }

// BlockNode is a braced block, or a synthetic one (IsSynthetic) produced
// for declaration lists and empty statements, which opens no scope.
type BlockNode struct {
	Stmts       []*Node
	IsSynthetic bool
}
type BreakNode struct{}
type ContinueNode struct{}

func (NumberNode) nodeData()      {}
func (FloatNumberNode) nodeData() {}
func (IdentNode) nodeData()       {}
func (AssignNode) nodeData()      {}
func (BinaryOpNode) nodeData()    {}
func (UnaryOpNode) nodeData()     {}
func (SubscriptNode) nodeData()   {}
func (TypeCastNode) nodeData()    {}
func (FuncDeclNode) nodeData()    {}
func (VarDeclNode) nodeData()     {}
func (IfNode) nodeData()          {}
func (WhileNode) nodeData()       {}
func (DoWhileNode) nodeData()     {}
func (ForNode) nodeData()         {}
func (ReturnNode) nodeData()      {}
func (BlockNode) nodeData()       {}
func (BreakNode) nodeData()       {}
func (ContinueNode) nodeData()    {}

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data NodeData, children ...*Node) *Node {
	node := &Node{Type: nodeType, Tok: tok, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewNumber(tok token.Token, value int64) *Node {
	return newNode(tok, Number, NumberNode{Value: value})
}
func NewFloatNumber(tok token.Token, value float64) *Node {
	return newNode(tok, FloatNumber, FloatNumberNode{Value: value})
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewAssign(tok token.Token, op token.Type, lhs, rhs *Node) *Node {
	return newNode(tok, Assign, AssignNode{Op: op, Lhs: lhs, Rhs: rhs}, lhs, rhs)
}
func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewUnaryOp(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr}, expr)
}
func NewSubscript(tok token.Token, array *Node, indices []*Node) *Node {
	return newNode(tok, Subscript, SubscriptNode{Array: array, Indices: indices}, append([]*Node{array}, indices...)...)
}
func NewTypeCast(tok token.Token, expr *Node, targetType *types.Type) *Node {
	return newNode(tok, TypeCast, TypeCastNode{Expr: expr, TargetType: targetType}, expr)
}
func NewFuncDecl(tok token.Token, name string, returnType *types.Type, body *Node) *Node {
	return newNode(tok, FuncDecl, FuncDeclNode{Name: name, ReturnType: returnType, Body: body}, body)
}
func NewVarDecl(tok token.Token, name string, typ *types.Type, init *Node) *Node {
	return newNode(tok, VarDecl, VarDeclNode{Name: name, Type: typ, Init: init}, init)
}
func NewIf(tok token.Token, cond, thenBody, elseBody *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody}, cond, thenBody, elseBody)
}
func NewWhile(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body}, cond, body)
}
func NewDoWhile(tok token.Token, body, cond *Node) *Node {
	return newNode(tok, DoWhile, DoWhileNode{Body: body, Cond: cond}, body, cond)
}
func NewFor(tok token.Token, init, cond, post, body *Node) *Node {
	return newNode(tok, For, ForNode{Init: init, Cond: cond, Post: post, Body: body}, init, cond, post, body)
}
func NewReturn(tok token.Token, expr *Node) *Node {
	return newNode(tok, Return, ReturnNode{Expr: expr}, expr)
}
func NewBlock(tok token.Token, stmts []*Node, isSynthetic bool) *Node {
	return newNode(tok, Block, BlockNode{Stmts: stmts, IsSynthetic: isSynthetic}, stmts...)
}
func NewBreak(tok token.Token) *Node {
	return newNode(tok, Break, BreakNode{})
}
func NewContinue(tok token.Token) *Node {
	return newNode(tok, Continue, ContinueNode{})
}

// Children returns the direct children of node in source order.
func Children(node *Node) []*Node {
	var out []*Node
	add := func(ns ...*Node) {
		for _, n := range ns {
			if n != nil {
				out = append(out, n)
			}
		}
	}
	switch d := node.Data.(type) {
	case NumberNode, FloatNumberNode, IdentNode, BreakNode, ContinueNode:
	case AssignNode:
		add(d.Lhs, d.Rhs)
	case BinaryOpNode:
		add(d.Left, d.Right)
	case UnaryOpNode:
		add(d.Expr)
	case SubscriptNode:
		add(d.Array)
		add(d.Indices...)
	case TypeCastNode:
		add(d.Expr)
	case FuncDeclNode:
		add(d.Body)
	case VarDeclNode:
		add(d.Init)
	case IfNode:
		add(d.Cond, d.ThenBody, d.ElseBody)
	case WhileNode:
		add(d.Cond, d.Body)
	case DoWhileNode:
		add(d.Body, d.Cond)
	case ForNode:
		add(d.Init, d.Cond, d.Post, d.Body)
	case ReturnNode:
		add(d.Expr)
	case BlockNode:
		add(d.Stmts...)
	default:
		panic(fmt.Sprintf("internal error: unhandled node data %T", d))
	}
	return out
}

// Walk visits node and its descendants depth first. Returning false from
// visit skips the children of that node.
func Walk(node *Node, visit func(n *Node) bool) {
	if node == nil || !visit(node) {
		return
	}
	for _, child := range Children(node) {
		Walk(child, visit)
	}
}
