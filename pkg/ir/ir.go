package ir

import (
	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/types"
)

type Op int

const (
	OpAlloc Op = iota
	OpLoad
	OpStore
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpNeg
	OpCEq
	OpCNeq
	OpCLt
	OpCGt
	OpCLe
	OpCGe
	OpExtSW
	OpSWToF
	OpSLToF
	OpFToF
	OpFToSI
	OpCopy
	OpJmp
	OpJnz
	OpRet
	OpPhi
)

type Type int

const (
	TypeNone Type = iota
	TypeW         // word (32-bit)
	TypeL         // long (64-bit), also addresses
	TypeS         // single float (32-bit)
	TypeD         // double float (64-bit)
)

type Value interface {
	isValue()
	String() string
}

type Const struct{ Value int64 }
type FloatConst struct {
	Value float64
	Typ   Type
}
type Temporary struct {
	Name string
	ID   int
}
type Label struct{ Name string }

func (c *Const) isValue()      {}
func (f *FloatConst) isValue() {}
func (t *Temporary) isValue()  {}
func (l *Label) isValue()      {}

func (c *Const) String() string      { return "" }
func (f *FloatConst) String() string { return "" }
func (t *Temporary) String() string  { return t.Name }
func (l *Label) String() string      { return l.Name }

type Func struct {
	Name       string
	ReturnType Type
	Blocks     []*BasicBlock
	Node       *ast.Node
}

type BasicBlock struct {
	Label        *Label
	Instructions []*Instruction
}

type Instruction struct {
	Op Op
	// Typ is the result type; for stores, the type of the stored value.
	Typ Type
	// OperandType is the type of the operands when it differs from Typ,
	// as for comparisons and conversions.
	OperandType Type
	Result      Value
	Args        []Value
	Align       int
}

// IsTerminator reports whether the instruction ends its block.
func (i *Instruction) IsTerminator() bool {
	return i.Op == OpJmp || i.Op == OpJnz || i.Op == OpRet
}

type Program struct {
	Funcs    []*Func
	WordSize int
}

// GetType maps a scalar type to its IR type. Arrays are handled by address.
func GetType(t *types.Type) Type {
	switch t.Kind {
	case types.Int:
		return TypeW
	case types.Long, types.Array:
		return TypeL
	case types.Float:
		return TypeS
	case types.Double:
		return TypeD
	}
	return TypeNone
}

func IsFloat(t Type) bool { return t == TypeS || t == TypeD }

func SizeOfType(t Type) int64 {
	switch t {
	case TypeW, TypeS:
		return 4
	case TypeL, TypeD:
		return 8
	}
	return 0
}

func (p *Program) FindFunc(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
