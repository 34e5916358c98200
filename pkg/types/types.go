// Package types implements the scalar and array types of the language and
// the rules for combining, casting and subscripting them.
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xplshn/mcc/pkg/token"
)

// Kind defines the kind of a Type
type Kind int

const (
	// Invalid marks an expression that already produced a diagnostic.
	// Every rule accepts it silently so that one mistake is reported once.
	Invalid Kind = iota
	Int
	Long
	Float
	Double
	Array
)

// Type is either a scalar or a fixed-size array of scalars.
type Type struct {
	Kind Kind
	Elem *Type // element type of an Array, always a scalar
	Dims []int // extent of each dimension of an Array, outermost first
}

// Pre-defined types
var (
	TypeInvalid = &Type{Kind: Invalid}
	TypeInt     = &Type{Kind: Int}
	TypeLong    = &Type{Kind: Long}
	TypeFloat   = &Type{Kind: Float}
	TypeDouble  = &Type{Kind: Double}
)

var (
	ErrMismatch     = errors.New("type mismatch")
	ErrNotAnArray   = errors.New("not an array")
	ErrRankMismatch = errors.New("array rank mismatch")
)

// NewArray returns an array of elem with the given dimensions. A nil
// dimension list yields elem itself.
func NewArray(elem *Type, dims []int) *Type {
	if len(dims) == 0 {
		return elem
	}
	if elem.Kind == Array {
		panic("internal error: array element type must be a scalar")
	}
	return &Type{Kind: Array, Elem: elem, Dims: append([]int(nil), dims...)}
}

// FromKeyword maps a basic type keyword to its scalar type.
func FromKeyword(tok token.Type) *Type {
	switch tok {
	case token.Int:
		return TypeInt
	case token.Long:
		return TypeLong
	case token.Float:
		return TypeFloat
	case token.Double:
		return TypeDouble
	}
	panic(fmt.Sprintf("internal error: %v is not a basic type keyword", tok))
}

func (t *Type) String() string {
	switch t.Kind {
	case Invalid:
		return "<invalid>"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Array:
		var sb strings.Builder
		sb.WriteString(t.Elem.String())
		for _, d := range t.Dims {
			fmt.Fprintf(&sb, "[%d]", d)
		}
		return sb.String()
	}
	return "<unknown>"
}

func (t *Type) IsInvalid() bool  { return t == nil || t.Kind == Invalid }
func (t *Type) IsArray() bool    { return t != nil && t.Kind == Array }
func (t *Type) IsScalar() bool   { return t != nil && t.Kind >= Int && t.Kind <= Double }
func (t *Type) IsInteger() bool  { return t != nil && (t.Kind == Int || t.Kind == Long) }
func (t *Type) IsFloating() bool { return t != nil && (t.Kind == Float || t.Kind == Double) }

// Scalar returns the element type of an array, or t itself.
func (t *Type) Scalar() *Type {
	if t.IsArray() {
		return t.Elem
	}
	return t
}

// Equal reports whether a and b denote the same type.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	if a.Kind != Array {
		return true
	}
	if len(a.Dims) != len(b.Dims) || !Equal(a.Elem, b.Elem) {
		return false
	}
	for i := range a.Dims {
		if a.Dims[i] != b.Dims[i] {
			return false
		}
	}
	return true
}

// Rank orders the scalar types: int < long < float < double.
func Rank(t *Type) int {
	switch t.Kind {
	case Int:
		return 1
	case Long:
		return 2
	case Float:
		return 3
	case Double:
		return 4
	}
	return 0
}

// Width is the storage size in bytes.
func Width(t *Type) int {
	switch t.Kind {
	case Int, Float:
		return 4
	case Long, Double:
		return 8
	case Array:
		n := Width(t.Elem)
		for _, d := range t.Dims {
			n *= d
		}
		return n
	}
	return 0
}

// Rules holds the switchable parts of the typing rules.
type Rules struct {
	// StrictRank requires a subscript expression to name every dimension.
	// When false a partial subscript yields the remaining sub-array.
	StrictRank bool
	// WidenLongFloat promotes a mixed long/float operation to double
	// instead of float.
	WidenLongFloat bool
}

func DefaultRules() Rules { return Rules{StrictRank: true} }

func isArithmetic(op token.Type) bool {
	switch op {
	case token.Plus, token.Minus, token.Star, token.Slash, token.Rem:
		return true
	}
	return false
}

func isRelational(op token.Type) bool {
	switch op {
	case token.Lt, token.Gt, token.Lte, token.Gte, token.EqEq, token.Neq, token.AndAnd, token.OrOr:
		return true
	}
	return false
}

// Promote returns the common type of two scalars.
func (r Rules) Promote(a, b *Type) *Type {
	if r.WidenLongFloat && ((a.Kind == Long && b.Kind == Float) || (a.Kind == Float && b.Kind == Long)) {
		return TypeDouble
	}
	if Rank(b) > Rank(a) {
		return b
	}
	return a
}

// BinaryResult types the application of op to operands of type left and right.
func (r Rules) BinaryResult(op token.Type, left, right *Type) (*Type, error) {
	if !isArithmetic(op) && !isRelational(op) {
		panic(fmt.Sprintf("internal error: %v is not a binary operator", op))
	}
	if left.IsInvalid() || right.IsInvalid() {
		return TypeInvalid, nil
	}
	if left.IsArray() || right.IsArray() {
		culprit := left
		if !left.IsArray() {
			culprit = right
		}
		return TypeInvalid, fmt.Errorf("%w: array type '%s' cannot be an operand of '%s'", ErrMismatch, culprit, op)
	}
	if isRelational(op) {
		return TypeInt, nil
	}
	if op == token.Rem && (!left.IsInteger() || !right.IsInteger()) {
		return TypeInvalid, fmt.Errorf("%w: operands of '%%' must be integers, got '%s' and '%s'", ErrMismatch, left, right)
	}
	return r.Promote(left, right), nil
}

// UnaryResult types a prefix '-', '+' or '!'.
func (r Rules) UnaryResult(op token.Type, operand *Type) (*Type, error) {
	if operand.IsInvalid() {
		return TypeInvalid, nil
	}
	if operand.IsArray() {
		return TypeInvalid, fmt.Errorf("%w: array type '%s' cannot be an operand of unary '%s'", ErrMismatch, operand, op)
	}
	if op == token.Not {
		return TypeInt, nil
	}
	return operand, nil
}

// ExplicitCast types a cast of expr to target. Any scalar converts to any
// other scalar; the result is target even when expr is invalid.
func (r Rules) ExplicitCast(target, expr *Type) (*Type, error) {
	if expr.IsArray() {
		return target, fmt.Errorf("%w: cannot cast array type '%s' to '%s'", ErrMismatch, expr, target)
	}
	return target, nil
}

// ImplicitCast checks that a value of type expr can be stored into a
// location of type declared. Conversions between scalars are silent;
// narrowing tells the caller the value may lose range or precision.
func (r Rules) ImplicitCast(declared, expr *Type) (narrowing bool, err error) {
	if declared.IsInvalid() || expr.IsInvalid() {
		return false, nil
	}
	if declared.IsArray() {
		return false, fmt.Errorf("%w: cannot assign to a value of array type '%s'", ErrMismatch, declared)
	}
	if expr.IsArray() {
		return false, fmt.Errorf("%w: cannot convert array type '%s' to '%s'", ErrMismatch, expr, declared)
	}
	return Rank(expr) > Rank(declared), nil
}

// Subscript types t indexed by n subscripts. A non-array operand recovers
// with its own type so that the surrounding expression stays typed.
func (r Rules) Subscript(t *Type, n int) (*Type, error) {
	if t.IsInvalid() {
		return TypeInvalid, nil
	}
	if !t.IsArray() {
		return t, fmt.Errorf("subscripted value of type '%s' is %w", t, ErrNotAnArray)
	}
	dims := len(t.Dims)
	switch {
	case n == dims:
		return t.Elem, nil
	case n < dims && !r.StrictRank:
		return NewArray(t.Elem, t.Dims[n:]), nil
	}
	return TypeInvalid, fmt.Errorf("%w: array of type '%s' has %d dimension(s) but %d subscript(s) were given", ErrRankMismatch, t, dims, n)
}

// BooleanCompatible reports whether t may be used as a condition.
func BooleanCompatible(t *Type, allowFloating bool) bool {
	if t.IsInvalid() || t.IsInteger() {
		return true
	}
	return allowFloating && t.IsFloating()
}
