package token

type Type int

const (
	EOF Type = iota
	Comment
	Directive
	Ident
	Number
	FloatNumber
	If
	Else
	While
	Do
	For
	Break
	Continue
	Return
	True
	False
	Int
	Long
	Float
	Double
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semi
	Comma
	Eq
	PlusEq
	MinusEq
	StarEq
	SlashEq
	RemEq
	Plus
	Minus
	Star
	Slash
	Rem
	EqEq
	Neq
	Lt
	Gt
	Gte
	Lte
	AndAnd
	OrOr
	Not
)

var KeywordMap = map[string]Type{
	"if":       If,
	"else":     Else,
	"while":    While,
	"do":       Do,
	"for":      For,
	"break":    Break,
	"continue": Continue,
	"return":   Return,
	"true":     True,
	"false":    False,
	"int":      Int,
	"long":     Long,
	"float":    Float,
	"double":   Double,
}

var punctStrings = map[Type]string{
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	Semi: ";", Comma: ",",
	Eq: "=", PlusEq: "+=", MinusEq: "-=", StarEq: "*=", SlashEq: "/=", RemEq: "%=",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Rem: "%",
	EqEq: "==", Neq: "!=", Lt: "<", Gt: ">", Gte: ">=", Lte: "<=",
	AndAnd: "&&", OrOr: "||", Not: "!",
}

// Reverse mapping from Type to the keyword or operator spelling
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
	for typ, str := range punctStrings {
		TypeStrings[typ] = str
	}
	TypeStrings[EOF] = "end of file"
	TypeStrings[Ident] = "identifier"
	TypeStrings[Number] = "integer constant"
	TypeStrings[FloatNumber] = "floating constant"
	TypeStrings[Directive] = "directive"
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	return "<unknown token>"
}

// IsBasicType reports whether t names one of the scalar types.
func (t Type) IsBasicType() bool { return t >= Int && t <= Double }

// IsAssignment reports whether t is '=' or a compound assignment operator.
func (t Type) IsAssignment() bool { return t >= Eq && t <= RemEq }

// CompoundOp maps a compound assignment operator to its binary operator.
func (t Type) CompoundOp() (Type, bool) {
	switch t {
	case PlusEq:
		return Plus, true
	case MinusEq:
		return Minus, true
	case StarEq:
		return Star, true
	case SlashEq:
		return Slash, true
	case RemEq:
		return Rem, true
	}
	return t, false
}

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}
