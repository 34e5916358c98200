// Package symtab implements the lexically scoped symbol table used by the
// analyzer. Scopes live in an arena and refer to their parent by index;
// since blocks nest strictly, leaving a scope truncates the arena.
package symtab

import (
	"errors"
	"fmt"

	"github.com/xplshn/mcc/pkg/token"
	"github.com/xplshn/mcc/pkg/types"
)

var ErrUndeclared = errors.New("undeclared identifier")

// ScopeID is a handle to a scope in the table's arena.
type ScopeID int

// NoScope is the parent of the outermost scope.
const NoScope ScopeID = -1

type Symbol struct {
	Name string
	Type *types.Type
	Tok  token.Token // declaration position
	// Scope is the scope the symbol was declared in.
	Scope ScopeID
}

type scope struct {
	parent  ScopeID
	symbols map[string]*Symbol
}

// RedeclaredError reports a second declaration of a name in one scope.
type RedeclaredError struct {
	Name     string
	Previous *Symbol
}

func (e *RedeclaredError) Error() string {
	return fmt.Sprintf("redeclaration of '%s' (previously declared at %d:%d)", e.Name, e.Previous.Tok.Line, e.Previous.Tok.Column)
}

type Table struct {
	scopes []scope
}

func New() *Table { return &Table{} }

// EnterScope opens a new innermost scope.
func (t *Table) EnterScope() ScopeID {
	t.scopes = append(t.scopes, scope{parent: t.Current(), symbols: make(map[string]*Symbol)})
	return t.Current()
}

// ExitScope closes the innermost scope and drops its symbols.
func (t *Table) ExitScope() {
	if len(t.scopes) == 0 {
		panic("internal error: ExitScope called with no open scope")
	}
	t.scopes = t.scopes[:len(t.scopes)-1]
}

// Current is the innermost open scope, or NoScope.
func (t *Table) Current() ScopeID { return ScopeID(len(t.scopes) - 1) }

// Depth is the number of open scopes.
func (t *Table) Depth() int { return len(t.scopes) }

// Parent returns the enclosing scope of id.
func (t *Table) Parent(id ScopeID) ScopeID { return t.scopes[id].parent }

// Declare adds name to the innermost scope. A name already declared in
// that scope is left untouched and a *RedeclaredError is returned.
func (t *Table) Declare(name string, typ *types.Type, tok token.Token) (*Symbol, error) {
	if len(t.scopes) == 0 {
		panic("internal error: Declare called with no open scope")
	}
	cur := &t.scopes[len(t.scopes)-1]
	if prev, ok := cur.symbols[name]; ok {
		return prev, &RedeclaredError{Name: name, Previous: prev}
	}
	sym := &Symbol{Name: name, Type: typ, Tok: tok, Scope: t.Current()}
	cur.symbols[name] = sym
	return sym, nil
}

// Lookup finds the innermost visible declaration of name.
func (t *Table) Lookup(name string) (*Symbol, error) {
	for id := t.Current(); id != NoScope; id = t.scopes[id].parent {
		if sym, ok := t.scopes[id].symbols[name]; ok {
			return sym, nil
		}
	}
	return nil, fmt.Errorf("%w '%s'", ErrUndeclared, name)
}

// LookupOuter finds name in the scopes enclosing the innermost one.
func (t *Table) LookupOuter(name string) (*Symbol, bool) {
	if len(t.scopes) == 0 {
		return nil, false
	}
	for id := t.scopes[t.Current()].parent; id != NoScope; id = t.scopes[id].parent {
		if sym, ok := t.scopes[id].symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}
