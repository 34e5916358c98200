package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/diag"
	"github.com/xplshn/mcc/pkg/lexer"
	"github.com/xplshn/mcc/pkg/token"
	"github.com/xplshn/mcc/pkg/types"
)

func parse(t *testing.T, src string) (*ast.Node, []diag.Diagnostic, *config.Config) {
	t.Helper()
	cfg := config.NewConfig()
	l := lexer.NewLexer([]rune(src), 0, cfg)
	p := NewParser(l.Tokenize(), cfg)
	root := p.Parse()
	require.Empty(t, l.Diagnostics())
	return root, p.Diagnostics(), cfg
}

// body parses src as the body of main and returns its statements.
func body(t *testing.T, src string) []*ast.Node {
	t.Helper()
	root, diags, _ := parse(t, "int main() {\n"+src+"\n}")
	require.Empty(t, diags)
	funcs := root.Data.(ast.BlockNode).Stmts
	require.Len(t, funcs, 1)
	return funcs[0].Data.(ast.FuncDeclNode).Body.Data.(ast.BlockNode).Stmts
}

func TestFunction(t *testing.T) {
	root, diags, _ := parse(t, "int main() { return 0; }")
	require.Empty(t, diags)
	assert.True(t, root.Data.(ast.BlockNode).IsSynthetic)
	fn := root.Data.(ast.BlockNode).Stmts[0]
	require.Equal(t, ast.FuncDecl, fn.Type)
	d := fn.Data.(ast.FuncDeclNode)
	assert.Equal(t, "main", d.Name)
	assert.Same(t, types.TypeInt, d.ReturnType)
	assert.Same(t, fn, d.Body.Parent)
}

func TestDeclarations(t *testing.T) {
	t.Run("dimensions after the type apply to every name", func(t *testing.T) {
		stmts := body(t, "int[5][4] a, b;")
		require.Len(t, stmts, 1)
		list := stmts[0].Data.(ast.BlockNode)
		assert.True(t, list.IsSynthetic)
		require.Len(t, list.Stmts, 2)
		for _, decl := range list.Stmts {
			assert.Equal(t, "int[5][4]", decl.Data.(ast.VarDeclNode).Type.String())
		}
	})

	t.Run("dimensions after the name and initializers", func(t *testing.T) {
		stmts := body(t, "double x = 1.5, m[3];")
		list := stmts[0].Data.(ast.BlockNode).Stmts
		x := list[0].Data.(ast.VarDeclNode)
		assert.Equal(t, "x", x.Name)
		require.NotNil(t, x.Init)
		assert.Equal(t, ast.FloatNumber, x.Init.Type)
		assert.Equal(t, "double[3]", list[1].Data.(ast.VarDeclNode).Type.String())
	})
}

func TestExpressions(t *testing.T) {
	t.Run("precedence climbing", func(t *testing.T) {
		stmts := body(t, "a = b + c * d < e && f || g;")
		assign := stmts[0].Data.(ast.AssignNode)
		or := assign.Rhs.Data.(ast.BinaryOpNode)
		assert.Equal(t, token.OrOr, or.Op)
		and := or.Left.Data.(ast.BinaryOpNode)
		assert.Equal(t, token.AndAnd, and.Op)
		lt := and.Left.Data.(ast.BinaryOpNode)
		assert.Equal(t, token.Lt, lt.Op)
		plus := lt.Left.Data.(ast.BinaryOpNode)
		assert.Equal(t, token.Plus, plus.Op)
		assert.Equal(t, token.Star, plus.Right.Data.(ast.BinaryOpNode).Op)
	})

	t.Run("casts bind tighter than binary operators", func(t *testing.T) {
		stmts := body(t, "f = (float) 1 + (long) 0.9;")
		plus := stmts[0].Data.(ast.AssignNode).Rhs.Data.(ast.BinaryOpNode)
		left := plus.Left.Data.(ast.TypeCastNode)
		assert.Same(t, types.TypeFloat, left.TargetType)
		right := plus.Right.Data.(ast.TypeCastNode)
		assert.Same(t, types.TypeLong, right.TargetType)
	})

	t.Run("subscripts collect every index", func(t *testing.T) {
		stmts := body(t, "arr[1][i + 1] -= -x;")
		assign := stmts[0].Data.(ast.AssignNode)
		assert.Equal(t, token.MinusEq, assign.Op)
		sub := assign.Lhs.Data.(ast.SubscriptNode)
		assert.Equal(t, "arr", sub.Array.Data.(ast.IdentNode).Name)
		assert.Len(t, sub.Indices, 2)
		assert.Equal(t, ast.UnaryOp, assign.Rhs.Type)
	})

	t.Run("boolean literals are integer constants", func(t *testing.T) {
		stmts := body(t, "x = true; y = false;")
		assert.Equal(t, int64(1), stmts[0].Data.(ast.AssignNode).Rhs.Data.(ast.NumberNode).Value)
		assert.Equal(t, int64(0), stmts[1].Data.(ast.AssignNode).Rhs.Data.(ast.NumberNode).Value)
	})
}

func TestStatements(t *testing.T) {
	stmts := body(t, `
if (a) b = 1; else { b = 2; }
while (a < 3) a = a + 1;
do { break; } while (1);
for (int i = 0; i < 3; i = i + 1) continue;
for (;;) ;
`)
	require.Len(t, stmts, 5)
	assert.NotNil(t, stmts[0].Data.(ast.IfNode).ElseBody)
	assert.Equal(t, ast.While, stmts[1].Type)
	assert.Equal(t, ast.Break, stmts[2].Data.(ast.DoWhileNode).Body.Data.(ast.BlockNode).Stmts[0].Type)

	loop := stmts[3].Data.(ast.ForNode)
	assert.True(t, loop.Init.Data.(ast.BlockNode).IsSynthetic)
	assert.Equal(t, ast.Continue, loop.Body.Type)

	empty := stmts[4].Data.(ast.ForNode)
	assert.Nil(t, empty.Init)
	assert.Nil(t, empty.Cond)
	assert.Nil(t, empty.Post)
}

func TestSyntaxErrors(t *testing.T) {
	t.Run("recovery continues with the next statement", func(t *testing.T) {
		root, diags, _ := parse(t, "int main() {\n  a = ;\n  b = 1;\n  int ;\n  c = 2;\n}")
		require.Len(t, diags, 2)
		for _, d := range diags {
			assert.Equal(t, diag.Syntax, d.Kind)
		}
		assert.Equal(t, 2, diags[0].Tok.Line)
		assert.Equal(t, 4, diags[1].Tok.Line)
		stmts := root.Data.(ast.BlockNode).Stmts[0].Data.(ast.FuncDeclNode).Body.Data.(ast.BlockNode).Stmts
		assert.Len(t, stmts, 3)
	})

	t.Run("assignment needs a variable or array element", func(t *testing.T) {
		_, diags, _ := parse(t, "int main() { 1 = 2; }")
		require.Len(t, diags, 1)
		assert.Equal(t, "invalid target for assignment", diags[0].Message)
	})

	t.Run("array dimensions must be positive constants", func(t *testing.T) {
		_, diags, _ := parse(t, "int main() { int a[0]; int b[n]; }")
		require.Len(t, diags, 2)
	})

	t.Run("only functions at top level", func(t *testing.T) {
		root, diags, _ := parse(t, "x = 1; int main() { }")
		require.Len(t, diags, 1)
		assert.Len(t, root.Data.(ast.BlockNode).Stmts, 1)
	})
}

func TestDirectivesApplyToConfig(t *testing.T) {
	_, diags, cfg := parse(t, "// [mcc]: -Wshadow -Wbogus\nint main() { }")
	assert.True(t, cfg.IsWarningEnabled(config.WarnShadow))
	require.Len(t, diags, 1)
	assert.Equal(t, diag.UnknownFlag, diags[0].Kind)
	assert.Equal(t, diag.Warning, diags[0].Severity)
}
