package sema

import (
	"fmt"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/diag"
	"github.com/xplshn/mcc/pkg/lexer"
	"github.com/xplshn/mcc/pkg/parser"
	"github.com/xplshn/mcc/pkg/token"
	"github.com/xplshn/mcc/pkg/types"
)

func parseSource(t *testing.T, src string, cfg *config.Config) *ast.Node {
	t.Helper()
	l := lexer.NewLexer([]rune(src), 0, cfg)
	p := parser.NewParser(l.Tokenize(), cfg)
	root := p.Parse()
	require.Empty(t, l.Diagnostics())
	for _, d := range p.Diagnostics() {
		require.NotEqual(t, diag.Error, d.Severity, d.String())
	}
	return root
}

func analyzeWith(t *testing.T, cfg *config.Config, body string) Result {
	t.Helper()
	root := parseSource(t, "int main() {\n"+body+"\n}\n", cfg)
	return New(cfg).Analyze(root)
}

func analyze(t *testing.T, body string) Result {
	t.Helper()
	return analyzeWith(t, config.NewConfig(), body)
}

type found struct {
	Kind diag.Kind
	Line int
}

// summary keeps the kind and the line inside main of every diagnostic.
func summary(ds []diag.Diagnostic) []found {
	var out []found
	for _, d := range ds {
		out = append(out, found{d.Kind, d.Tok.Line - 1})
	}
	return out
}

func TestSampleFixture(t *testing.T) {
	src, err := os.ReadFile("../../testdata/sample.c")
	require.NoError(t, err)
	cfg := config.NewConfig()
	res := New(cfg).Analyze(parseSource(t, string(src), cfg))

	want := []found{
		{diag.Redeclaration, 9},
		{diag.Undeclared, 16},
		{diag.NotAnArray, 21},
		{diag.BreakContinueOutsideLoop, 55},
		{diag.BreakContinueOutsideLoop, 56},
	}
	var got []found
	for _, d := range res.Diagnostics {
		got = append(got, found{d.Kind, d.Tok.Line})
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestRedeclaration(t *testing.T) {
	t.Run("same scope is an error and keeps the first declaration", func(t *testing.T) {
		res := analyze(t, "int x;\nfloat x;\nx = 1;")
		require.Len(t, res.Diagnostics, 1)
		d := res.Diagnostics[0]
		assert.Equal(t, diag.Redeclaration, d.Kind)
		assert.Equal(t, 3, d.Tok.Line)
		assert.Contains(t, d.Message, "previously declared at 2:5")
	})

	t.Run("declaration lists share the scope", func(t *testing.T) {
		res := analyze(t, "int a, b, a;")
		assert.Equal(t, []found{{diag.Redeclaration, 1}}, summary(res.Diagnostics))
	})

	t.Run("functions are checked too", func(t *testing.T) {
		cfg := config.NewConfig()
		root := parseSource(t, "int main() { }\nint main() { }", cfg)
		res := New(cfg).Analyze(root)
		require.Len(t, res.Diagnostics, 1)
		assert.Equal(t, diag.Redeclaration, res.Diagnostics[0].Kind)
	})
}

func TestShadowing(t *testing.T) {
	src := "int x;\n{ double x; x = 1.5; }\nwhile (x < 3) { long x; }\nfor (int x = 0; x < 1; x = x + 1) ;"

	t.Run("inner scopes may hide outer names", func(t *testing.T) {
		res := analyze(t, src)
		assert.Empty(t, res.Diagnostics)
	})

	t.Run("the shadow warning reports each hiding declaration", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.SetWarning(config.WarnShadow, true)
		res := analyzeWith(t, cfg, src)
		assert.Equal(t, []found{{diag.Shadowing, 2}, {diag.Shadowing, 3}, {diag.Shadowing, 4}}, summary(res.Diagnostics))
		for _, d := range res.Diagnostics {
			assert.Equal(t, diag.Warning, d.Severity)
			assert.Equal(t, "shadow", d.Flag)
		}
	})

	t.Run("the inner declaration is the one referenced", func(t *testing.T) {
		res := analyze(t, "int x;\n{ double x; x = 1.5; }")
		for node, typ := range res.Types {
			if node.Type == ast.Assign {
				assert.Same(t, types.TypeDouble, typ)
			}
		}
	})

	t.Run("names declared in a block are gone after it", func(t *testing.T) {
		res := analyze(t, "{ int y; }\ny = 1;")
		assert.Equal(t, []found{{diag.Undeclared, 2}}, summary(res.Diagnostics))
	})
}

func TestUndeclared(t *testing.T) {
	res := analyze(t, "k = 1;\nk = k + 2;\nint z;\nz = q + k;")
	assert.Equal(t, []found{{diag.Undeclared, 1}, {diag.Undeclared, 4}}, summary(res.Diagnostics))
	assert.Equal(t, "use of undeclared identifier 'k'", res.Diagnostics[0].Message)

	for node, typ := range res.Types {
		if d, ok := node.Data.(ast.IdentNode); ok && d.Name == "k" {
			assert.True(t, typ.IsInvalid())
		}
	}
}

func TestImplicitCast(t *testing.T) {
	body := "int i;\nfloat f;\ndouble d;\ni = 50.123;\nf = d;\nd = i;\nlong l = 2.5;"

	t.Run("conversions between scalars are silent", func(t *testing.T) {
		assert.Empty(t, analyze(t, body).Diagnostics)
	})

	t.Run("narrowing can be reported as a warning", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.SetWarning(config.WarnNarrowing, true)
		res := analyzeWith(t, cfg, body)
		assert.Equal(t, []found{
			{diag.NarrowingConversion, 4}, {diag.NarrowingConversion, 5}, {diag.NarrowingConversion, 7},
		}, summary(res.Diagnostics))
		assert.Zero(t, diag.CountErrors(res.Diagnostics))
	})

	t.Run("returns convert to the function type", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.SetWarning(config.WarnNarrowing, true)
		res := analyzeWith(t, cfg, "return 1.5;")
		assert.Equal(t, []found{{diag.NarrowingConversion, 1}}, summary(res.Diagnostics))
	})
}

func TestExpressionTypes(t *testing.T) {
	res := analyze(t, "int i;\nlong l;\nfloat f;\ndouble d;\nf = (float) 1 + (long) 0.9;\nd = i + l * f;\ni = f < d;\ni = -l;")
	assert.Empty(t, res.Diagnostics)

	byText := map[string]*types.Type{}
	for node, typ := range res.Types {
		if d, ok := node.Data.(ast.BinaryOpNode); ok {
			byText[fmt.Sprintf("%s@%d", d.Op, node.Tok.Line-1)] = typ
		}
	}
	assert.Same(t, types.TypeFloat, byText["+@5"], "float + long")
	assert.Same(t, types.TypeFloat, byText["*@6"], "long * float")
	assert.Same(t, types.TypeFloat, byText["+@6"], "int + float")
	assert.Same(t, types.TypeInt, byText["<@7"])

	t.Run("widen-long-float selects double", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.SetFeature(config.FeatWidenLongFloat, true)
		res := analyzeWith(t, cfg, "long l;\nfloat f;\nf = l + f;")
		for node, typ := range res.Types {
			if node.Type == ast.BinaryOp {
				assert.Same(t, types.TypeDouble, typ)
			}
		}
	})

	t.Run("remainder needs integer operands", func(t *testing.T) {
		res := analyze(t, "int i;\nfloat f;\ni = i % 2;\ni = f % 2;\nf %= 2;")
		assert.Equal(t, []found{{diag.TypeMismatch, 4}, {diag.TypeMismatch, 5}}, summary(res.Diagnostics))
	})

	t.Run("literals", func(t *testing.T) {
		res := analyze(t, "1;\n2.5;\ntrue;")
		var kinds []types.Kind
		for _, typ := range res.Types {
			kinds = append(kinds, typ.Kind)
		}
		assert.ElementsMatch(t, []types.Kind{types.Int, types.Float, types.Int}, kinds)
	})
}

func TestArrays(t *testing.T) {
	decls := "int i;\nint[5][4] a;\n"

	cases := []struct {
		name string
		stmt string
		want []found
	}{
		{"full subscript is the element", "a[1][2] = a[2][1] + 10;", nil},
		{"scalar cannot be subscripted", "i[1] = 10;", []found{{diag.NotAnArray, 3}}},
		{"too few subscripts", "i = a[1];", []found{{diag.ArrayRankMismatch, 3}}},
		{"too many subscripts", "a[1][2][3] = 1;", []found{{diag.ArrayRankMismatch, 3}}},
		{"whole array assignment", "a = 1;", []found{{diag.TypeMismatch, 3}}},
		{"array as a value", "i = a;", []found{{diag.TypeMismatch, 3}}},
		{"array in arithmetic", "i = a + 1;", []found{{diag.TypeMismatch, 3}}},
		{"array as a condition", "if (a) i = 1;", []found{{diag.TypeMismatch, 3}}},
		{"array in a cast", "i = (int) a;", []found{{diag.TypeMismatch, 3}}},
		{"floating index", "a[1.5][0] = 1;", []found{{diag.TypeMismatch, 3}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := analyze(t, decls+tc.stmt)
			assert.Equal(t, tc.want, summary(res.Diagnostics))
		})
	}

	t.Run("not-an-array recovers with the scalar type", func(t *testing.T) {
		res := analyze(t, decls+"i = i[0] % 2;")
		assert.Equal(t, []found{{diag.NotAnArray, 3}}, summary(res.Diagnostics))
	})

	t.Run("constant index warning", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.SetWarning(config.WarnConstIndex, true)
		res := analyzeWith(t, cfg, decls+"a[5][3] = 1;\na[4][3] = 1;")
		assert.Equal(t, []found{{diag.ConstIndexOutOfRange, 3}}, summary(res.Diagnostics))
		assert.Equal(t, "index 5 is past the end of dimension 1 of 'int[5][4]'", res.Diagnostics[0].Message)
	})

	t.Run("partial subscripts without strict rank", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.SetFeature(config.FeatStrictRank, false)
		res := analyzeWith(t, cfg, decls+"a[1];\ni = a[1];")
		assert.Equal(t, []found{{diag.TypeMismatch, 4}}, summary(res.Diagnostics))
		for node, typ := range res.Types {
			if node.Type == ast.Subscript {
				assert.Equal(t, "int[4]", typ.String())
			}
		}
	})
}

func TestLoopContext(t *testing.T) {
	t.Run("inside loops", func(t *testing.T) {
		res := analyze(t, "int j;\nwhile (j) { if (j) break; else continue; }\ndo continue; while (j);\nfor (;;) { { break; } }")
		assert.Empty(t, res.Diagnostics)
	})

	t.Run("outside loops", func(t *testing.T) {
		res := analyze(t, "int j;\nbreak;\nwhile (j) ;\ncontinue;\nif (j) break;")
		assert.Equal(t, []found{
			{diag.BreakContinueOutsideLoop, 2},
			{diag.BreakContinueOutsideLoop, 4},
			{diag.BreakContinueOutsideLoop, 5},
		}, summary(res.Diagnostics))
		assert.Equal(t, "'continue' statement not within a loop", res.Diagnostics[1].Message)
	})

	t.Run("loop stack discipline", func(t *testing.T) {
		var s loopStack
		assert.False(t, s.inLoop())
		s.enterLoop(token.Token{})
		assert.True(t, s.inLoop())
		s.exitLoop()
		assert.Panics(t, func() { s.exitLoop() })
	})
}

func TestConditions(t *testing.T) {
	body := "float f;\nlong l;\nif (f) l = 1;\nwhile (l) ;\nfor (; f < 1.0; ) break;"
	res := analyze(t, body)
	assert.Equal(t, []found{{diag.TypeMismatch, 3}}, summary(res.Diagnostics))

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatFloatCond, true)
	assert.Empty(t, analyzeWith(t, cfg, body).Diagnostics)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	src, err := os.ReadFile("../../testdata/sample.c")
	require.NoError(t, err)
	cfg := config.NewConfig()
	root := parseSource(t, string(src), cfg)

	a := New(cfg)
	first := a.Analyze(root)
	second := a.Analyze(root)
	third := New(cfg).Analyze(root)

	assert.Equal(t, first.Diagnostics, second.Diagnostics)
	assert.Equal(t, first.Diagnostics, third.Diagnostics)
	assert.Equal(t, first.Types, third.Types)
	assert.Len(t, third.Symbols, len(first.Symbols))
}
