package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/diag"
	"github.com/xplshn/mcc/pkg/lexer"
	"github.com/xplshn/mcc/pkg/parser"
	"github.com/xplshn/mcc/pkg/sema"
	"github.com/xplshn/mcc/pkg/token"
)

const annotated = `int main() {
    int a;  // [ERROR] inline
    a = 1;

    // [ERROR] block
    a = 2;
    a = 3;

    // [ERROR] nothing follows

}`

func errAt(line int) diag.Diagnostic {
	return diag.Diagnostic{Kind: diag.Undeclared, Severity: diag.Error, Tok: token.Token{Line: line, Column: 1}, Message: "boom"}
}

func TestParse(t *testing.T) {
	anns := Parse(annotated)
	require.Len(t, anns, 3)

	assert.True(t, anns[0].Inline)
	assert.Equal(t, "inline", anns[0].Note)
	assert.Equal(t, [2]int{2, 2}, [2]int{anns[0].First, anns[0].Last})

	assert.False(t, anns[1].Inline)
	assert.Equal(t, 5, anns[1].Line)
	assert.Equal(t, [2]int{6, 7}, [2]int{anns[1].First, anns[1].Last})

	assert.False(t, anns[2].covers(10), "an annotation followed by a blank line covers nothing")
}

func TestCheck(t *testing.T) {
	ds := []diag.Diagnostic{errAt(2), errAt(7), errAt(3)}
	warn := errAt(11)
	warn.Severity = diag.Warning
	ds = append(ds, warn)

	got := Check(annotated, 0, ds)
	require.Len(t, got, 2)
	assert.Equal(t, Unexpected, got[0].Kind)
	assert.Equal(t, 3, got[0].Line)
	assert.Equal(t, Missing, got[1].Kind)
	assert.Equal(t, 9, got[1].Line)
	assert.Contains(t, got[1].String(), "nothing follows")
}

func TestCheckIgnoresOtherFiles(t *testing.T) {
	d := errAt(3)
	d.Tok.FileIndex = 1
	got := Check("int main() {}\n", 0, []diag.Diagnostic{d})
	assert.Empty(t, got)
}

func TestFixturesMatchTheirAnnotations(t *testing.T) {
	files, err := filepath.Glob("../../testdata/*.c")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			src, err := os.ReadFile(file)
			require.NoError(t, err)

			cfg := config.NewConfig()
			l := lexer.NewLexer([]rune(string(src)), 0, cfg)
			p := parser.NewParser(l.Tokenize(), cfg)
			res := sema.New(cfg).Analyze(p.Parse())
			all := diag.Merge(l.Diagnostics(), p.Diagnostics(), res.Diagnostics)

			for _, m := range Check(string(src), 0, all) {
				t.Error(m.String())
			}
		})
	}
}
