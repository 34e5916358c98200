package driver

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/mcc/pkg/codegen"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/diag"
	"github.com/xplshn/mcc/pkg/util"
)

func TestReadSample(t *testing.T) {
	u, err := ReadFile("../../testdata/sample.c", 0, config.NewConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.True(t, u.HasErrors())

	var kinds []diag.Kind
	for _, d := range u.Diagnostics {
		kinds = append(kinds, d.Kind)
	}
	assert.Equal(t, []diag.Kind{
		diag.Redeclaration, diag.Undeclared, diag.NotAnArray,
		diag.BreakContinueOutsideLoop, diag.BreakContinueOutsideLoop,
	}, kinds)

	_, err = u.Lower()
	assert.ErrorIs(t, err, codegen.ErrHasErrors)
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadFile("does-not-exist.c", 0, config.NewConfig(), zerolog.Nop())
	assert.Error(t, err)
}

func TestDirectivesStayInTheirFile(t *testing.T) {
	base := config.NewConfig()
	src := "// [mcc]: -Wshadow\nint main() { int a; { int a; } }\n"
	u := Analyze(util.SourceFileRecord{Name: "a.c", Content: []rune(src)}, 0, base, zerolog.Nop())

	assert.True(t, u.Config.IsWarningEnabled(config.WarnShadow))
	assert.False(t, base.IsWarningEnabled(config.WarnShadow))
	require.Len(t, u.Diagnostics, 1)
	assert.Equal(t, diag.Shadowing, u.Diagnostics[0].Kind)
	assert.False(t, u.HasErrors())

	prog, err := u.Lower()
	require.NoError(t, err)
	assert.NotNil(t, prog.FindFunc("main"))
}

func TestCleanFixtureLowers(t *testing.T) {
	u, err := ReadFile("../../testdata/clean.c", 0, config.NewConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.Empty(t, u.Diagnostics)

	prog, err := u.Lower()
	require.NoError(t, err)
	out, err := codegen.NewQBEBackend().GenerateIR(prog, u.Config)
	require.NoError(t, err)
	assert.Contains(t, out, "export function w $main()")
	for _, want := range []string{"extsw", "sltof", "dtosi", "=w copy "} {
		assert.Contains(t, out, want)
	}
}
