package diag

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/mcc/pkg/token"
)

func TestList(t *testing.T) {
	var l List
	l.Warnf(NarrowingConversion, "narrowing", token.Token{Line: 3, Column: 5}, "conversion from '%s' to '%s' may lose precision", "double", "int")
	assert.False(t, l.HasErrors())

	l.Errorf(Undeclared, token.Token{Line: 1, Column: 2}, "'%s' undeclared", "x")
	assert.True(t, l.HasErrors())
	assert.Equal(t, 1, l.ErrorCount())
	require.Equal(t, 2, l.Len())
	assert.Equal(t, "'x' undeclared", l.Items()[1].Message)
	assert.Equal(t, "narrowing", l.Items()[0].Flag)
}

func TestSortByPosition(t *testing.T) {
	ds := []Diagnostic{
		{Kind: Syntax, Tok: token.Token{Line: 4, Column: 1}},
		{Kind: TypeMismatch, Tok: token.Token{Line: 2, Column: 9}},
		{Kind: Undeclared, Tok: token.Token{Line: 2, Column: 9}},
		{Kind: Lexical, Tok: token.Token{Line: 2, Column: 1}},
	}
	SortByPosition(ds)

	var got []Kind
	for _, d := range ds {
		got = append(got, d.Kind)
	}
	assert.Equal(t, []Kind{Lexical, TypeMismatch, Undeclared, Syntax}, got)
}

func TestRecordJSON(t *testing.T) {
	d := Diagnostic{Kind: NotAnArray, Severity: Error, Tok: token.Token{Line: 20, Column: 5}, Message: "subscripted value of type 'int' is not an array"}
	data, err := json.Marshal(d.Record("sample.c"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"file":"sample.c","line":20,"column":5,"kind":"not-an-array","code":"S0004","severity":"error","message":"subscripted value of type 'int' is not an array"}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, NotAnArray, back.Kind)
	assert.Equal(t, Error, back.Severity)
}

func TestKindNames(t *testing.T) {
	seen := make(map[string]bool)
	for k := Kind(0); k < KindCount; k++ {
		name := k.String()
		assert.NotEmpty(t, name)
		assert.False(t, seen[name], "duplicate kind name %s", name)
		seen[name] = true
	}
	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("nope")))
}
