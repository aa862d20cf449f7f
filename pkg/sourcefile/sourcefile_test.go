package sourcefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeclaration_Length(t *testing.T) {
	d := Declaration{StartLine: 10, EndLine: 14}
	assert.Equal(t, 5, d.Length())
}

func TestDeclaration_Length_SingleLine(t *testing.T) {
	d := Declaration{StartLine: 10, EndLine: 10}
	assert.Equal(t, 1, d.Length())
}

func TestDeclaration_Length_NeverNegative(t *testing.T) {
	d := Declaration{StartLine: 10, EndLine: 5}
	assert.Equal(t, 0, d.Length())
}

func TestFile_NumFunctionsAndNumClasses(t *testing.T) {
	f := &File{Declarations: []Declaration{
		{Kind: KindFunction, Name: "foo"},
		{Kind: KindMethod, Name: "bar"},
		{Kind: KindClass, Name: "Baz"},
		{Kind: KindStruct, Name: "Qux"},
		{Kind: KindInterface, Name: "Quux"},
	}}

	assert.Equal(t, 2, f.NumFunctions())
	assert.Equal(t, 3, f.NumClasses())
}

func TestFile_HasAISummary(t *testing.T) {
	f := &File{}
	assert.False(t, f.HasAISummary())

	f.AISummary = "does a thing"
	assert.True(t, f.HasAISummary())
}

func TestFile_Lines_Empty(t *testing.T) {
	f := &File{Content: ""}
	assert.Nil(t, f.Lines())
}

func TestFile_Lines_Basic(t *testing.T) {
	f := &File{Content: "line one\nline two\nline three"}
	assert.Equal(t, []string{"line one", "line two", "line three"}, f.Lines())
}

func TestFile_Lines_TrailingNewline(t *testing.T) {
	f := &File{Content: "line one\nline two\n"}
	assert.Equal(t, []string{"line one", "line two"}, f.Lines())
}

func TestFile_Lines_CRLF(t *testing.T) {
	f := &File{Content: "line one\r\nline two\r\n"}
	assert.Equal(t, []string{"line one", "line two"}, f.Lines())
}
