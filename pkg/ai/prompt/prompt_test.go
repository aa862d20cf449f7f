package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCodeSummaryData_CapsImportsAtFive(t *testing.T) {
	imports := []string{"a", "b", "c", "d", "e", "f", "g"}
	data := BuildCodeSummaryData("code", "go", "main.go", 1, 0, imports)
	assert.Equal(t, "a, b, c, d, e", data.ImportsStr)
}

func TestBuildCodeSummaryData_NoImports(t *testing.T) {
	data := BuildCodeSummaryData("code", "go", "main.go", 0, 0, nil)
	assert.Equal(t, "none", data.ImportsStr)
}

func TestBuildCodeSummaryData_DefaultsFilePath(t *testing.T) {
	data := BuildCodeSummaryData("code", "go", "", 0, 0, nil)
	assert.Equal(t, "unknown", data.FilePath)
}

func TestBuildFunctionSummaryData_ComplexityThresholds(t *testing.T) {
	simple := BuildFunctionSummaryData(strings.Repeat("x\n", 5), "f", "go", "f.go")
	assert.Equal(t, "simple", simple.ComplexityHint)

	moderate := BuildFunctionSummaryData(strings.Repeat("x\n", 20), "f", "go", "f.go")
	assert.Equal(t, "moderate", moderate.ComplexityHint)

	complex := BuildFunctionSummaryData(strings.Repeat("x\n", 40), "f", "go", "f.go")
	assert.Equal(t, "complex", complex.ComplexityHint)
}

func TestBuildFunctionSummaryData_DefaultsFilePath(t *testing.T) {
	data := BuildFunctionSummaryData("code", "f", "go", "")
	assert.Equal(t, "unknown", data.FilePath)
}

func TestLoad_CompilesBothTemplates(t *testing.T) {
	tmpls, err := Load()
	require.NoError(t, err)
	require.NotNil(t, tmpls.CodeSummary)
	require.NotNil(t, tmpls.FunctionSummary)
}

func TestRenderCodeSummary_InterpolatesFields(t *testing.T) {
	tmpls, err := Load()
	require.NoError(t, err)

	data := BuildCodeSummaryData("func main() {}", "go", "main.go", 1, 0, []string{"fmt"})
	out, err := tmpls.CodeSummary.RenderCodeSummary(data)
	require.NoError(t, err)

	assert.Contains(t, out, "main.go")
	assert.Contains(t, out, "func main() {}")
	assert.Contains(t, out, "fmt")
}

func TestRenderFunctionSummary_InterpolatesFields(t *testing.T) {
	tmpls, err := Load()
	require.NoError(t, err)

	data := BuildFunctionSummaryData("func foo() {}", "foo", "go", "f.go")
	out, err := tmpls.FunctionSummary.RenderFunctionSummary(data)
	require.NoError(t, err)

	assert.Contains(t, out, "foo")
	assert.Contains(t, out, "func foo() {}")
}
