// Package prompt renders the CO-STAR prompt bodies used for file and
// function summarization, following the teacher's pkg/prompt pattern:
// templates are text/template bodies compiled once and rendered per call,
// with room for the defaults to be overridden later without touching the
// providers that consume them.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Template wraps a compiled text/template for one prompt kind.
type Template struct {
	Name    string
	Content string

	compiled *template.Template
}

// Templates bundles the two prompt kinds a provider needs.
type Templates struct {
	CodeSummary     *Template
	FunctionSummary *Template
}

// CodeSummaryData is the render context for a whole-file summary prompt.
type CodeSummaryData struct {
	Code         string
	Language     string
	FilePath     string
	NumFunctions int
	NumClasses   int
	ImportsStr   string
}

// FunctionSummaryData is the render context for a single-function prompt.
type FunctionSummaryData struct {
	FunctionCode   string
	FunctionName   string
	Language       string
	FilePath       string
	ComplexityHint string
	LinesOfCode    int
}

// Load compiles the default templates. Defaults are the only source for now;
// file-based overrides can be wired in the same way the teacher's
// pkg/prompt.Load reads SingleFixPath/BatchFixPath.
func Load() (*Templates, error) {
	t := &Templates{
		CodeSummary:     &Template{Name: "code-summary-default", Content: defaultCodeSummaryContent},
		FunctionSummary: &Template{Name: "function-summary-default", Content: defaultFunctionSummaryContent},
	}

	if err := t.CodeSummary.compile(); err != nil {
		return nil, fmt.Errorf("failed to compile code-summary template: %w", err)
	}
	if err := t.FunctionSummary.compile(); err != nil {
		return nil, fmt.Errorf("failed to compile function-summary template: %w", err)
	}
	return t, nil
}

func (t *Template) compile() error {
	tmpl, err := template.New(t.Name).Parse(t.Content)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	t.compiled = tmpl
	return nil
}

// RenderCodeSummary renders the CO-STAR file-summary prompt.
func (t *Template) RenderCodeSummary(data CodeSummaryData) (string, error) {
	if t.compiled == nil {
		return "", fmt.Errorf("template not compiled")
	}
	var buf bytes.Buffer
	if err := t.compiled.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// RenderFunctionSummary renders the function-summary prompt.
func (t *Template) RenderFunctionSummary(data FunctionSummaryData) (string, error) {
	if t.compiled == nil {
		return "", fmt.Errorf("template not compiled")
	}
	var buf bytes.Buffer
	if err := t.compiled.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// BuildCodeSummaryData derives template data for a file summary, capping
// imports at the first 5 and joining them for display, the same bound the
// prompt body itself applies (not to be confused with the processor's
// imports[:10] context-construction cap, which feeds a different field).
func BuildCodeSummaryData(code, language, filePath string, numFunctions, numClasses int, imports []string) CodeSummaryData {
	importsStr := "none"
	if len(imports) > 0 {
		n := len(imports)
		if n > 5 {
			n = 5
		}
		importsStr = strings.Join(imports[:n], ", ")
	}
	if filePath == "" {
		filePath = "unknown"
	}

	return CodeSummaryData{
		Code:         code,
		Language:     language,
		FilePath:     filePath,
		NumFunctions: numFunctions,
		NumClasses:   numClasses,
		ImportsStr:   importsStr,
	}
}

// BuildFunctionSummaryData derives template data for a function summary,
// including the simple/moderate/complex hint based on line count.
func BuildFunctionSummaryData(functionCode, functionName, language, filePath string) FunctionSummaryData {
	lines := strings.Count(functionCode, "\n") + 1
	hint := "complex"
	switch {
	case lines < 10:
		hint = "simple"
	case lines < 30:
		hint = "moderate"
	}
	if filePath == "" {
		filePath = "unknown"
	}

	return FunctionSummaryData{
		FunctionCode:   functionCode,
		FunctionName:   functionName,
		Language:       language,
		FilePath:       filePath,
		ComplexityHint: hint,
		LinesOfCode:    lines,
	}
}

const defaultCodeSummaryContent = `### Role
You are an expert software engineer specializing in {{.Language}} code documentation and analysis.

### Context
File: {{.FilePath}}
Language: {{.Language}}
Structure: {{.NumClasses}} classes, {{.NumFunctions}} functions
Key imports: {{.ImportsStr}}

### Objective
Analyze and summarize the following {{.Language}} code, creating a comprehensive yet concise summary.

### Task
Provide a structured summary that covers:
1. **Primary Purpose**: What problem does this code solve? (1 sentence)
2. **Core Components**: Main classes/functions and their responsibilities
3. **Key Patterns**: Important design patterns, algorithms, or architectural decisions
4. **Dependencies**: Critical external libraries or modules used
5. **Technical Highlights**: Notable implementation details or complexity

### Style
Technical but accessible to intermediate developers. Use precise terminology while maintaining clarity.

### Format
Provide a 2-3 paragraph summary structured as:
- First paragraph: Overall purpose and functionality
- Second paragraph: Key implementation details and design choices
- Third paragraph (if needed): Important dependencies or integration points

### Code
` + "```{{.Language}}" + `
{{.Code}}
` + "```" + `

### Summary`

const defaultFunctionSummaryContent = `### Role
You are a senior software engineer documenting {{.Language}} code for a technical team.

### Context
Function: {{.FunctionName}}
From file: {{.FilePath}}
Language: {{.Language}}
Complexity: {{.ComplexityHint}} (~{{.LinesOfCode}} lines)

### Objective
Create a precise, informative summary of this function's behavior and implementation.

### Task
Analyze the function and provide:
1. **Purpose**: What problem it solves or functionality it provides
2. **Signature**: Key parameters and return value with types if evident
3. **Behavior**: Core logic, including any algorithms or patterns used
4. **Side Effects**: State mutations, I/O operations, or external interactions
5. **Error Handling**: How it handles edge cases or errors (if applicable)

### Format
Provide a concise 1-2 sentence summary that captures:
- Primary functionality and purpose
- Key technical details (algorithm, pattern, or approach used)
- Important considerations (side effects, performance, constraints)

Use this structure: "[Action verb] [what it does] by [how it does it], [any important notes]."

### Function Code
` + "```{{.Language}}" + `
{{.FunctionCode}}
` + "```" + `

### Summary`
