// Package sourcefile defines the parsed-file shape the summarization
// processor consumes: a path, language, content, and declarations, standing
// in for the external parser that produces these in the wider tool this
// subsystem plugs into.
package sourcefile

// DeclKind identifies the kind of a parsed declaration.
type DeclKind string

const (
	KindFunction DeclKind = "function"
	KindMethod   DeclKind = "method"
	KindClass    DeclKind = "class"
	KindStruct   DeclKind = "struct"
	KindInterface DeclKind = "interface"
)

// Declaration is one parsed top-level construct within a File.
type Declaration struct {
	Kind      DeclKind
	Name      string
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive

	AISummary  string
	AIMetadata map[string]any
}

// Length returns the declaration's span in lines.
func (d Declaration) Length() int {
	n := d.EndLine - d.StartLine + 1
	if n < 0 {
		return 0
	}
	return n
}

// File is one source file as handed to the summarization processor.
type File struct {
	Path         string
	Language     string
	Content      string
	Declarations []Declaration
	Imports      []string

	AISummary  string
	AIMetadata map[string]any
}

// NumFunctions counts declarations of kind function or method.
func (f *File) NumFunctions() int {
	n := 0
	for _, d := range f.Declarations {
		if d.Kind == KindFunction || d.Kind == KindMethod {
			n++
		}
	}
	return n
}

// NumClasses counts declarations of kind class, struct, or interface.
func (f *File) NumClasses() int {
	n := 0
	for _, d := range f.Declarations {
		if d.Kind == KindClass || d.Kind == KindStruct || d.Kind == KindInterface {
			n++
		}
	}
	return n
}

// HasAISummary reports whether this file already carries a summary, used by
// the processor's eligibility filter to skip already-summarized files.
func (f *File) HasAISummary() bool {
	return f.AISummary != ""
}

// Lines splits Content into lines without its trailing newlines, mirroring
// Python's str.splitlines() semantics closely enough for line-range slicing.
func (f *File) Lines() []string {
	return splitLines(f.Content)
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			end := i
			if end > start && content[end-1] == '\r' {
				end--
			}
			lines = append(lines, content[start:end])
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}
