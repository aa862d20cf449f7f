// Package processor orchestrates batch summarization over a set of source
// files, ported from original_source/codeconcat/processor/summarization_processor.py:
// eligibility filtering, per-file and per-function summarization, and
// bounded-concurrency batch processing that preserves input order.
package processor

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/tsanders/codeconcat-ai/pkg/ai"
	"github.com/tsanders/codeconcat-ai/pkg/sourcefile"
)

var log = logrus.WithField("component", "processor")

const truncationMarker = "\n... (content truncated)"

// Options configures a Processor's eligibility and batching behavior. Field
// names and defaults mirror summarization_processor.py's ai_* config keys.
type Options struct {
	MinFileLines          int
	ExcludeLanguages      []string
	IncludeLanguages      []string
	ExcludePatterns       []string
	MaxContentChars       int
	MaxConcurrent         int
	SummarizeFunctions    bool
	MaxFunctionsPerFile   int
	MinFunctionLines      int
	FunctionContextLines  int
}

// DefaultOptions returns the defaults named in summarization_processor.py:
// ai_min_file_lines=20 (getattr(self.config, "ai_min_file_lines", 20)),
// ai_max_content_chars=50000, ai_max_concurrent=5, ai_max_functions_per_file=10,
// ai_min_function_lines=10, a 20-line fallback window for undersized ranges.
func DefaultOptions() Options {
	return Options{
		MinFileLines:         20,
		MaxContentChars:      50000,
		MaxConcurrent:        5,
		SummarizeFunctions:   true,
		MaxFunctionsPerFile:  10,
		MinFunctionLines:     10,
		FunctionContextLines: 20,
	}
}

// Processor drives summarization across files using a configured Provider.
type Processor struct {
	provider ai.Provider
	opts     Options

	mu    sync.Mutex
	stats Statistics
}

// Statistics accumulates counters across every ProcessFile/ProcessBatch call
// made through this Processor, mirroring get_statistics.
type Statistics struct {
	FilesProcessed   int64
	FilesSkipped     int64
	FilesFailed      int64
	FunctionsSummarized int64
	TotalTokensUsed  int64
	TotalCost        float64
}

// New constructs a Processor. provider may be nil, in which case every
// ProcessFile call is a no-op skip — this mirrors
// SummarizationProcessor.__init__ catching provider construction errors and
// disabling AI summarization gracefully rather than failing the whole run.
func New(provider ai.Provider, opts Options) *Processor {
	return &Processor{provider: provider, opts: opts}
}

// Enabled reports whether this Processor has a usable provider.
func (p *Processor) Enabled() bool {
	return p.provider != nil
}

// GetStatistics returns a snapshot of accumulated counters.
func (p *Processor) GetStatistics() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Cleanup releases the underlying provider's resources.
func (p *Processor) Cleanup() error {
	if p.provider == nil {
		return nil
	}
	return p.provider.Close()
}

// ProcessFile attaches an AI summary (and, if configured, function
// summaries) to f in place, when f is eligible. Ineligible or already-
// summarized files, and files processed while the provider is disabled, are
// left untouched and counted as skipped, never errored.
func (p *Processor) ProcessFile(ctx context.Context, f *sourcefile.File) {
	if p.provider == nil || !p.shouldSummarizeFile(f) {
		atomic.AddInt64(&p.stats.FilesSkipped, 1)
		return
	}

	result := p.generateFileSummary(ctx, f)
	if result.Error != "" {
		atomic.AddInt64(&p.stats.FilesFailed, 1)
		log.WithFields(logrus.Fields{"file": f.Path, "error": result.Error}).Warn("file summarization failed")
		return
	}

	f.AISummary = result.Summary
	f.AIMetadata = map[string]any{
		"provider":      result.Provider,
		"model":         result.ModelUsed,
		"tokens_used":   result.TokensUsed,
		"cost_estimate": result.CostEstimate,
		"cached":        result.Cached,
	}

	p.mu.Lock()
	p.stats.FilesProcessed++
	p.stats.TotalTokensUsed += int64(result.TokensUsed)
	p.stats.TotalCost += result.CostEstimate
	p.mu.Unlock()

	if p.opts.SummarizeFunctions {
		p.addFunctionSummaries(ctx, f)
	}
}

// ProcessBatch runs ProcessFile over every file in files, bounded to
// opts.MaxConcurrent concurrent in-flight calls via a buffered-channel
// semaphore, preserving the input order of files (each file is mutated in
// place, so order preservation falls out of operating on the same slice
// rather than collecting results separately).
func (p *Processor) ProcessBatch(ctx context.Context, files []*sourcefile.File) {
	maxConcurrent := p.opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for _, f := range files {
		f := f
		select {
		case <-ctx.Done():
			atomic.AddInt64(&p.stats.FilesSkipped, 1)
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			p.ProcessFile(ctx, f)
		}()
	}

	wg.Wait()
}

func (p *Processor) shouldSummarizeFile(f *sourcefile.File) bool {
	if f.HasAISummary() {
		return false
	}

	if p.opts.MinFileLines > 0 && len(f.Lines()) < p.opts.MinFileLines {
		return false
	}

	lang := strings.ToLower(f.Language)
	if len(p.opts.IncludeLanguages) > 0 && !containsFold(p.opts.IncludeLanguages, lang) {
		return false
	}
	if containsFold(p.opts.ExcludeLanguages, lang) {
		return false
	}

	for _, pattern := range p.opts.ExcludePatterns {
		if matched, _ := filepath.Match(pattern, f.Path); matched {
			return false
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(f.Path)); matched {
			return false
		}
	}

	return true
}

func (p *Processor) generateFileSummary(ctx context.Context, f *sourcefile.File) ai.SummarizationResult {
	content := f.Content
	if p.opts.MaxContentChars > 0 && len(content) > p.opts.MaxContentChars {
		content = content[:p.opts.MaxContentChars] + truncationMarker
	}

	imports := f.Imports
	if len(imports) > 10 {
		imports = imports[:10]
	}

	ctxInfo := &ai.CodeContext{
		FilePath:     f.Path,
		Imports:      imports,
		NumFunctions: f.NumFunctions(),
		NumClasses:   f.NumClasses(),
	}

	return p.provider.SummarizeCode(ctx, content, f.Language, ctxInfo, nil)
}

// addFunctionSummaries attaches per-declaration summaries to the largest
// functions/methods in f, mirroring _add_function_summaries: filter to
// function/method kinds, sort by length descending, take the top
// MaxFunctionsPerFile, skip any shorter than MinFunctionLines, and slice the
// declaration's line range (falling back to a FunctionContextLines window
// when the declaration carries no end line).
func (p *Processor) addFunctionSummaries(ctx context.Context, f *sourcefile.File) {
	lines := f.Lines()

	var candidates []int
	for i, d := range f.Declarations {
		if d.Kind == sourcefile.KindFunction || d.Kind == sourcefile.KindMethod {
			candidates = append(candidates, i)
		}
	}

	sort.Slice(candidates, func(a, b int) bool {
		return f.Declarations[candidates[a]].Length() > f.Declarations[candidates[b]].Length()
	})

	if len(candidates) > p.opts.MaxFunctionsPerFile {
		candidates = candidates[:p.opts.MaxFunctionsPerFile]
	}

	for _, idx := range candidates {
		d := &f.Declarations[idx]
		if d.Length() < p.opts.MinFunctionLines {
			continue
		}

		start := d.StartLine - 1
		end := d.EndLine
		if end <= start {
			end = start + p.opts.FunctionContextLines
		}
		if start < 0 {
			start = 0
		}
		if end > len(lines) {
			end = len(lines)
		}
		if start >= end {
			continue
		}
		functionCode := strings.Join(lines[start:end], "\n")

		ctxInfo := &ai.CodeContext{FilePath: f.Path, FunctionName: d.Name}
		result := p.provider.SummarizeFunction(ctx, functionCode, d.Name, f.Language, ctxInfo)
		if result.Error != "" {
			log.WithFields(logrus.Fields{"file": f.Path, "function": d.Name, "error": result.Error}).
				Debug("function summarization failed")
			continue
		}

		d.AISummary = result.Summary
		d.AIMetadata = map[string]any{
			"tokens_used":   result.TokensUsed,
			"cost_estimate": result.CostEstimate,
			"cached":        result.Cached,
		}

		p.mu.Lock()
		p.stats.FunctionsSummarized++
		p.stats.TotalTokensUsed += int64(result.TokensUsed)
		p.stats.TotalCost += result.CostEstimate
		p.mu.Unlock()
	}
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
