// Command codeconcat-ai exercises the summarization processor end-to-end
// against a directory of source files, proving the wiring between the
// factory, the processor, and an adapter. It is intentionally thin: CLI UX
// is an explicit non-goal of the subsystem it drives.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsanders/codeconcat-ai/internal/config"
	"github.com/tsanders/codeconcat-ai/internal/log"
	"github.com/tsanders/codeconcat-ai/pkg/ai"
	"github.com/tsanders/codeconcat-ai/pkg/ai/factory"
	"github.com/tsanders/codeconcat-ai/pkg/ai/keys"
	"github.com/tsanders/codeconcat-ai/pkg/ai/processor"
	"github.com/tsanders/codeconcat-ai/pkg/sourcefile"
	"github.com/tsanders/codeconcat-ai/pkg/ux"
)

var (
	inputPath    string
	providerName string
	model        string
	apiKey       string
	showDetail   bool
)

var extToLanguage = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".java": "java",
	".rb":   "ruby",
	".rs":   "rust",
	".c":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".h":    "c",
	".hpp":  "cpp",
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "codeconcat-ai",
		Short: "AI code summarization for codeconcat",
		Long: `codeconcat-ai attaches AI-generated summaries to source files and their
declarations, as a pluggable post-processing stage over a source tree.`,
	}

	summarizeCmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize every source file under a directory",
		RunE:  runSummarize,
	}
	summarizeCmd.Flags().StringVar(&inputPath, "input", "", "Path to source code directory (required)")
	summarizeCmd.Flags().StringVar(&providerName, "provider", "openai", "AI provider: openai, anthropic, openrouter, google, zhipu, ollama, llamacpp, local_server, vllm, lmstudio, llamacpp_server")
	summarizeCmd.Flags().StringVar(&model, "model", "", "Model to use (provider-specific default if unset)")
	summarizeCmd.Flags().StringVar(&apiKey, "api-key", "", "API key (overrides stored/env credentials)")
	summarizeCmd.Flags().BoolVar(&showDetail, "detail", false, "Print each file's summary, not just statistics")
	_ = summarizeCmd.MarkFlagRequired("input")

	listCmd := &cobra.Command{
		Use:   "providers",
		Short: "List provider availability",
		RunE:  runListProviders,
	}

	rootCmd.AddCommand(summarizeCmd, listCmd)

	log.Setup()

	if err := rootCmd.Execute(); err != nil {
		ux.PrintError("%v", err)
		os.Exit(1)
	}
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg := config.LoadOrDefault()

	if providerName == "openai" && cfg.AI.Provider != "" {
		providerName = cfg.AI.Provider
	}
	if model == "" {
		model = cfg.AI.Model
	}

	ux.PrintHeader("codeconcat-ai summarize")

	providerCfg := cfg.AI.ToProviderConfig()
	providerCfg.Kind = ai.ProviderKind(providerName)
	if model != "" {
		providerCfg.Model = model
	}

	mgr := keys.NewManager(keys.StrategyEnvironment, "")
	if apiKey != "" {
		providerCfg.APIKey = apiKey
	} else if storedKey, ok := mgr.GetKey(providerName); ok {
		providerCfg.APIKey = storedKey
	}

	prov, err := factory.New(providerCfg)
	if err != nil {
		return fmt.Errorf("failed to construct provider %q: %w", providerName, err)
	}
	defer prov.Close()

	opts := processor.DefaultOptions()
	if cfg.AI.MaxConcurrent != 0 {
		opts.MaxConcurrent = cfg.AI.MaxConcurrent
	}
	if cfg.AI.MinFileLines != 0 {
		opts.MinFileLines = cfg.AI.MinFileLines
	}
	if cfg.AI.MaxContentChars != 0 {
		opts.MaxContentChars = cfg.AI.MaxContentChars
	}
	opts.ExcludeLanguages = cfg.AI.ExcludeLanguages
	opts.IncludeLanguages = cfg.AI.IncludeLanguages
	opts.ExcludePatterns = cfg.AI.ExcludePatterns
	opts.SummarizeFunctions = cfg.AI.SummarizeFunctions
	if cfg.AI.MaxFunctionsPerFile != 0 {
		opts.MaxFunctionsPerFile = cfg.AI.MaxFunctionsPerFile
	}
	if cfg.AI.MinFunctionLines != 0 {
		opts.MinFunctionLines = cfg.AI.MinFunctionLines
	}

	proc := processor.New(prov, opts)
	defer proc.Cleanup()

	spinner := ux.NewSpinner(fmt.Sprintf("Scanning %s...", inputPath))
	spinner.Start()
	files, err := loadFiles(inputPath)
	if err != nil {
		spinner.StopWithError("scan failed")
		return err
	}
	spinner.StopWithSuccess(fmt.Sprintf("found %d source files", len(files)))

	bar := ux.NewProgressBar(len(files), "Summarizing")
	ctx := context.Background()
	for _, f := range files {
		proc.ProcessFile(ctx, f)
		_ = bar.Add(1)
	}
	fmt.Println()

	if showDetail {
		ux.PrintSection("Summaries")
		for _, f := range files {
			if f.AISummary == "" {
				continue
			}
			fmt.Printf("%s: %s\n", ux.Bold(f.Path), f.AISummary)
		}
	}

	stats := proc.GetStatistics()
	ux.PrintSection("Statistics")
	ux.PrintInfo("files processed: %d", stats.FilesProcessed)
	ux.PrintInfo("files skipped: %d", stats.FilesSkipped)
	ux.PrintInfo("files failed: %d", stats.FilesFailed)
	ux.PrintInfo("functions summarized: %d", stats.FunctionsSummarized)
	ux.PrintInfo("tokens used: %d", stats.TotalTokensUsed)
	ux.PrintInfo("estimated cost: $%.4f", stats.TotalCost)

	return nil
}

func runListProviders(cmd *cobra.Command, args []string) error {
	ux.PrintHeader("provider availability")

	mgr := keys.NewManager(keys.StrategyEnvironment, "")
	reports := factory.ListAvailableProviders(context.Background(), mgr.GetKey)
	for _, r := range reports {
		if r.Available {
			ux.PrintSuccess("%-16s %s", r.Kind, r.Detail)
		} else {
			ux.PrintWarning("%-16s %s", r.Kind, r.Detail)
		}
	}
	return nil
}

// loadFiles walks inputPath, building a sourcefile.File for every
// recognized source extension. Declarations aren't populated here: that's
// the job of an upstream parser this subsystem plugs into, represented in
// this demonstration CLI by files with no declarations.
func loadFiles(root string) ([]*sourcefile.File, error) {
	var files []*sourcefile.File

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		lang, ok := extToLanguage[filepath.Ext(path)]
		if !ok {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		files = append(files, &sourcefile.File{
			Path:     rel,
			Language: lang,
			Content:  string(content),
		})
		return nil
	})

	return files, err
}
