package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-tagger/internal/ai"
	"github.com/kozaktomas/photo-tagger/internal/config"
	"github.com/kozaktomas/photo-tagger/internal/constants"
	"github.com/kozaktomas/photo-tagger/internal/embedder"
	"github.com/kozaktomas/photo-tagger/internal/exif"
	"github.com/kozaktomas/photo-tagger/internal/tagger"
)

var tagCmd = &cobra.Command{
	Use:   "tag [directory]",
	Short: "Tag a directory of photos using AI",
	Long: `Analyze every photo in a directory with an AI model and write the
generated metadata into the photos. JPEGs get EXIF and XMP segments
embedded; PNGs are analyzed but written through unchanged.

Outputs go to a directory (--output) or a zip archive (--zip), with an
optional CSV manifest (--csv). A sidecar state file is written next to
the originals so the export command can re-export without re-running AI.`,
	Args: cobra.ExactArgs(1),
	RunE: runTag,
}

func init() {
	rootCmd.AddCommand(tagCmd)

	tagCmd.Flags().Bool("dry-run", false, "Analyze and report without writing anything")
	tagCmd.Flags().String("provider", "", "AI provider to use: openai, gemini, ollama, llamacpp (default from AI_PROVIDER)")
	tagCmd.Flags().Int("concurrency", constants.DefaultAnalyzeConcurrency, "Number of parallel analysis requests")
	tagCmd.Flags().String("output", "", "Directory to write tagged photos into")
	tagCmd.Flags().String("zip", "", "Write all tagged photos into this zip archive")
	tagCmd.Flags().String("csv", "", "Write a CSV metadata manifest to this path")
	tagCmd.Flags().Bool("keep-names", false, "Keep original filenames instead of title-derived names")
}

// newAIProvider builds the provider selected by name, falling back to the
// configured default when name is empty.
func newAIProvider(cfg *config.Config, name string) (ai.Provider, error) {
	if name == "" {
		name = cfg.AIProvider
	}

	switch name {
	case constants.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, errors.New("OPENAI_API_KEY environment variable is required")
		}
		pricing := cfg.GetModelPricing("gpt-4.1-mini")
		return ai.NewOpenAIProvider(cfg.OpenAI.APIKey,
			ai.RequestPricing{Input: pricing.Standard.Input, Output: pricing.Standard.Output},
		), nil
	case constants.ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable is required")
		}
		pricing := cfg.GetModelPricing("gemini-2.5-flash")
		provider, err := ai.NewGeminiProvider(context.Background(), cfg.Gemini.APIKey,
			ai.RequestPricing{Input: pricing.Standard.Input, Output: pricing.Standard.Output},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini provider: %w", err)
		}
		return provider, nil
	case constants.ProviderOllama:
		return ai.NewOllamaProvider(cfg.Ollama.URL, cfg.Ollama.Model), nil
	case constants.ProviderLlamaCpp:
		provider, err := ai.NewLlamaCppProvider(cfg.LlamaCpp.URL, cfg.LlamaCpp.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: openai, gemini, ollama, llamacpp)", name)
	}
}

func runTag(cmd *cobra.Command, args []string) error {
	dir := args[0]

	cfg := config.Load()

	dryRun := mustGetBool(cmd, "dry-run")
	providerName := mustGetString(cmd, "provider")
	concurrency := mustGetInt(cmd, "concurrency")
	outputDir := mustGetString(cmd, "output")
	zipPath := mustGetString(cmd, "zip")
	csvPath := mustGetString(cmd, "csv")
	keepNames := mustGetBool(cmd, "keep-names")

	if outputDir != "" && zipPath != "" {
		return errors.New("--output and --zip are mutually exclusive")
	}
	if !dryRun && outputDir == "" && zipPath == "" && csvPath == "" {
		return errors.New("specify --output, --zip or --csv (or use --dry-run)")
	}

	aiProvider, err := newAIProvider(cfg, providerName)
	if err != nil {
		return err
	}

	// Set up context with signal handling for graceful cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal...")
		cancel()
	}()

	fmt.Printf("Tagging photos in: %s\n", dir)
	fmt.Printf("Provider: %s\n", aiProvider.Name())
	if dryRun {
		fmt.Println("Mode: DRY RUN (no changes will be applied)")
	}
	fmt.Println()

	t := tagger.New(aiProvider, embedder.New(exif.Codec{}))
	result, err := t.Run(ctx, dir, tagger.Options{
		Concurrency: concurrency,
		DryRun:      dryRun,
		KeepNames:   keepNames,
		OutputDir:   outputDir,
		ZipPath:     zipPath,
		CSVPath:     csvPath,
		Categories:  cfg.Categories,
	})
	if err != nil {
		return fmt.Errorf("tagging failed: %w", err)
	}

	fmt.Printf("\nProcessed: %d photos\n", result.ProcessedCount)
	fmt.Printf("Tagged: %d photos\n", result.TaggedCount)
	if !dryRun {
		fmt.Printf("Written: %d photos\n", result.WrittenCount)
	}

	if usage := result.Usage; usage != nil && (usage.InputTokens > 0 || usage.OutputTokens > 0) {
		fmt.Printf("\nAPI Usage:\n")
		fmt.Printf("  Input tokens: %d\n", usage.InputTokens)
		fmt.Printf("  Output tokens: %d\n", usage.OutputTokens)
		fmt.Printf("  Total cost: $%.4f (%.2f CZK)\n", usage.TotalCost, usage.TotalCost*21)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors: %d\n", len(result.Errors))
		for _, err := range result.Errors {
			fmt.Printf("  - %v\n", err)
		}
	}

	if dryRun && len(result.Tagged) > 0 {
		fmt.Println("\nPhoto details:")
		for _, p := range result.Tagged {
			fmt.Printf("  %s:\n", p.File)
			fmt.Printf("    Title: %s\n", p.Analysis.Title)
			if p.Analysis.Category != "" {
				fmt.Printf("    Category: %s\n", p.Analysis.Category)
			}
			fmt.Printf("    Keywords: %d\n", len(p.Analysis.Keywords))
			if q := p.Analysis.Quality; q != nil {
				if len(q.Issues) > 0 {
					fmt.Printf("    Quality: %d/10 (%s)\n", q.Score, strings.Join(q.Issues, "; "))
				} else {
					fmt.Printf("    Quality: %d/10\n", q.Score)
				}
			}
			fmt.Printf("    Description: %s\n", p.Analysis.Description)
		}
	}

	return nil
}
