// Package tagger drives the batch CLI flow: scan a directory of photos,
// analyze them with bounded concurrency, then embed metadata and write
// the outputs sequentially.
package tagger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/photo-tagger/internal/ai"
	"github.com/kozaktomas/photo-tagger/internal/constants"
	"github.com/kozaktomas/photo-tagger/internal/embedder"
	"github.com/kozaktomas/photo-tagger/internal/export"
)

type Tagger struct {
	provider ai.Provider
	embedder *embedder.Embedder
}

// Options control a batch tagging run.
type Options struct {
	Concurrency int      // parallel analysis requests
	DryRun      bool     // analyze and report, write nothing
	KeepNames   bool     // keep original filenames instead of title slugs
	OutputDir   string   // write embedded photos into this directory
	ZipPath     string   // write all embedded photos into one zip archive
	CSVPath     string   // write the metadata manifest here
	Categories  []string // allowed category values for the provider
}

// Result summarizes a batch tagging run.
type Result struct {
	ProcessedCount int
	TaggedCount    int
	WrittenCount   int
	Tagged         []StatePhoto // successfully analyzed photos with their metadata
	Errors         []error
	Usage          *ai.Usage
}

func New(provider ai.Provider, emb *embedder.Embedder) *Tagger {
	return &Tagger{
		provider: provider,
		embedder: emb,
	}
}

// photoFile is one scanned file queued for analysis.
type photoFile struct {
	Name string
	Path string
	MIME string
}

// mimeForExt maps a photo file extension onto its MIME type, empty for
// anything the tagger does not handle.
func mimeForExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return ""
	}
}

// scanDir lists the photos in a directory, non-recursively, in name
// order. Hidden files and the sidecar state file are skipped.
func scanDir(dir string) ([]photoFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var photos []photoFile
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		mime := mimeForExt(entry.Name())
		if mime == "" {
			continue
		}
		photos = append(photos, photoFile{
			Name: entry.Name(),
			Path: filepath.Join(dir, entry.Name()),
			MIME: mime,
		})
	}
	return photos, nil
}

// analyzeResult holds the outcome of analyzing a single photo
type analyzeResult struct {
	index    int
	analysis *ai.PhotoAnalysis
	err      error
}

// Run tags every photo in dir. Analysis runs concurrently up to the
// configured worker count; embedding and writing happen afterwards,
// strictly one photo at a time. Per-photo failures are collected in the
// result, only setup failures abort the run.
func (t *Tagger) Run(ctx context.Context, dir string, opts Options) (*Result, error) {
	photos, err := scanDir(dir)
	if err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return nil, errors.New("no photos found")
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = constants.DefaultAnalyzeConcurrency
	}

	result := &Result{ProcessedCount: len(photos)}

	bar := progressbar.NewOptions(len(photos),
		progressbar.OptionSetDescription(fmt.Sprintf("Analyzing photos (%d workers)", concurrency)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	resultsChan := make(chan analyzeResult, len(photos))
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range photos {
		wg.Add(1)
		go func(idx int, p photoFile) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				resultsChan <- analyzeResult{index: idx, err: ctx.Err()}
				bar.Add(1)
				return
			}

			data, err := os.ReadFile(p.Path)
			if err != nil {
				resultsChan <- analyzeResult{index: idx, err: fmt.Errorf("failed to read %s: %w", p.Name, err)}
				bar.Add(1)
				return
			}

			analysis, err := t.provider.AnalyzePhoto(ctx, data, ai.AnalyzeOptions{
				Categories:   opts.Categories,
				OriginalName: p.Name,
			})
			if err != nil {
				resultsChan <- analyzeResult{index: idx, err: fmt.Errorf("failed to analyze %s: %w", p.Name, err)}
				bar.Add(1)
				return
			}

			resultsChan <- analyzeResult{index: idx, analysis: analysis}
			bar.Add(1)
		}(i, photos[i])
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// Collect results maintaining scan order
	analyses := make([]*ai.PhotoAnalysis, len(photos))
	for r := range resultsChan {
		if r.err != nil {
			result.Errors = append(result.Errors, r.err)
			continue
		}
		analyses[r.index] = r.analysis
	}
	fmt.Println() // New line after progress bar

	state := &State{Version: StateVersion, Provider: t.provider.Name()}
	for i, p := range photos {
		if analyses[i] == nil {
			continue
		}
		result.TaggedCount++
		state.Photos = append(state.Photos, StatePhoto{
			File:     p.Name,
			MIME:     p.MIME,
			Analysis: *analyses[i],
		})
	}
	result.Tagged = state.Photos
	result.Usage = t.provider.GetUsage()

	if result.TaggedCount == 0 {
		return result, errors.New("no photos were tagged")
	}

	if opts.DryRun {
		return result, nil
	}

	if err := state.Save(dir); err != nil {
		result.Errors = append(result.Errors, err)
	}

	written, err := t.write(dir, state, opts)
	result.WrittenCount = written
	if err != nil {
		return result, err
	}
	return result, nil
}

// write produces the configured outputs from a tagged state. The zip
// archive and the output directory are written one photo at a time, each
// photo's bytes are re-read from disk at its turn.
func (t *Tagger) write(dir string, state *State, opts Options) (int, error) {
	items := state.Items(dir)
	exportOpts := export.Options{KeepOriginalNames: opts.KeepNames}
	written := 0

	switch {
	case opts.ZipPath != "":
		f, err := os.Create(opts.ZipPath)
		if err != nil {
			return 0, fmt.Errorf("failed to create archive %s: %w", opts.ZipPath, err)
		}
		res, err := export.BuildArchive(f, items, t.embedder, exportOpts)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return 0, fmt.Errorf("failed to build archive: %w", err)
		}
		written = res.Written

	case opts.OutputDir != "":
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create output directory: %w", err)
		}
		for _, item := range items {
			name, data, err := export.Single(item, t.embedder, opts.KeepNames)
			if err != nil {
				return written, err
			}
			if err := os.WriteFile(filepath.Join(opts.OutputDir, name), data, 0o644); err != nil {
				return written, fmt.Errorf("failed to write %s: %w", name, err)
			}
			written++
		}
	}

	if opts.CSVPath != "" {
		f, err := os.Create(opts.CSVPath)
		if err != nil {
			return written, fmt.Errorf("failed to create manifest %s: %w", opts.CSVPath, err)
		}
		err = export.WriteCSV(f, items, exportOpts)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return written, fmt.Errorf("failed to write manifest: %w", err)
		}
	}

	return written, nil
}
