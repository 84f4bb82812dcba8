package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-tagger/internal/embedder"
	"github.com/kozaktomas/photo-tagger/internal/exif"
	"github.com/kozaktomas/photo-tagger/internal/export"
	"github.com/kozaktomas/photo-tagger/internal/tagger"
)

var exportCmd = &cobra.Command{
	Use:   "export [directory]",
	Short: "Re-export previously tagged photos",
	Long: `Rebuild a zip archive or CSV manifest from a directory that was
already tagged, without calling any AI provider. The metadata comes from
the sidecar state file the tag command leaves next to the photos.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("zip", "", "Write all tagged photos into this zip archive")
	exportCmd.Flags().String("csv", "", "Write a CSV metadata manifest to this path")
	exportCmd.Flags().Bool("keep-names", false, "Keep original filenames instead of title-derived names")
}

func runExport(cmd *cobra.Command, args []string) error {
	dir := args[0]

	zipPath := mustGetString(cmd, "zip")
	csvPath := mustGetString(cmd, "csv")
	keepNames := mustGetBool(cmd, "keep-names")

	if zipPath == "" && csvPath == "" {
		return errors.New("specify --zip or --csv")
	}

	state, err := tagger.LoadState(dir)
	if err != nil {
		return err
	}
	if len(state.Photos) == 0 {
		return fmt.Errorf("state file in %s holds no tagged photos", dir)
	}

	fmt.Printf("Exporting %d tagged photos from %s\n", len(state.Photos), dir)
	if state.Provider != "" {
		fmt.Printf("Tagged by: %s at %s\n", state.Provider, state.TaggedAt.Format("2006-01-02 15:04"))
	}

	items := state.Items(dir)
	opts := export.Options{KeepOriginalNames: keepNames}
	emb := embedder.New(exif.Codec{})

	if zipPath != "" {
		f, err := os.Create(zipPath)
		if err != nil {
			return fmt.Errorf("failed to create archive %s: %w", zipPath, err)
		}
		res, err := export.BuildArchive(f, items, emb, opts)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("failed to build archive: %w", err)
		}
		fmt.Printf("Archive written: %s (%d photos", zipPath, res.Written)
		if len(res.Skipped) > 0 {
			fmt.Printf(", %d skipped", len(res.Skipped))
		}
		fmt.Println(")")
	}

	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("failed to create manifest %s: %w", csvPath, err)
		}
		err = export.WriteCSV(f, items, opts)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}
		fmt.Printf("Manifest written: %s\n", csvPath)
	}

	return nil
}
