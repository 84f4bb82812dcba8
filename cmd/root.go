package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photo-tagger",
	Short: "A CLI tool for tagging photos with AI-generated metadata",
	Long: `Photo Tagger analyzes photos with AI models (OpenAI, Gemini, Ollama,
llama.cpp) and writes the generated titles, descriptions, keywords and
categories into the image files themselves as EXIF and XMP metadata.

It can run as a batch CLI over a directory of photos or as a web server
with upload, editing and export endpoints.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
