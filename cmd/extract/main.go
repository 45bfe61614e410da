package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docchat_go_backend/internal/models"
	"docchat_go_backend/internal/services"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// extract runs the upload processor over local PDF/CSV files and writes the
// extracted text next to them, or into -out.
func main() {
	outDir := flag.String("out", "", "directory for extracted text (default: alongside each input)")
	timeout := flag.Duration("timeout", time.Minute, "per-file processing timeout")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: extract [-out dir] file.pdf|file.csv ...")
		os.Exit(2)
	}
	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", *outDir).Msg("failed to create output directory")
		}
	}

	processor := services.NewFileProcessor()
	failed := 0
	for _, path := range flag.Args() {
		if err := extract(processor, path, *outDir, *timeout); err != nil {
			log.Error().Err(err).Str("file", path).Msg("extraction failed")
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func extract(processor *services.FileProcessor, path, outDir string, timeout time.Duration) error {
	fileType := services.ClassifyFileType("", path)
	if fileType == models.FileTypeOther {
		return fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	result, err := processor.Process(ctx, raw, fileType)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if outDir != "" {
		dir = outDir
	}
	outputFile := filepath.Join(dir, filepath.Base(path)+".txt")
	if err := os.WriteFile(outputFile, []byte(result.Text), 0o644); err != nil {
		return err
	}

	event := log.Info().
		Str("file", path).
		Str("output", outputFile).
		Str("language", result.Metadata.Language)
	if result.Metadata.Pages != nil {
		event = event.Int("pages", *result.Metadata.Pages)
	}
	if result.Metadata.Rows != nil {
		event = event.Int("rows", *result.Metadata.Rows)
	}
	event.Msg("extracted")
	return nil
}
