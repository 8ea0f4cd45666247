package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kozaktomas/picscreenr/internal/client"
	"github.com/kozaktomas/picscreenr/internal/config"
	"github.com/kozaktomas/picscreenr/internal/constants"
	"github.com/kozaktomas/picscreenr/internal/ingest"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path> [path...]",
	Short: "Ingest images directly into the registry",
	Long: `Run images through the full pipeline in-process, without a server:
store, caption, extract faces and clothing appearance, and resolve persons.

Paths may be files or folders. Folders are read non-recursively unless -r is given.

Example:
  picscreenr ingest photo.jpg
  picscreenr ingest -r /path/to/photos`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolP("recursive", "r", false, "Search for images recursively in subdirectories")
	ingestCmd.Flags().Int("concurrency", constants.DefaultUploadConcurrency, "Number of images processed in parallel")
}

func runIngest(cmd *cobra.Command, args []string) error {
	files, err := collectImageFiles(args, mustGetBool(cmd, "recursive"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No image files found.")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.Load()
	pool, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	pipeline, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("Found %d image(s) to ingest\n\n", len(files))

	reports := make([]fileReport, len(files))
	bar := newProgressBar(len(files), "Ingesting")

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, max(1, mustGetInt(cmd, "concurrency")))
	)
	for i, path := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			reports[i] = ingestFile(ctx, pipeline, path)
			bar.Add(1)
		}()
	}
	wg.Wait()
	fmt.Println()
	fmt.Println()

	if failed := printReports(os.Stdout, reports); failed > 0 {
		return fmt.Errorf("%d of %d image(s) failed", failed, len(files))
	}
	return nil
}

func ingestFile(ctx context.Context, pipeline *ingest.Pipeline, path string) fileReport {
	name := filepath.Base(path)
	f, err := os.Open(path) //nolint:gosec // user-provided file path
	if err != nil {
		return fileReport{Name: name, Err: err}
	}
	defer f.Close()

	res, err := pipeline.Ingest(ctx, name, f)
	if err != nil {
		return fileReport{Name: name, Err: err}
	}

	persons := make([]client.PersonLink, 0, len(res.Links))
	for _, l := range res.Links {
		persons = append(persons, client.PersonLink{
			PersonID:   l.PersonID,
			Confidence: l.Confidence,
			Source:     string(l.Source),
		})
	}
	return fileReport{
		Name:    name,
		ImageID: res.Image.ID,
		Caption: res.Image.Caption,
		Tags:    res.Image.Tags,
		Persons: persons,
	}
}
