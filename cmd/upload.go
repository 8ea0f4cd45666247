package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kozaktomas/picscreenr/internal/client"
	"github.com/kozaktomas/picscreenr/internal/constants"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <path> [path...]",
	Short: "Upload images to a running picscreenr server",
	Long: `Upload images to a picscreenr server and print the caption, tags and
persons found in each one.

Paths may be files or folders. Folders are read non-recursively unless -r is given.
Supported formats: jpg, jpeg, png, gif, bmp, webp

Example:
  picscreenr upload photo.jpg
  picscreenr upload -r --server http://photos.lan:8080 /path/to/photos`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolP("recursive", "r", false, "Search for images recursively in subdirectories")
	uploadCmd.Flags().String("server", constants.DefaultServerURL, "Base URL of the picscreenr server")
	uploadCmd.Flags().Int("concurrency", constants.DefaultUploadConcurrency, "Number of parallel uploads")
}

func runUpload(cmd *cobra.Command, args []string) error {
	files, err := collectImageFiles(args, mustGetBool(cmd, "recursive"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No image files found.")
		return nil
	}

	c, err := client.New(mustGetString(cmd, "server"))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("server at %s is not reachable: %w", c.URL, err)
	}

	fmt.Printf("Found %d image(s) to upload to %s\n\n", len(files), c.URL)

	reports := uploadFiles(ctx, c, files, mustGetInt(cmd, "concurrency"))
	if failed := printReports(os.Stdout, reports); failed > 0 {
		return fmt.Errorf("%d of %d upload(s) failed", failed, len(files))
	}
	return nil
}

// uploadFiles uploads files with bounded parallelism and returns reports in input order.
func uploadFiles(ctx context.Context, c *client.Client, files []string, concurrency int) []fileReport {
	reports := make([]fileReport, len(files))
	bar := newProgressBar(len(files), "Uploading")

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, max(1, concurrency))
	)
	for i, path := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			reports[i] = uploadFile(ctx, c, path)
			bar.Add(1)
		}()
	}
	wg.Wait()
	fmt.Println()
	fmt.Println()
	return reports
}

func uploadFile(ctx context.Context, c *client.Client, path string) fileReport {
	name := filepath.Base(path)
	res, err := c.UploadFile(ctx, path)
	if err != nil {
		return fileReport{Name: name, Err: err}
	}
	return fileReport{
		Name:    name,
		ImageID: res.ImageID,
		Caption: res.Caption,
		Tags:    res.Tags,
		Persons: res.Persons,
	}
}
