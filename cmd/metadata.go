package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/kozaktomas/picscreenr/internal/config"
	"github.com/kozaktomas/picscreenr/internal/pngmeta"
	"github.com/spf13/cobra"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Read and write image descriptions stored in PNG files",
	Long: `Store a description and tags for an image, both in a JSON index file and
inside PNG images as a "picscreenr" tEXt chunk. Reading checks the index first
and falls back to the chunk, so images keep their metadata when moved.`,
}

const metadataAddExample = `  picscreenr metadata add photo.png --description "Beach at dusk" --tags beach,sunset
  picscreenr metadata add photo.png --tags "family, holiday"`

var metadataAddCmd = &cobra.Command{
	Use:     "add <image>",
	Short:   "Attach a description and tags to an image",
	Example: metadataAddExample,
	Args:    cobra.ExactArgs(1),
	RunE:    runMetadataAdd,
}

var metadataGetCmd = &cobra.Command{
	Use:   "get <image>",
	Short: "Print the description and tags of an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetadataGet,
}

func init() {
	rootCmd.AddCommand(metadataCmd)
	metadataCmd.AddCommand(metadataAddCmd, metadataGetCmd)

	metadataCmd.PersistentFlags().String("index", "", "Path of the JSON index (overrides METADATA_INDEX)")
	metadataAddCmd.Flags().StringP("description", "d", "", "Description text")
	metadataAddCmd.Flags().StringSliceP("tags", "t", nil, "Comma-separated tags")
}

func metadataStore(cmd *cobra.Command) *pngmeta.Store {
	index := mustGetString(cmd, "index")
	if index == "" {
		index = config.Load().Metadata.IndexPath
	}
	return pngmeta.NewStore(index)
}

// cleanTags trims tags and drops empty ones.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func runMetadataAdd(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}

	desc := mustGetString(cmd, "description")
	tags := cleanTags(mustGetStringSlice(cmd, "tags"))
	if err := metadataStore(cmd).Add(path, desc, tags); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}

	fmt.Printf("Metadata saved for %s\n", path)
	return nil
}

func runMetadataGet(cmd *cobra.Command, args []string) error {
	meta, err := metadataStore(cmd).Get(args[0])
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	if meta == nil {
		fmt.Printf("No metadata found for %s\n", args[0])
		return nil
	}
	return printJSON(os.Stdout, meta)
}
