package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kozaktomas/picscreenr/internal/client"
	"github.com/kozaktomas/picscreenr/internal/config"
	"github.com/kozaktomas/picscreenr/internal/database"
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <image-id>",
	Short: "Print the caption and tags of an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery("image", describeFromDB, (*client.Client).Description),
}

var identifyCmd = &cobra.Command{
	Use:   "identify <image-id>",
	Short: "Print the persons linked to an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery("image", identifyFromDB, (*client.Client).Identify),
}

var personCmd = &cobra.Command{
	Use:   "person <person-id>",
	Short: "Print a person and the images they appear in",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery("person", personFromDB, (*client.Client).Person),
}

func init() {
	for _, c := range []*cobra.Command{describeCmd, identifyCmd, personCmd} {
		c.Flags().String("server", "", "Query a running server instead of the database")
		rootCmd.AddCommand(c)
	}
}

// runQuery builds a RunE that answers from the database, or from a server when --server is set.
// Both paths print the same JSON the HTTP API returns.
func runQuery[T any](
	kind string,
	fromDB func(ctx context.Context, reader database.ImageReader, id int64) (*T, error),
	fromServer func(c *client.Client, ctx context.Context, id int64) (*T, error),
) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseIDArg(kind, args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		var result *T
		if server := mustGetString(cmd, "server"); server != "" {
			c, err := client.New(server)
			if err != nil {
				return err
			}
			result, err = fromServer(c, ctx, id)
			if client.IsNotFound(err) {
				return fmt.Errorf("%s %d not found", kind, id)
			}
			if err != nil {
				return err
			}
		} else {
			reader, closeDB, err := openReader(ctx)
			if err != nil {
				return err
			}
			defer closeDB()
			result, err = fromDB(ctx, reader, id)
			if err != nil {
				return err
			}
		}
		return printJSON(os.Stdout, result)
	}
}

func openReader(ctx context.Context) (database.ImageReader, func(), error) {
	cfg := config.Load()
	pool, err := connectDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	reader, err := database.GetImageReader(ctx)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return reader, func() { pool.Close() }, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func describeFromDB(ctx context.Context, reader database.ImageReader, id int64) (*client.Description, error) {
	img, err := reader.GetImage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get image %d: %w", id, err)
	}
	tags := img.Tags
	if tags == nil {
		tags = []string{}
	}
	return &client.Description{Caption: img.Caption, Tags: tags}, nil
}

func identifyFromDB(ctx context.Context, reader database.ImageReader, id int64) (*client.Identification, error) {
	links, err := reader.ListLinksForImage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list persons of image %d: %w", id, err)
	}
	out := &client.Identification{Persons: make([]client.PersonLink, 0, len(links))}
	for _, l := range links {
		out.Persons = append(out.Persons, client.PersonLink{
			PersonID:   l.PersonID,
			Confidence: l.Confidence,
			Source:     string(l.Source),
		})
	}
	return out, nil
}

func personFromDB(ctx context.Context, reader database.ImageReader, id int64) (*client.Person, error) {
	p, err := reader.GetPerson(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get person %d: %w", id, err)
	}
	links, err := reader.ListLinksForPerson(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list images of person %d: %w", id, err)
	}
	out := &client.Person{
		ID:            p.ID,
		HasFace:       p.HasFace(),
		HasAppearance: p.HasAppearance(),
		Images:        make([]client.PersonImage, 0, len(links)),
	}
	for _, l := range links {
		out.Images = append(out.Images, client.PersonImage{
			ImageID:    l.ImageID,
			Confidence: l.Confidence,
			Source:     string(l.Source),
		})
	}
	return out, nil
}
