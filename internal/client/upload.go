package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kozaktomas/picscreenr/internal/constants"
)

// UploadFile posts one image to /upload_image.
func (c *Client) UploadFile(ctx context.Context, filePath string) (*UploadResult, error) {
	file, err := os.Open(filePath) //nolint:gosec // user-provided file path for upload
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(constants.UploadFormField, filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("could not create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("could not copy file data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("could not close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolveURL("upload_image"), &body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return doJSON[UploadResult](c, req)
}

// Description fetches the caption and tags of an image.
func (c *Client) Description(ctx context.Context, imageID int64) (*Description, error) {
	return doGetJSON[Description](ctx, c, "description", strconv.FormatInt(imageID, 10))
}

// Identify fetches the persons linked to an image.
func (c *Client) Identify(ctx context.Context, imageID int64) (*Identification, error) {
	return doGetJSON[Identification](ctx, c, "identify", strconv.FormatInt(imageID, 10))
}

// Person fetches one person and the images they appear in.
func (c *Client) Person(ctx context.Context, personID int64) (*Person, error) {
	return doGetJSON[Person](ctx, c, "persons", strconv.FormatInt(personID, 10))
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	_, err := doGetJSON[map[string]string](ctx, c, "api", "v1", "health")
	return err
}
