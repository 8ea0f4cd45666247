package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strings"
	"time"
)

const defaultEmbeddingURL = "http://localhost:8000"

// FaceClient detects faces using the embedding server
type FaceClient struct {
	baseURL string
	client  *http.Client
}

// NewFaceClient creates a new face embedding client
func NewFaceClient(baseURL string) *FaceClient {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &FaceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// faceDetection represents a single detected face
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse represents the response from the face embedding endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

const faceService = "face embedding server"

// ExtractFaces posts the image to /embed/face and returns the embeddings ordered by face index
func (c *FaceClient) ExtractFaces(ctx context.Context, data []byte) ([][]float32, error) {
	body, err := c.postImage(ctx, "/embed/face", data)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, failed(StageFaces, fmt.Errorf("parse response: %w", err))
	}

	slices.SortStableFunc(resp.Faces, func(a, b faceDetection) int {
		return a.FaceIndex - b.FaceIndex
	})

	out := make([][]float32, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Embedding) == 0 {
			return nil, failed(StageFaces, fmt.Errorf("face %d has an empty embedding", f.FaceIndex))
		}
		if len(out) > 0 && len(f.Embedding) != len(out[0]) {
			return nil, failed(StageFaces, fmt.Errorf("face %d has %d dims, expected %d",
				f.FaceIndex, len(f.Embedding), len(out[0])))
		}
		out = append(out, f.Embedding)
	}
	return out, nil
}

// postImage uploads data to endpoint. Transport failures and 5xx answers are UnavailableError.
// Any other non-200 answer means the server rejected the image and is an ExtractionError.
func (c *FaceClient) postImage(ctx context.Context, endpoint string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image"`)
	h.Set("Content-Type", http.DetectContentType(data))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, failed(StageFaces, fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(data); err != nil {
		return nil, failed(StageFaces, fmt.Errorf("write image data: %w", err))
	}
	if err := writer.Close(); err != nil {
		return nil, failed(StageFaces, fmt.Errorf("close multipart writer: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, &UnavailableError{Service: faceService, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UnavailableError{Service: faceService, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnavailableError{Service: faceService, Err: fmt.Errorf("read response: %w", err)}
	}
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &UnavailableError{Service: faceService, Err: fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))}
	case resp.StatusCode != http.StatusOK:
		return nil, failed(StageFaces, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body)))
	}
	return body, nil
}
