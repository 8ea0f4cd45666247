package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/picscreenr/internal/config"
	"github.com/kozaktomas/picscreenr/internal/constants"
	"github.com/kozaktomas/picscreenr/internal/database"
	"github.com/kozaktomas/picscreenr/internal/ingest"
	"github.com/kozaktomas/picscreenr/internal/logging"
	"github.com/sirupsen/logrus"
)

// multipartOverhead is the slack allowed on top of the file size for multipart framing.
const multipartOverhead = 1 << 20

// Ingester runs one upload through the pipeline.
type Ingester interface {
	Ingest(ctx context.Context, filename string, r io.Reader) (*ingest.Result, error)
}

// ImagesHandler handles upload and image query endpoints.
type ImagesHandler struct {
	ingester  Ingester
	reader    database.ImageReader
	uploadDir string
	maxSize   int64
	log       *logrus.Entry
}

// NewImagesHandler creates a new images handler.
func NewImagesHandler(cfg *config.Config, ingester Ingester, reader database.ImageReader) *ImagesHandler {
	maxSize := cfg.Ingest.MaxUploadSize
	if maxSize <= 0 {
		maxSize = constants.MaxUploadSize
	}
	return &ImagesHandler{
		ingester:  ingester,
		reader:    reader,
		uploadDir: cfg.Ingest.UploadDir,
		maxSize:   maxSize,
		log:       logging.Component("web"),
	}
}

// PersonLinkResponse is one person found in an image.
type PersonLinkResponse struct {
	PersonID   int64   `json:"person_id"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// UploadResponse is returned by POST /upload_image.
type UploadResponse struct {
	ImageID int64                `json:"image_id"`
	Caption string               `json:"caption"`
	Tags    []string             `json:"tags"`
	Persons []PersonLinkResponse `json:"persons"`
}

// DescriptionResponse is returned by GET /description/{id}.
type DescriptionResponse struct {
	Caption string   `json:"caption"`
	Tags    []string `json:"tags"`
}

// IdentifyResponse is returned by GET /identify/{id}.
type IdentifyResponse struct {
	Persons []PersonLinkResponse `json:"persons"`
}

func linkResponses(links []database.PersonImage) []PersonLinkResponse {
	out := make([]PersonLinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, PersonLinkResponse{
			PersonID:   l.PersonID,
			Confidence: l.Confidence,
			Source:     string(l.Source),
		})
	}
	return out
}

// Upload accepts a multipart image in the "file" field and ingests it.
func (h *ImagesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		respondError(w, http.StatusBadRequest, errNoFile)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(constants.UploadFormField)
	if err != nil || header.Filename == "" {
		respondError(w, http.StatusBadRequest, errNoFile)
		return
	}
	defer file.Close()

	res, err := h.ingester.Ingest(r.Context(), header.Filename, file)
	if err != nil {
		status, msg := statusFor(err)
		h.log.WithError(err).WithFields(logrus.Fields{
			"filename": sanitizeForLog(header.Filename),
			"status":   status,
		}).Error("Upload failed")
		respondError(w, status, msg)
		return
	}

	respondJSON(w, http.StatusOK, UploadResponse{
		ImageID: res.Image.ID,
		Caption: res.Image.Caption,
		Tags:    nonNil(res.Image.Tags),
		Persons: linkResponses(res.Links),
	})
}

// Description returns the caption and tags of an image.
func (h *ImagesHandler) Description(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, errImageNotFound)
		return
	}

	img, err := h.reader.GetImage(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, errImageNotFound)
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("image_id", id).Error("Failed to load image")
		respondError(w, http.StatusInternalServerError, "failed to load image")
		return
	}

	respondJSON(w, http.StatusOK, DescriptionResponse{
		Caption: img.Caption,
		Tags:    nonNil(img.Tags),
	})
}

// Identify lists the persons linked to an image in link creation order.
// An unknown image has no links and yields an empty list.
func (h *ImagesHandler) Identify(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, errImageNotFound)
		return
	}

	links, err := h.reader.ListLinksForImage(r.Context(), id)
	if err != nil {
		h.log.WithError(err).WithField("image_id", id).Error("Failed to list links")
		respondError(w, http.StatusInternalServerError, "failed to list persons")
		return
	}

	respondJSON(w, http.StatusOK, IdentifyResponse{Persons: linkResponses(links)})
}

// ServeUpload serves a stored image from the upload directory.
func (h *ImagesHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}

	f, err := os.Open(filepath.Join(h.uploadDir, name))
	if err != nil {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}

	http.ServeContent(w, r, name, stat.ModTime(), f)
}
