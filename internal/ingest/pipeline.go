// Package ingest runs one upload through the whole pipeline: normalise and store the image,
// caption it, extract signatures and resolve the persons it depicts.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/picscreenr/internal/caption"
	"github.com/kozaktomas/picscreenr/internal/config"
	"github.com/kozaktomas/picscreenr/internal/constants"
	"github.com/kozaktomas/picscreenr/internal/database"
	"github.com/kozaktomas/picscreenr/internal/extract"
	"github.com/kozaktomas/picscreenr/internal/logging"
	"github.com/kozaktomas/picscreenr/internal/notify"
	"github.com/kozaktomas/picscreenr/internal/resolver"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrTooLarge is returned when an upload exceeds the configured size limit.
var ErrTooLarge = errors.New("upload too large")

// Resolver is the part of resolver.Resolver the pipeline needs.
type Resolver interface {
	Resolve(ctx context.Context, img database.Image, features resolver.Features) (*resolver.Resolution, error)
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Captioner  caption.Captioner
	Faces      extract.FaceExtractor
	Appearance extract.AppearanceExtractor
	Resolver   Resolver
	Notifier   notify.Notifier
}

// Result is the outcome of one ingestion.
type Result struct {
	Image   database.Image
	Links   []database.PersonImage
	Created []database.Person
	Path    string // where the normalised image was stored
}

// Pipeline ingests uploads.
type Pipeline struct {
	uploadDir     string
	width, height int
	maxTags       int
	maxSize       int64
	deps          Deps
	log           *logrus.Entry
}

// New creates a pipeline storing images under cfg.UploadDir, which is created if missing.
func New(cfg config.IngestConfig, deps Deps) (*Pipeline, error) {
	if deps.Faces == nil || deps.Appearance == nil || deps.Resolver == nil {
		return nil, errors.New("ingest pipeline requires face and appearance extractors and a resolver")
	}
	if deps.Captioner == nil {
		deps.Captioner = caption.Nop{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if cfg.UploadDir == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	p := &Pipeline{
		uploadDir: cfg.UploadDir,
		width:     orDefault(cfg.Width, constants.NormalizedWidth),
		height:    orDefault(cfg.Height, constants.NormalizedHeight),
		maxTags:   orDefault(cfg.MaxTags, constants.DefaultMaxTags),
		maxSize:   cfg.MaxUploadSize,
		deps:      deps,
		log:       logging.Component("ingest"),
	}
	if p.maxSize <= 0 {
		p.maxSize = constants.MaxUploadSize
	}
	return p, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// WithLogger replaces the log entry.
func (p *Pipeline) WithLogger(entry *logrus.Entry) *Pipeline {
	p.log = entry
	return p
}

// UploadDir returns the directory stored images are served from.
func (p *Pipeline) UploadDir() string {
	return p.uploadDir
}

// Ingest stores and resolves one uploaded image. Extraction and captioning finish before
// the registry transaction starts.
func (p *Pipeline) Ingest(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	start := time.Now()

	data, err := io.ReadAll(io.LimitReader(r, p.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > p.maxSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, p.maxSize)
	}

	src, _, err := extract.Decode(data)
	if err != nil {
		return nil, err
	}

	name, encoded, err := p.normalise(src, SecureFilename(filename))
	if err != nil {
		return nil, err
	}
	path := filepath.Join(p.uploadDir, name)
	if err := writeFileAtomic(path, encoded); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	text, err := p.deps.Captioner.Caption(ctx, encoded)
	if err != nil {
		return nil, fmt.Errorf("caption image with %s: %w", p.deps.Captioner.Name(), err)
	}
	tags := caption.ExtractTags(text, p.maxTags)

	faces, err := p.deps.Faces.ExtractFaces(ctx, encoded)
	if err != nil {
		return nil, err
	}
	appearance, err := p.deps.Appearance.ExtractAppearance(ctx, encoded)
	if err != nil {
		return nil, err
	}

	res, err := p.deps.Resolver.Resolve(ctx, database.Image{
		Filename: name,
		Caption:  text,
		Tags:     tags,
	}, resolver.Features{Faces: faces, Appearance: appearance})
	if err != nil {
		return nil, err
	}

	if err := p.deps.Notifier.Publish(ctx, eventFor(res)); err != nil {
		p.log.WithError(err).WithField("image_id", res.Image.ID).Warn("Failed to publish identification event")
	}

	p.log.WithFields(logrus.Fields{
		"image_id": res.Image.ID,
		"filename": name,
		"faces":    len(faces),
		"links":    len(res.Links),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("Image ingested")

	return &Result{
		Image:   res.Image,
		Links:   res.Links,
		Created: res.Created,
		Path:    path,
	}, nil
}

// normalise resizes src to the fixed pipeline size and encodes it according to the
// extension of name. Names without a supported extension are stored as JPEG.
func (p *Pipeline) normalise(src image.Image, name string) (string, []byte, error) {
	dst := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		err = png.Encode(&buf, dst)
	case ".gif":
		err = gif.Encode(&buf, dst, nil)
	case ".bmp":
		err = bmp.Encode(&buf, dst)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: constants.JPEGQuality})
	default:
		name += ".jpg"
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: constants.JPEGQuality})
	}
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return name, buf.Bytes(), nil
}

// writeFileAtomic replaces path so concurrent readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func eventFor(res *resolver.Resolution) notify.Event {
	ev := notify.Event{
		ImageID:   res.Image.ID,
		Filename:  res.Image.Filename,
		Caption:   res.Image.Caption,
		Tags:      res.Image.Tags,
		Persons:   make([]notify.PersonLink, 0, len(res.Links)),
		Created:   make([]int64, 0, len(res.Created)),
		Timestamp: res.Image.CreatedAt,
	}
	for _, l := range res.Links {
		ev.Persons = append(ev.Persons, notify.PersonLink{
			PersonID:   l.PersonID,
			Confidence: l.Confidence,
			Source:     string(l.Source),
		})
	}
	for _, p := range res.Created {
		ev.Created = append(ev.Created, p.ID)
	}
	return ev
}
