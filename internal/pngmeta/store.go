package pngmeta

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/kozaktomas/picscreenr/internal/constants"
)

// Metadata is what gets stored for one image.
type Metadata struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Store keeps metadata in a JSON index keyed by absolute image path and in the PNG itself.
type Store struct {
	mu        sync.Mutex
	indexPath string
	keyword   string
}

// NewStore creates a store backed by the index file at indexPath.
func NewStore(indexPath string) *Store {
	if indexPath == "" {
		indexPath = constants.DefaultMetadataIndex
	}
	return &Store{indexPath: indexPath, keyword: constants.MetadataKeyword}
}

// Add records metadata for the image in the index and, unless it is empty, in the PNG.
func (s *Store) Add(imagePath, description string, tags []string) error {
	abs, err := filepath.Abs(imagePath)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", imagePath, err)
	}
	if tags == nil {
		tags = []string{}
	}
	meta := Metadata{Description: description, Tags: tags}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.load()
	if err != nil {
		return err
	}
	index[abs] = meta
	if err := s.save(index); err != nil {
		return err
	}

	if description == "" && len(tags) == 0 {
		return nil
	}
	return s.embed(imagePath, meta)
}

func (s *Store) embed(imagePath string, meta Metadata) error {
	info, err := os.Stat(imagePath)
	if err != nil {
		return fmt.Errorf("stat image: %w", err)
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	text, err := marshalASCII(meta)
	if err != nil {
		return err
	}
	updated, err := WriteText(data, s.keyword, text)
	if err != nil {
		return fmt.Errorf("write metadata to %s: %w", imagePath, err)
	}
	if err := os.WriteFile(imagePath, updated, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

// Get returns the metadata of an image from the index, falling back to the PNG chunk.
// It returns nil when neither has any.
func (s *Store) Get(imagePath string) (*Metadata, error) {
	abs, err := filepath.Abs(imagePath)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", imagePath, err)
	}

	s.mu.Lock()
	index, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if meta, ok := index[abs]; ok {
		return &meta, nil
	}

	// An unreadable or foreign file simply has no metadata.
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, nil
	}
	text, ok, err := ReadText(data, s.keyword)
	if err != nil || !ok || text == "" {
		return nil, nil
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(text), &meta); err != nil {
		return nil, nil
	}
	return &meta, nil
}

func (s *Store) load() (map[string]Metadata, error) {
	data, err := os.ReadFile(s.indexPath)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Metadata{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata index: %w", err)
	}
	index := map[string]Metadata{}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse metadata index %s: %w", s.indexPath, err)
	}
	return index, nil
}

func (s *Store) save(index map[string]Metadata) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata index: %w", err)
	}
	if err := os.WriteFile(s.indexPath, data, 0o644); err != nil {
		return fmt.Errorf("write metadata index: %w", err)
	}
	return nil
}

// marshalASCII encodes v as JSON with every non-ASCII character escaped, so the
// result fits a Latin-1 tEXt chunk unchanged.
func marshalASCII(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	var b strings.Builder
	for _, r := range string(data) {
		switch {
		case r < 0x80:
			b.WriteRune(r)
		case r > 0xFFFF:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%04x\u%04x`, hi, lo)
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	return b.String(), nil
}
