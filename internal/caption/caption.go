// Package caption produces a short natural language caption for an image and derives tags from it.
package caption

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/kozaktomas/picscreenr/internal/config"
	"github.com/kozaktomas/picscreenr/internal/constants"
)

//go:embed prompts/caption.txt
var captionPrompt string

// Captioner describes an image in one sentence.
type Captioner interface {
	Name() string
	Caption(ctx context.Context, imageData []byte) (string, error)
}

// Nop returns an empty caption. It is used when no provider is configured.
type Nop struct{}

func (Nop) Name() string {
	return "none"
}

func (Nop) Caption(ctx context.Context, imageData []byte) (string, error) {
	return "", nil
}

// New returns the captioner selected by cfg.Caption.Provider.
func New(ctx context.Context, cfg *config.Config) (Captioner, error) {
	switch cfg.Caption.Provider {
	case "", "none":
		return Nop{}, nil
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, fmt.Errorf("OPENAI_TOKEN is required for the openai caption provider")
		}
		return NewOpenAICaptioner(cfg.OpenAI.Token), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini caption provider")
		}
		return NewGeminiCaptioner(ctx, cfg.Gemini.APIKey)
	case "ollama":
		return NewOllamaCaptioner(cfg.Ollama.URL, cfg.Ollama.Model), nil
	default:
		return nil, fmt.Errorf("unknown caption provider %q (expected openai, gemini, ollama or none)", cfg.Caption.Provider)
	}
}

// prepare downsizes the image the same way for every provider.
func prepare(imageData []byte) ([]byte, error) {
	resized, err := ResizeImage(imageData, constants.CaptionImageSize)
	if err != nil {
		return nil, fmt.Errorf("resize image: %w", err)
	}
	return resized, nil
}

// cleanCaption trims whitespace and wrapping quotes models tend to add.
func cleanCaption(s string) string {
	s = strings.TrimSpace(s)
	if first, _, ok := strings.Cut(s, "\n"); ok {
		s = strings.TrimSpace(first)
	}
	return strings.Trim(s, "\"'`")
}
