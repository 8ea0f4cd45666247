package caption

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

type GeminiCaptioner struct {
	client *genai.Client
}

func NewGeminiCaptioner(ctx context.Context, apiKey string) (*GeminiCaptioner, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiCaptioner{client: client}, nil
}

func (p *GeminiCaptioner) Name() string {
	return geminiModel
}

func (p *GeminiCaptioner) Caption(ctx context.Context, imageData []byte) (string, error) {
	resized, err := prepare(imageData)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: captionPrompt},
				{InlineData: &genai.Blob{Data: resized, MIMEType: "image/jpeg"}},
			},
		},
	}

	result, err := p.client.Models.GenerateContent(ctx, geminiModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	content := result.Text()
	if content == "" {
		return "", errors.New("no response from Gemini")
	}
	return cleanCaption(content), nil
}
