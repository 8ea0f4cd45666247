package caption

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const chatModel = openai.ChatModelGPT4_1Mini

type OpenAICaptioner struct {
	client *openai.Client
}

func NewOpenAICaptioner(apiKey string, opts ...option.RequestOption) *OpenAICaptioner {
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAICaptioner{client: &client}
}

func (p *OpenAICaptioner) Name() string {
	return chatModel
}

func (p *OpenAICaptioner) Caption(ctx context.Context, imageData []byte) (string, error) {
	resized, err := prepare(imageData)
	if err != nil {
		return "", err
	}
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(resized)

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(captionPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
							openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
								URL:    imageURL,
								Detail: "low",
							}),
						},
					},
				},
			},
		},
		MaxTokens: openai.Int(60),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return cleanCaption(resp.Choices[0].Message.Content), nil
}
