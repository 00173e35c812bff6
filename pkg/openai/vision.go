package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"vision-gateway/log"
)

// ChatWithImage sends prompt together with image as a data URL and returns
// the text of the first choice.
func (c *Client) ChatWithImage(ctx context.Context, model, prompt string, image []byte) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s",
		mimetype.Detect(image).String(), base64.StdEncoding.EncodeToString(image))

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		Temperature: 0.2,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.GetLogger().Error("[OpenAI] vision chat completion failed", zap.String("model", model), zap.Error(err))
		return "", fmt.Errorf("openai vision chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai vision chat: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
