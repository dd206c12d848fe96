package llm

import (
	"bytes"
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

const defaultChatModel = "gpt-4o-mini"

// OpenAIClient calls the OpenAI API for chat, images and transcription
type OpenAIClient struct {
	client    *openai.Client
	chatModel string
}

// NewOpenAIClient creates an OpenAI-backed client. An empty model falls
// back to gpt-4o-mini.
func NewOpenAIClient(apiKey, chatModel string) *OpenAIClient {
	if chatModel == "" {
		chatModel = defaultChatModel
	}
	return &OpenAIClient{
		client:    openai.NewClient(apiKey),
		chatModel: chatModel,
	}
}

// Complete sends the messages to the chat completion API
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	creq := openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", upstream("complete", err)
	}
	if len(resp.Choices) == 0 {
		return "", upstream("complete", errors.New("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage renders a 1024x1024 dall-e-3 image and returns its URL
func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          openai.CreateImageModelDallE3,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", upstream("image", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", upstream("image", errors.New("no image returned"))
	}
	return resp.Data[0].URL, nil
}

// Transcribe runs whisper-1 on French audio
func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "audio.webm"
	}
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Language: "fr",
	})
	if err != nil {
		return "", upstream("transcribe", err)
	}
	return resp.Text, nil
}
