package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient calls the Gemini API. Image generation is not available.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient connects to Gemini with an API key
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Complete replays the conversation as chat history and sends the last message
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	system, history, last := geminiTurns(req.Messages)
	if last == "" {
		return "", upstream("complete", errors.New("empty request"))
	}

	model := c.client.GenerativeModel(c.model)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", upstream("complete", err)
	}
	return responseText("complete", resp)
}

// geminiTurns maps messages onto a system instruction, chat history and the
// message to send. Gemini needs a user turn, so a request made only of system
// messages is sent as that turn with no system instruction.
func geminiTurns(messages []Message) (system string, history []*genai.Content, last string) {
	system, convo := splitSystem(messages)
	if len(convo) == 0 {
		return "", nil, system
	}

	for _, m := range convo[:len(convo)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return system, history, convo[len(convo)-1].Content
}

func (c *GeminiClient) GenerateImage(context.Context, string) (string, error) {
	return "", upstream("image", ErrUnsupported)
}

// Transcribe sends the audio inline and asks for a verbatim French transcript
func (c *GeminiClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: audioMIME(filename), Data: audio},
		genai.Text("Transcris mot pour mot cet enregistrement en français. Réponds uniquement avec la transcription."),
	)
	if err != nil {
		return "", upstream("transcribe", err)
	}
	return responseText("transcribe", resp)
}

func responseText(op string, resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", upstream(op, errors.New("no content returned from Gemini"))
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", upstream(op, errors.New("unexpected response type from Gemini"))
	}
	return sb.String(), nil
}

func audioMIME(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".mp3"):
		return "audio/mp3"
	case strings.HasSuffix(filename, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(filename, ".ogg"):
		return "audio/ogg"
	default:
		return "audio/webm"
	}
}
