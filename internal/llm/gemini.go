// Package llm talks to the hosted Gemini models used for transaction
// extraction and voice transcription.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-bot/internal/metrics"
	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model for both calls.
const DefaultModelName = "gemini-2.5-flash"

const transcribeInstruction = "Transcribe the attached voice message verbatim, in its original language.\n" +
	"Return ONLY the transcript text. No quotes, no commentary, no Markdown."

// Config configures the Gemini client.
type Config struct {
	// APIKey selects the Gemini Developer API. When empty the client falls
	// back to the GOOGLE_* environment (Vertex AI or GOOGLE_API_KEY).
	APIKey          string
	Model           string
	TranscribeModel string
	Temperature     float32
	// BaseURL overrides the API endpoint, for proxies and tests.
	BaseURL string
}

// Gemini implements text generation and audio transcription on top of genai.
type Gemini struct {
	client          *genai.Client
	model           string
	transcribeModel string
	temperature     float32
}

// NewGemini creates a client.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	cc := &genai.ClientConfig{}
	if cfg.APIKey != "" {
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModelName
	}
	transcribeModel := cfg.TranscribeModel
	if transcribeModel == "" {
		transcribeModel = model
	}

	return &Gemini{
		client:          client,
		model:           model,
		transcribeModel: transcribeModel,
		temperature:     cfg.Temperature,
	}, nil
}

// Generate sends the instruction as system prompt and userText as the user
// turn, asking for a JSON response. It returns the raw reply text.
func (g *Gemini) Generate(ctx context.Context, instruction, userText string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.ModelDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	}()

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		ResponseMIMEType:  "application/json",
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(userText), config)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return "", fmt.Errorf("Generate: empty response from model")
	}
	return raw, nil
}

// Transcribe sends audio as inline data and returns the model's transcript.
func (g *Gemini) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.ModelDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())
	}()

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: transcribeInstruction},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     audio,
					},
				},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.transcribeModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Transcribe: generate content: %w", err)
	}

	return strings.TrimSpace(resp.Text()), nil
}
