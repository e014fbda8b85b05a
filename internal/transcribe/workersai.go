package transcribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go/v4"
	"github.com/cloudflare/cloudflare-go/v4/option"
)

// DefaultWorkersAIModel is the Whisper model served by Workers AI.
const DefaultWorkersAIModel = "@cf/openai/whisper-large-v3-turbo"

// WorkersAIConfig configures the Cloudflare Workers AI backend.
type WorkersAIConfig struct {
	AccountID string
	APIToken  string
	Model     string
	// BaseURL overrides the Cloudflare API root; used by tests.
	BaseURL string
	Timeout time.Duration
}

// WorkersAI runs Whisper on Cloudflare Workers AI. Audio is sent base64
// encoded in a JSON body.
type WorkersAI struct {
	client    *cloudflare.Client
	accountID string
	model     string
}

// NewWorkersAI creates the backend. The client never retries.
func NewWorkersAI(cfg WorkersAIConfig) *WorkersAI {
	if cfg.Model == "" {
		cfg.Model = DefaultWorkersAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.APIToken != "" {
		opts = append(opts, option.WithAPIToken(cfg.APIToken))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &WorkersAI{
		client:    cloudflare.NewClient(opts...),
		accountID: cfg.AccountID,
		model:     cfg.Model,
	}
}

type workersAIRequest struct {
	Audio string `json:"audio"`
}

type workersAIResponse struct {
	Result  json.RawMessage `json:"result"`
	Success bool            `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Transcribe implements Model.
func (w *WorkersAI) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	path := fmt.Sprintf("accounts/%s/ai/run/%s", w.accountID, w.model)
	req := workersAIRequest{Audio: base64.StdEncoding.EncodeToString(audio)}

	var raw []byte
	if err := w.client.Post(ctx, path, req, &raw); err != nil {
		var apiErr *cloudflare.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("workers ai: status %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("workers ai: %w", err)
	}

	var result workersAIResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		// Not the envelope we expected; normalize whatever came back.
		return NormalizeReply(raw), nil
	}

	if !result.Success && len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Message)
		}
		return "", errors.New("workers ai: " + strings.Join(msgs, "; "))
	}

	if len(result.Result) == 0 {
		return NormalizeReply(raw), nil
	}
	return NormalizeReply(result.Result), nil
}
