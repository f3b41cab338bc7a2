package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"skills-backend/internal/llm"
	"skills-backend/internal/shared/telemetry"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	maxTokens      = 500
)

// ErrUpstream wraps non-2xx answers and transport failures.
var ErrUpstream = errors.New("openai upstream error")

// Client implements llm.SkillExtractor using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client. Timeouts come from the caller's context.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *Client) ExtractSkills(ctx context.Context, text string) (llm.Result, error) {
	if strings.TrimSpace(text) == "" {
		return llm.Result{}, llm.ErrEmptyInput
	}
	content, err := c.complete(ctx, llm.BuildPrompt(text))
	if err != nil {
		return llm.Result{}, err
	}
	result, err := llm.ParseResponse(content)
	if err != nil {
		telemetry.Warn("llm.response.malformed", map[string]any{"model": c.model, "chars": len(content)})
		return llm.Result{}, err
	}
	return result, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("openai request timeout: %w", err)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: status %d: parse: %v", ErrUpstream, resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s (%s)", ErrUpstream, parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response missing choices", ErrUpstream)
	}

	fields := map[string]any{"model": c.model}
	if parsed.Usage != nil {
		fields["prompt_tokens"] = parsed.Usage.PromptTokens
		fields["completion_tokens"] = parsed.Usage.CompletionTokens
		fields["total_tokens"] = parsed.Usage.TotalTokens
	}
	telemetry.Debug("llm.response", fields)

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

var _ llm.SkillExtractor = (*Client)(nil)
