package composer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// toneByUrgency maps the urgency tier to the instruction given to the
// generator.
var toneByUrgency = map[Urgency]string{
	UrgencyLow:    "friendly and casual, a gentle nudge",
	UrgencyMedium: "warm but encouraging, suggest they finish checking out soon",
	UrgencyHigh:   "create a sense of urgency, their items may not stay available",
}

// OpenAIComposer generates reminder text through an OpenAI-compatible
// chat-completions endpoint.
type OpenAIComposer struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAIComposer(apiKey, baseURL, model string) *OpenAIComposer {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIComposer{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Compose validates the request, calls the generator and normalizes the
// output to a single SMS segment.
func (c *OpenAIComposer) Compose(ctx context.Context, req Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(
		"Write an SMS reminding %s about the items left in their cart: %s. Tone: %s.",
		req.Name, req.Products, toneByUrgency[req.Urgency],
	)
	if req.Link != "" {
		prompt += fmt.Sprintf(" Include this checkout link verbatim: %s", req.Link)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You write short cart-reminder texts for an online store. Reply with the message only, no quotes, under 160 characters."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   120,
	})
	if err != nil {
		return "", &GenerationError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", &GenerationError{Err: fmt.Errorf("generator returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", &GenerationError{Err: fmt.Errorf("decode generator response: %w", err)}
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", &GenerationError{Err: fmt.Errorf("generator returned no content")}
	}

	return normalize(parsed.Choices[0].Message.Content), nil
}
