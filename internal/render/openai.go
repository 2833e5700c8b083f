package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAIOptions controls how the OpenAI story provider is configured.
type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	Fallback     StoryProvider
	OnFallback   func(reason string, err error)
}

// OpenAIStoryProvider generates a short reddit-style story through the chat
// completions API. When the call fails and a fallback provider is configured,
// the fallback is used instead of surfacing the error.
type OpenAIStoryProvider struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
	fallback     StoryProvider
	onFallback   func(reason string, err error)
}

const (
	openAIDefaultTimeout = 30 * time.Second
	defaultOpenAIModel   = "gpt-4o-mini"
)

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *openAIFormat   `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIStoryPayload struct {
	Title string `json:"title"`
	Story string `json:"story"`
}

func NewOpenAIStoryProvider(opts OpenAIOptions) (*OpenAIStoryProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAIStoryProvider{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
		fallback:     opts.Fallback,
		onFallback:   opts.OnFallback,
	}, nil
}

func (o *OpenAIStoryProvider) GenerateStory(ctx context.Context, req Request) (*Story, error) {
	payload := openAIChatRequest{
		Model:       o.model,
		Temperature: 0.8,
		ResponseFormat: &openAIFormat{
			Type: "json_object",
		},
		Messages: []openAIMessage{
			{Role: "system", Content: storySystemPrompt},
			{Role: "user", Content: buildStoryPrompt(req)},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return o.useFallback(ctx, req, "marshal_request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return o.useFallback(ctx, req, "build_request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return o.useFallback(ctx, req, "request_failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return o.useFallback(ctx, req, "bad_status", fmt.Errorf("openai status %d", resp.StatusCode))
	}

	var chat openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return o.useFallback(ctx, req, "decode_response", err)
	}
	if len(chat.Choices) == 0 {
		return o.useFallback(ctx, req, "empty_response", errors.New("no choices returned"))
	}

	var story openAIStoryPayload
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &story); err != nil {
		return o.useFallback(ctx, req, "decode_story", err)
	}
	if strings.TrimSpace(story.Story) == "" {
		return o.useFallback(ctx, req, "empty_story", errors.New("story body missing"))
	}
	return &Story{Title: strings.TrimSpace(story.Title), Body: strings.TrimSpace(story.Story)}, nil
}

func (o *OpenAIStoryProvider) useFallback(ctx context.Context, req Request, reason string, cause error) (*Story, error) {
	if o.fallback == nil {
		if cause == nil {
			cause = errors.New(reason)
		}
		return nil, fmt.Errorf("openai story generation: %w", cause)
	}
	if o.onFallback != nil {
		o.onFallback(reason, cause)
	}
	return o.fallback.GenerateStory(ctx, req)
}

const storySystemPrompt = `You write very short first-person stories in the style of popular reddit posts. Respond with a JSON object {"title": string, "story": string}. The story must be under 120 words.`

func buildStoryPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a story that would fit r/%s.", strings.TrimSpace(req.Subreddit))
	if gender, ok := req.Voice["gender"].(string); ok && gender != "" {
		fmt.Fprintf(&b, " The narrator is %s.", gender)
	}
	if req.IsCliffhanger {
		b.WriteString(" End on a cliffhanger.")
	}
	return b.String()
}

var _ StoryProvider = (*OpenAIStoryProvider)(nil)
