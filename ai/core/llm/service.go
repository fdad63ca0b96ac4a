package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/studychat/ai/attachment"
	"github.com/hrygo/studychat/internal/security"
)

const (
	// TextMaxTokens caps the reply of a text-only exchange.
	TextMaxTokens = 1000
	// FilesMaxTokens caps the reply of an exchange that carries attachments.
	FilesMaxTokens = 3000

	// NoResponse is returned as the reply when the endpoint produced no content.
	NoResponse = "No response received"
	// AttachmentPlaceholder replaces empty text when attachments are sent.
	AttachmentPlaceholder = "Please analyze the attached files."
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a prior chat turn.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// APIError is a failure reported by the completion endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

func statusError(statusCode int) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("API request failed with status %d", statusCode),
	}
}

// Config represents completion client configuration.
type Config struct {
	Model        string
	APIKey       string
	BaseURL      string
	SystemPrompt string
	Timeout      int // Request timeout in seconds (default: 120)

	// Optional attribution headers (HTTP-Referer, X-Title).
	SiteURL  string
	SiteName string

	// HTTPClient overrides the default transport, mainly for tests.
	HTTPClient *http.Client
}

// Client sends one conversation exchange to an OpenAI-compatible endpoint.
type Client struct {
	client       *openai.Client
	httpClient   *http.Client
	model        string
	apiKey       string
	baseURL      string
	systemPrompt string
	timeout      time.Duration
}

// NewClient creates a new completion client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base url is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient()
	}
	if cfg.SiteURL != "" || cfg.SiteName != "" {
		httpClient = withAttribution(httpClient, cfg.SiteURL, cfg.SiteName)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = baseURL
	clientConfig.HTTPClient = httpClient

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120
	}

	return &Client{
		client:       openai.NewClientWithConfig(clientConfig),
		httpClient:   httpClient,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		systemPrompt: cfg.SystemPrompt,
		timeout:      time.Duration(timeout) * time.Second,
	}, nil
}

// Exchange sends the persona, the sanitized history and the new user turn,
// and returns the assistant reply. With files the new turn becomes a
// multimodal message; without files it is plain text.
func (c *Client) Exchange(ctx context.Context, history []Message, pendingText string, files []attachment.Block) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if len(files) > 0 {
		return c.exchangeWithFiles(ctx, history, pendingText, files)
	}
	return c.exchangeText(ctx, history, pendingText)
}

func (c *Client) exchangeText(ctx context.Context, history []Message, pendingText string) (string, error) {
	messages := c.baseMessages(history)
	messages = append(messages, Message{Role: RoleUser, Content: security.SanitizeInput(pendingText)})

	slog.Debug("LLM: chat request",
		"model", c.model,
		"messages_count", len(messages),
		"max_tokens", TextMaxTokens,
	)
	startTime := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: TextMaxTokens,
		Messages:  convertMessages(messages),
	})
	if err != nil {
		slog.Error("LLM: chat request failed", "error", err)
		return "", translateError(err)
	}

	slog.Debug("LLM: chat response received",
		"choices", len(resp.Choices),
		"total_tokens", resp.Usage.TotalTokens,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
	return firstReply(resp.Choices), nil
}

// baseMessages returns the persona followed by the sanitized history.
func (c *Client) baseMessages(history []Message) []Message {
	messages := make([]Message, 0, len(history)+2)
	if c.systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: c.systemPrompt})
	}
	for _, m := range history {
		messages = append(messages, Message{Role: m.Role, Content: security.SanitizeInput(m.Content)})
	}
	return messages
}

func firstReply(choices []openai.ChatCompletionChoice) string {
	if len(choices) == 0 || choices[0].Message.Content == "" {
		return NoResponse
	}
	return choices[0].Message.Content
}

// translateError maps go-openai failures onto APIError so callers see the
// endpoint's own message when it sent one.
func translateError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message == "" {
			return statusError(apiErr.HTTPStatusCode)
		}
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return statusError(reqErr.HTTPStatusCode)
	}
	return fmt.Errorf("completion request failed: %w", err)
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	llmMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		switch m.Role {
		case RoleSystem:
			llmMessages[i] = openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content}
		case RoleAssistant:
			llmMessages[i] = openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
		default:
			llmMessages[i] = openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content}
		}
	}
	return llmMessages
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// attributionTransport adds the OpenRouter attribution headers.
type attributionTransport struct {
	base     http.RoundTripper
	siteURL  string
	siteName string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.siteURL != "" {
		req.Header.Set("HTTP-Referer", t.siteURL)
	}
	if t.siteName != "" {
		req.Header.Set("X-Title", t.siteName)
	}
	return t.base.RoundTrip(req)
}

func withAttribution(hc *http.Client, siteURL, siteName string) *http.Client {
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	clone := *hc
	clone.Transport = &attributionTransport{base: base, siteURL: siteURL, siteName: siteName}
	return &clone
}
