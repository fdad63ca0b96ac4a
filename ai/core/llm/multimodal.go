package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/studychat/ai/attachment"
	"github.com/hrygo/studychat/internal/security"
)

// go-openai has no content part for documents, so requests with attachments
// are encoded here. Responses and error bodies reuse the go-openai types.

type multimodalRequest struct {
	Model     string              `json:"model"`
	Messages  []multimodalMessage `json:"messages"`
	MaxTokens int                 `json:"max_tokens"`
}

type multimodalMessage struct {
	Role string `json:"role"`
	// Content is a string for prior turns and []contentPart for the new one.
	Content any `json:"content"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
	Document *documentPart `json:"document,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

type documentPart struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// buildParts returns the content parts of the new user turn: one text part
// followed by one part per attachment, in order.
func buildParts(pendingText string, files []attachment.Block) []contentPart {
	text := security.SanitizeInput(pendingText)
	if text == "" {
		text = AttachmentPlaceholder
	}

	parts := make([]contentPart, 0, len(files)+1)
	parts = append(parts, contentPart{Type: "text", Text: text})
	for _, f := range files {
		switch f.Kind {
		case attachment.KindImage:
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURLPart{URL: f.DataURI}})
		default:
			parts = append(parts, contentPart{Type: "document", Document: &documentPart{URL: f.DataURI, Type: f.MIMEType}})
		}
	}
	return parts
}

func (c *Client) exchangeWithFiles(ctx context.Context, history []Message, pendingText string, files []attachment.Block) (string, error) {
	base := c.baseMessages(history)
	messages := make([]multimodalMessage, 0, len(base)+1)
	for _, m := range base {
		messages = append(messages, multimodalMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, multimodalMessage{Role: RoleUser, Content: buildParts(pendingText, files)})

	body, err := json.Marshal(multimodalRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: FilesMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	slog.Debug("LLM: multimodal request",
		"model", c.model,
		"messages_count", len(messages),
		"attachments", len(files),
		"max_tokens", FilesMaxTokens,
	)
	startTime := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("LLM: multimodal request failed", "error", err)
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("LLM: multimodal request rejected", "status", resp.StatusCode)
		return "", decodeErrorBody(resp.StatusCode, respBody)
	}

	var completion openai.ChatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}

	slog.Debug("LLM: multimodal response received",
		"choices", len(completion.Choices),
		"total_tokens", completion.Usage.TotalTokens,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
	return firstReply(completion.Choices), nil
}

// decodeErrorBody extracts error.message from an error body, falling back to
// a generic status message.
func decodeErrorBody(statusCode int, body []byte) error {
	var errResp openai.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil && errResp.Error.Message != "" {
		return &APIError{StatusCode: statusCode, Message: errResp.Error.Message}
	}
	return statusError(statusCode)
}
