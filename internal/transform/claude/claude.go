// Package claude implements the transformation service against the
// Anthropic Messages API.
package claude

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/casevault/internal/transform"
)

const defaultAPIURL = "https://api.anthropic.com/v1/messages"

// anthropicVersion is the Anthropic Messages API version header value.
const anthropicVersion = "2023-06-01"

const (
	transcribePrompt = `You are a clinical transcriber. Transcribe this session audio
into clean, readable text. Preserve speaker turns and key clinical
information. Output plain text only, no markdown or formatting.`

	extractPrompt = `You are a clinical document analyzer. Extract all text from this
document (form, assessment, notes, intake form). Preserve structure and
headings, correct obvious typos while preserving accuracy. Output plain
text only, clean and organized.`

	cleanPrompt = `You are a clinical text processor. Clean and organize this note
while preserving all clinical information. Fix typos and formatting
issues. Output plain text only.

Text to clean:
`
)

// request types mirror the Anthropic Messages API structure.
type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string  `json:"role"`
	Content []block `json:"content"`
}

type block struct {
	Type   string  `json:"type"`
	Text   string  `json:"text,omitempty"`
	Source *source `json:"source,omitempty"`
}

type source struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Transformer calls the Anthropic Messages API for every artifact kind.
type Transformer struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

// New creates a Transformer with a per-attempt request timeout.
func New(apiKey, model string, timeout time.Duration) *Transformer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Transformer{
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		baseURL: defaultAPIURL,
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (t *Transformer) WithBaseURL(u string) *Transformer {
	t.baseURL = u
	return t
}

// TranscribeAudio sends the audio file as a base64 content block.
func (t *Transformer) TranscribeAudio(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("claude: read audio: %w", err)
	}
	return t.complete(ctx, []block{
		{Type: "audio", Source: &source{
			Type:      "base64",
			MediaType: mediaType(path),
			Data:      base64.StdEncoding.EncodeToString(data),
		}},
		{Type: "text", Text: transcribePrompt},
	})
}

// ExtractText sends the image or document as a base64 content block.
func (t *Transformer) ExtractText(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("claude: read image: %w", err)
	}
	mt := mediaType(path)
	blockType := "image"
	if mt == "application/pdf" {
		blockType = "document"
	}
	return t.complete(ctx, []block{
		{Type: blockType, Source: &source{
			Type:      "base64",
			MediaType: mt,
			Data:      base64.StdEncoding.EncodeToString(data),
		}},
		{Type: "text", Text: extractPrompt},
	})
}

// CleanText embeds the file content directly in the prompt.
func (t *Transformer) CleanText(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("claude: read text: %w", err)
	}
	return t.complete(ctx, []block{
		{Type: "text", Text: cleanPrompt + string(data)},
	})
}

// complete posts one user message and returns the first text block of
// the reply.
func (t *Transformer) complete(ctx context.Context, content []block) (string, error) {
	body := request{
		Model:     t.model,
		MaxTokens: 4096,
		Messages:  []message{{Role: "user", Content: content}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("claude: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("claude: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", t.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("claude: call api: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("claude: close response body failed", slog.String("error", err.Error()))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("claude: status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var respBody response
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return "", fmt.Errorf("claude: decode response: %w", err)
	}
	for _, blk := range respBody.Content {
		if blk.Type == "text" {
			return blk.Text, nil
		}
	}
	return "", fmt.Errorf("claude: no text block in response")
}

// mediaType maps a file extension to its MIME type.
func mediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Verify *Transformer satisfies the boundary at compile time.
var _ transform.Transformer = (*Transformer)(nil)
