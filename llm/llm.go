package llm

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

	"github.com/hashicorp/go-hclog"
	"github.com/sokcho-kim/docmask/mask"
)

// EnvAPIKey is the environment variable consulted for the API key when the
// config does not carry one.
const EnvAPIKey = "DOCMASK_API_KEY"

const defaultTimeout = 120 * time.Second

// The model returns verbatim strings rather than offsets; small models get
// offsets wrong, and located coordinates come from the document itself later.
const systemPrompt = `You label sensitive personal data in document text.

Return ONLY a JSON object. Keys are the requested category names; values are arrays of the exact strings found, verbatim, character for character. Omit categories with no findings. Return {} when nothing is found.

Never paraphrase, trim, or reformat a found string: it must appear in the text exactly as it does in the input. No explanation, no markdown.`

var categoryHints = map[mask.Category]string{
	mask.CategoryName:    "personal names of individuals",
	mask.CategoryRRN:     "resident registration numbers, like 123456-1234567",
	mask.CategoryPhone:   "phone numbers in any format",
	mask.CategoryEmail:   "email addresses",
	mask.CategoryAddress: "street or building addresses",
	mask.CategoryAccount: "bank account or card numbers",
}

var _ mask.Classifier = &Classifier{}

// Config carries the connection settings for an OpenAI-compatible
// chat-completions endpoint.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:11434".
	BaseURL string
	Model   string
	// APIKey is optional; local model servers typically need none.
	APIKey string
	// Timeout bounds one whole HTTP exchange. Zero picks a default.
	Timeout time.Duration
	Logger  hclog.Logger
}

// Classifier proposes candidate sensitive text by asking a chat model. Safe
// for concurrent use.
type Classifier struct {
	url    string
	model  string
	apiKey string
	client *http.Client
	l      hclog.Logger
}

// New validates cfg and builds a Classifier.
func New(cfg Config) (*Classifier, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("llm classifier requires a base url")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm classifier requires a model")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be nonnegative, timeout='%s'", cfg.Timeout.String())
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	l := cfg.Logger
	if l == nil {
		l = hclog.Default()
	}

	return &Classifier{
		url:    strings.TrimRight(cfg.BaseURL, "/") + "/v1/chat/completions",
		model:  cfg.Model,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
		l:      l,
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	// Hint to disable chain-of-thought thinking where supported;
	// stripThinkBlock handles models that ignore it.
	Think bool `json:"think"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			Reasoning        string `json:"reasoning"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Classify asks the model for candidates in the requested categories.
// Transport faults, bad statuses, and unparseable model output are all
// errors; an empty result from a healthy exchange is not.
func (c *Classifier) Classify(ctx context.Context, text string, categories []mask.Category) (map[mask.Category][]string, error) {
	out := make(map[mask.Category][]string)
	if strings.TrimSpace(text) == "" || len(categories) == 0 {
		return out, nil
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			// /no_think is a control token some local models honor to skip
			// thinking and answer directly.
			{Role: "user", Content: userPrompt(text, categories) + "\n/no_think"},
		},
		Temperature: 0,
		MaxTokens:   10000,
		Think:       false,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.l.Debug("classifying text", "url", c.url, "model", c.model, "text_len", len(text), "categories", len(categories))
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, StatusError{status: resp.StatusCode, body: string(b)}
	}

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading chat response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(rawBody, &chatResp); err != nil {
		return nil, ParseError{err: err}
	}
	if len(chatResp.Choices) == 0 {
		return nil, ParseError{err: errors.New("response carried no choices")}
	}

	choice := chatResp.Choices[0]
	if choice.FinishReason == "length" {
		c.l.Warn("model response truncated by token limit")
	}

	// Some local models leave content empty and put the answer in a
	// reasoning field when thinking mode was active.
	raw := strings.TrimSpace(choice.Message.Content)
	if raw == "" {
		raw = strings.TrimSpace(choice.Message.Reasoning)
	}
	if raw == "" {
		raw = strings.TrimSpace(choice.Message.ReasoningContent)
	}

	content := stripThinkBlock(raw)
	content = stripCodeFence(content)
	if !strings.Contains(content, "{") {
		// A compliant model answers {} when nothing is found; prose with no
		// object at all means the model ignored the instructions.
		return nil, ParseError{err: errors.New("no json object in model output")}
	}
	content = extractJSONObject(content)

	var parsed map[string][]string
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, ParseError{err: err}
	}

	requested := make(map[mask.Category]bool, len(categories))
	for _, cat := range categories {
		requested[cat] = true
	}
	for key, values := range parsed {
		cat := mask.Category(strings.ToLower(strings.TrimSpace(key)))
		if !requested[cat] {
			c.l.Debug("dropping unrequested category from model output", "category", key)
			continue
		}
		out[cat] = append(out[cat], values...)
	}
	return out, nil
}

// userPrompt lists the requested categories with a short description each,
// then the text.
func userPrompt(text string, categories []mask.Category) string {
	var sb strings.Builder
	sb.WriteString("Categories:\n")
	for _, cat := range categories {
		sb.WriteString("- ")
		sb.WriteString(string(cat))
		if hint := categoryHints[cat]; hint != "" {
			sb.WriteString(": ")
			sb.WriteString(hint)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nText:\n")
	sb.WriteString(text)
	return sb.String()
}

// stripThinkBlock removes a <think>...</think> block that some models emit
// before the actual answer.
func stripThinkBlock(s string) string {
	const openTag, closeTag = "<think>", "</think>"
	start := strings.Index(s, openTag)
	if start < 0 {
		return s
	}
	end := strings.Index(s, closeTag)
	if end < 0 {
		// Unclosed block, drop everything from <think> onwards.
		return strings.TrimSpace(s[:start])
	}
	return strings.TrimSpace(s[:start] + s[end+len(closeTag):])
}

// stripCodeFence removes ```json ... ``` or ``` ... ``` wrappers.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// extractJSONObject finds the outermost {...} substring in s.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return s
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return s
	}
	return s[start : end+1]
}

// StatusError is a non-200 response from the model server.
type StatusError struct {
	status int
	body   string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("unexpected response status, status=%d, body=%s", e.status, e.body)
}

// ParseError means the server or model output could not be interpreted.
type ParseError struct {
	err error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("unparseable model output, error=%s", e.err.Error())
}

func (e ParseError) Unwrap() error {
	return e.err
}
