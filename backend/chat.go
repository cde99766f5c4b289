package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// chatSystemPrompt instructs OpenAI-compatible models to behave as a strict
// batch translation function. {{src}} and {{tgt}} are replaced per request.
const chatSystemPrompt = `You are a machine translation engine. Translate each input line from {{src}} to {{tgt}}.

REQUIREMENTS:
- Return ONLY a JSON array of translated strings, one for each input line, in the same order.
- Preserve format specifiers, punctuation patterns, and proper nouns.
- Do not merge, split, or reorder lines.
- Return ONLY the JSON array, no explanations or markdown code blocks.`

// chatConfig holds the per-kind defaults for OpenAI-compatible backends.
type chatConfig struct {
	name       string
	baseURL    string
	timeout    time.Duration
	requireKey bool
}

// chat is an OpenAI-compatible chat completions backend. The locator is the
// model name; the base URL comes from the kind defaults.
type chat struct {
	name    string
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

func newChat(locator string, opts Options, cfg chatConfig) (*chat, error) {
	if locator == "" {
		return nil, fmt.Errorf("%s backend requires a model name locator", strings.ToLower(cfg.name))
	}
	if cfg.requireKey && opts.APIKey == "" {
		return nil, fmt.Errorf("%s backend requires an API key (--api-key or CONVKIT_API_KEY)", strings.ToLower(cfg.name))
	}

	baseURL := cfg.baseURL
	// A locator of the form "URL|model" overrides the default endpoint.
	if base, model, ok := strings.Cut(locator, "|"); ok && strings.HasPrefix(base, "http") {
		baseURL = strings.TrimRight(base, "/")
		locator = model
	}

	return &chat{
		name:    cfg.name,
		baseURL: baseURL,
		model:   locator,
		apiKey:  opts.APIKey,
		client:  makeHTTPClient(opts.Proxy, opts.effectiveTimeout(cfg.timeout)),
	}, nil
}

// BatchTranslate submits the batch as a numbered prompt and expects a JSON
// array answer with one translation per line.
func (c *chat) BatchTranslate(ctx context.Context, lines []string, srcLang, tgtLang string) ([]string, error) {
	system := strings.NewReplacer("{{src}}", srcLang, "{{tgt}}", tgtLang).Replace(chatSystemPrompt)

	var user strings.Builder
	user.WriteString("Translate these lines:\n\n")
	for i, line := range lines {
		fmt.Fprintf(&user, "%d. %s\n", i+1, line)
	}
	fmt.Fprintf(&user, "\nReturn a JSON array with exactly %d translated strings.", len(lines))

	text, err := c.call(ctx, system, user.String())
	if err != nil {
		return nil, err
	}

	translations, err := parseTranslations(text)
	if err != nil {
		return nil, err
	}
	if len(translations) != len(lines) {
		return nil, fmt.Errorf("%s returned %d translations for %d lines", c.name, len(translations), len(lines))
	}

	return translations, nil
}

// call performs one chat completions request.
func (c *chat) call(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	reqBody := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model: c.model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", c.name, err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d: %s", c.name, resp.StatusCode, truncate(string(respBody), 500))
	}

	return extractChatText(respBody)
}

// extractChatText pulls choices[0].message.content out of a chat completions
// response, surfacing API-level errors.
func extractChatText(body []byte) (string, error) {
	var raw struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if raw.Error != nil {
		return "", fmt.Errorf("API error: %s", raw.Error.Message)
	}
	if len(raw.Choices) == 0 {
		return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
	}
	return raw.Choices[0].Message.Content, nil
}

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// parseTranslations extracts a JSON array of strings from a model response,
// tolerating markdown code fences and surrounding prose.
func parseTranslations(content string) ([]string, error) {
	content = strings.TrimSpace(content)

	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	startIdx := strings.Index(content, "[")
	endIdx := strings.LastIndex(content, "]")
	if startIdx >= 0 && endIdx > startIdx {
		content = content[startIdx : endIdx+1]
	}

	var translations []string
	if err := json.Unmarshal([]byte(content), &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation response as JSON array: %w\nResponse: %s", err, truncate(content, 300))
	}

	return translations, nil
}
