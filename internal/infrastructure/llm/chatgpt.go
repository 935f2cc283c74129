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
	"unicode/utf8"

	"ContentPublisher/internal/config"
	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

const (
	maxSourceChars  = 3000
	reviewMaxTokens = 800
)

// ChatGPTClient rewrites and reviews posts through an OpenAI-compatible API.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	temperature  float64
	maxTokens    int
	postLimit    int
	httpClient   *http.Client
	now          func() time.Time
}

var (
	_ ports.Rewriter = (*ChatGPTClient)(nil)
	_ ports.Reviewer = (*ChatGPTClient)(nil)
)

// NewChatGPTClient builds a client from configuration. postLimit is the
// platform's character limit quoted to the model.
func NewChatGPTClient(cfg config.ChatGPTConfig, postLimit int) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		postLimit:    postLimit,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// Configured reports whether the client has everything it needs to call out.
func (c *ChatGPTClient) Configured() bool {
	return c != nil && c.apiKey != "" && c.endpoint != "" && c.model != ""
}

// Rewrite turns extracted text into a post draft.
func (c *ChatGPTClient) Rewrite(ctx context.Context, text string, meta domain.Metadata) (string, error) {
	const step = "rewrite"
	if !c.Configured() {
		return "", domain.Errorf(domain.KindRewrite, step, "chatgpt client misconfigured")
	}

	out, err := c.complete(ctx, []message{
		{Role: "system", Content: safePrompt(c.systemPrompt)},
		{Role: "user", Content: rewritePrompt(text, meta, c.postLimit)},
	}, c.temperature, c.maxTokens)
	if err != nil {
		return "", domain.NewError(domain.KindRewrite, step, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", domain.Errorf(domain.KindRewrite, step, "provider returned an empty rewrite")
	}
	return out, nil
}

// Review asks the model for a structured verdict. An unparseable answer is
// reported as a REVIEW_NEEDED report rather than an error.
func (c *ChatGPTClient) Review(ctx context.Context, text, title string) (domain.ReviewReport, error) {
	if !c.Configured() {
		return domain.ReviewReport{}, errors.New("chatgpt client misconfigured")
	}

	out, err := c.complete(ctx, []message{
		{Role: "system", Content: "You review professional social network posts. Point out problems; never rewrite the author's text."},
		{Role: "user", Content: reviewPrompt(text, title, c.postLimit)},
	}, 0.1, reviewMaxTokens)
	if err != nil {
		return domain.ReviewReport{}, fmt.Errorf("review request: %w", err)
	}

	report := parseReview(out)
	report.Mode = domain.ReviewModeAI
	report.CharCount = utf8.RuneCountInString(text)
	report.HashtagCount = strings.Count(text, "#")
	report.ReviewedAt = c.now().UTC()
	return report, nil
}

type reviewPayload struct {
	Approved       bool     `json:"approved"`
	Issues         []string `json:"issues"`
	Suggestions    []string `json:"suggestions"`
	Recommendation string   `json:"final_recommendation"`
	Confidence     float64  `json:"confidence_score"`
}

func parseReview(raw string) domain.ReviewReport {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var payload reviewPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return domain.ReviewReport{
			Approved:       false,
			Issues:         []string{fmt.Sprintf("review response could not be parsed: %v", err)},
			Recommendation: domain.RecommendNeedsReview,
			Confidence:     0,
		}
	}

	report := domain.ReviewReport{
		Approved:       payload.Approved,
		Issues:         payload.Issues,
		Suggestions:    payload.Suggestions,
		Recommendation: domain.Recommendation(strings.ToUpper(strings.TrimSpace(payload.Recommendation))),
		Confidence:     payload.Confidence,
	}
	report.Normalize()
	return report
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func (c *ChatGPTClient) complete(ctx context.Context, messages []message, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("completion has no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func rewritePrompt(text string, meta domain.Metadata, limit int) string {
	var b strings.Builder
	b.WriteString("Turn the text below into an engaging, professional post.\n")
	if meta.Title != "" {
		fmt.Fprintf(&b, "\nOriginal title: %s", meta.Title)
	}
	if meta.Description != "" {
		fmt.Fprintf(&b, "\nDescription: %s", truncateRunes(meta.Description, 200))
	}
	if len(meta.Keywords) > 0 {
		kw := meta.Keywords
		if len(kw) > 5 {
			kw = kw[:5]
		}
		fmt.Fprintf(&b, "\nKeywords: %s", strings.Join(kw, ", "))
	}
	fmt.Fprintf(&b, `

Guidelines:
- Professional but approachable tone.
- At most %d characters.
- Opening hook, development, call to action.
- 3 to 5 relevant hashtags at the end.
- Use emojis sparingly.
- Fix grammar and spelling.
- End with a question or an invitation to discuss.

Original text:
%s

Answer with the post only, no explanations.`, limit, truncateRunes(text, maxSourceChars))
	return b.String()
}

func reviewPrompt(text, title string, limit int) string {
	return fmt.Sprintf(`Review the post below without rewriting it.

Post:
%s

Original title: %s

Check grammar and spelling, professional tone, hashtag relevance, length (ideal up to %d characters) and compliance risks.

Answer with JSON only:
{
  "approved": true or false,
  "issues": ["problems found"],
  "suggestions": ["specific suggestions without rewriting"],
  "final_recommendation": "APPROVE" | "REVIEW_NEEDED" | "REJECT",
  "confidence_score": 0.0 to 1.0
}`, text, title, limit)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a content marketing specialist who writes professional social network posts."
	}
	return prompt
}
