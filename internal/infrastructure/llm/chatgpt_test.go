package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ContentPublisher/internal/config"
	"ContentPublisher/internal/domain"
)

func completionServer(t *testing.T, status int, content string, seen *completionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(raw, seen)
		}
		w.WriteHeader(status)
		if status >= http.StatusBadRequest {
			_, _ = w.Write([]byte(`{"error":"rate limited"}`))
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(endpoint string) *ChatGPTClient {
	return NewChatGPTClient(config.ChatGPTConfig{
		Endpoint: endpoint,
		Model:    "gpt-4o-mini",
		APIKey:   "key",
	}, 1300)
}

func TestRewriteSendsPromptAndTrims(t *testing.T) {
	t.Parallel()

	var seen completionRequest
	srv := completionServer(t, http.StatusOK, "  Fresh post #go  \n", &seen)
	defer srv.Close()

	out, err := newTestClient(srv.URL).Rewrite(context.Background(), "Source text body", domain.Metadata{
		Title:    "Pipelines",
		Keywords: []string{"a", "b", "c", "d", "e", "f"},
	})
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	if out != "Fresh post #go" {
		t.Fatalf("unexpected rewrite %q", out)
	}
	if seen.Model != "gpt-4o-mini" || len(seen.Messages) != 2 {
		t.Fatalf("unexpected request %+v", seen)
	}
	prompt := seen.Messages[1].Content
	for _, want := range []string{"Original title: Pipelines", "Keywords: a, b, c, d, e\n", "At most 1300 characters", "Source text body"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestRewriteFailuresAreRewriteErrors(t *testing.T) {
	t.Parallel()

	failing := completionServer(t, http.StatusTooManyRequests, "", nil)
	defer failing.Close()
	empty := completionServer(t, http.StatusOK, "   ", nil)
	defer empty.Close()

	for name, client := range map[string]*ChatGPTClient{
		"http error":     newTestClient(failing.URL),
		"empty response": newTestClient(empty.URL),
		"misconfigured":  NewChatGPTClient(config.ChatGPTConfig{}, 1300),
	} {
		_, err := client.Rewrite(context.Background(), "text", domain.Metadata{})
		if domain.KindOf(err) != domain.KindRewrite {
			t.Errorf("%s: expected rewrite error, got %v", name, err)
		}
	}
}

func TestReviewParsesStructuredVerdict(t *testing.T) {
	t.Parallel()

	answer := "```json\n{\"approved\": true, \"issues\": [], \"suggestions\": [\"add a question\"], \"final_recommendation\": \"approve\", \"confidence_score\": 0.92}\n```"
	srv := completionServer(t, http.StatusOK, answer, nil)
	defer srv.Close()

	report, err := newTestClient(srv.URL).Review(context.Background(), "Post body #go #dev", "Title")
	if err != nil {
		t.Fatalf("Review returned error: %v", err)
	}
	if !report.Approved || report.Recommendation != domain.RecommendApprove || report.Confidence != 0.92 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Mode != domain.ReviewModeAI || report.HashtagCount != 2 {
		t.Fatalf("unexpected report metrics %+v", report)
	}
}

func TestReviewUnparseableAnswer(t *testing.T) {
	t.Parallel()

	srv := completionServer(t, http.StatusOK, "Looks fine to me!", nil)
	defer srv.Close()

	report, err := newTestClient(srv.URL).Review(context.Background(), "Post body", "")
	if err != nil {
		t.Fatalf("Review returned error: %v", err)
	}
	if report.Approved || report.Recommendation != domain.RecommendNeedsReview || report.Confidence != 0 {
		t.Fatalf("expected needs-review report, got %+v", report)
	}
	if len(report.Issues) != 1 {
		t.Fatalf("expected parse issue, got %v", report.Issues)
	}
}
