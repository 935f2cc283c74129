package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/infrastructure/audit"
	"ContentPublisher/internal/usecase"
)

const testToken = "T0KEN"

type fakeAPI struct {
	mu       sync.Mutex
	messages []url.Values
	photos   int
	files    map[string]string
	offsets  []string
	onPoll   func(call int) []update
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if strings.HasPrefix(r.URL.Path, "/file/bot"+testToken+"/") {
			id := strings.TrimPrefix(r.URL.Path, "/file/bot"+testToken+"/docs/")
			_, _ = io.WriteString(w, f.files[id])
			return
		}

		method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")
		var result any = true
		switch method {
		case "sendMessage":
			_ = r.ParseForm()
			f.messages = append(f.messages, r.PostForm)
		case "sendPhoto":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			f.photos++
		case "getFile":
			_ = r.ParseForm()
			id := r.PostForm.Get("file_id")
			result = fileInfo{FilePath: "docs/" + id, FileSize: int64(len(f.files[id]))}
		case "getUpdates":
			_ = r.ParseForm()
			f.offsets = append(f.offsets, r.PostForm.Get("offset"))
			var updates []update
			if f.onPoll != nil {
				updates = f.onPoll(len(f.offsets))
			}
			result = updates
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"ok":false,"description":"unknown method"}`)
			return
		}
		raw, _ := json.Marshal(result)
		_ = json.NewEncoder(w).Encode(apiResponse{OK: true, Result: raw})
	}))
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.Get("text"))
	}
	return out
}

type fakePipeline struct {
	mu         sync.Mutex
	submitted  []string
	contents   []string
	approved   int
	retried    []string
	approveErr error
	cancelErr  error
	busy       bool
	// retryGate, when set, parks Retry until it is closed.
	retryGate  chan struct{}
}

func (f *fakePipeline) Submit(_ context.Context, requester, path string) (domain.ContentItem, error) {
	raw, _ := os.ReadFile(path)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, requester)
	f.contents = append(f.contents, string(raw))
	item := domain.ContentItem{ID: "20261016_120000_post", Requester: requester, Status: domain.StatusAwaitingApproval}
	item.SetRewritten("Draft <b>text</b> #go")
	item.ReviewReport = &domain.ReviewReport{Approved: true, Recommendation: domain.RecommendApprove, Confidence: 0.7, Mode: domain.ReviewModeLocal}
	return item, nil
}

func (f *fakePipeline) Approve(context.Context, string) (domain.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved++
	return domain.ContentItem{ID: "item-1", Status: domain.StatusPublishing}, f.approveErr
}

func (f *fakePipeline) Cancel(context.Context, string) (domain.ContentItem, error) {
	return domain.ContentItem{ID: "item-1", Status: domain.StatusCancelled}, f.cancelErr
}

func (f *fakePipeline) Retry(_ context.Context, _, id string) (domain.ContentItem, error) {
	if f.retryGate != nil {
		<-f.retryGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried = append(f.retried, id)
	return domain.ContentItem{ID: id, Status: domain.StatusPublishing}, nil
}

func (f *fakePipeline) Busy(string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

func (f *fakePipeline) Status(context.Context, string) (usecase.RequesterStatus, error) {
	return usecase.RequesterStatus{Counts: map[domain.Status]int{domain.StatusPublished: 2}}, nil
}

func (f *fakePipeline) Items(context.Context, string, *domain.Status) ([]domain.ContentItem, error) {
	return nil, nil
}

type fakeStats struct{}

func (fakeStats) Stats(context.Context, time.Time) (audit.Stats, error) {
	return audit.Stats{Total: 4, Succeeded: 3, Failed: 1, ByKind: map[domain.ErrorKind]int{domain.KindElementNotFound: 1}}, nil
}

func newTestBot(t *testing.T, api *fakeAPI, pipeline *fakePipeline, authorized ...int64) (*Bot, func()) {
	t.Helper()
	srv := api.server(t)
	bot := NewBot(BotConfig{
		Token:           testToken,
		APIBase:         srv.URL,
		AuthorizedUsers: authorized,
		MaxUploadBytes:  1024,
		DownloadDir:     t.TempDir(),
		PollTimeout:     time.Second,
		Accepts: func(name string) bool {
			return strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".txt")
		},
	}, pipeline, fakeStats{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return bot, srv.Close
}

func textMessage(from int64, text string) *message {
	return &message{From: &user{ID: from}, Chat: chat{ID: from}, Text: text}
}

func TestBotRejectsUnauthorizedUser(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	pipeline := &fakePipeline{}
	bot, done := newTestBot(t, api, pipeline, 42)
	defer done()

	bot.handle(context.Background(), textMessage(7, "/approve"))

	if pipeline.approved != 0 {
		t.Fatalf("unauthorized user reached the pipeline")
	}
	if got := api.texts(); len(got) != 1 || !strings.Contains(got[0], "not authorized") {
		t.Fatalf("unexpected replies %v", got)
	}
}

func TestBotCommandsRouteToPipeline(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	pipeline := &fakePipeline{cancelErr: usecase.ErrNoPendingApproval}
	bot, done := newTestBot(t, api, pipeline)
	defer done()
	ctx := context.Background()

	bot.handle(ctx, textMessage(1, "/approve@ContentBot"))
	bot.handle(ctx, textMessage(1, "/cancel"))
	bot.handle(ctx, textMessage(1, "/retry 20261016_item"))
	bot.jobs.Wait()
	bot.handle(ctx, textMessage(1, "/list bogus"))
	bot.handle(ctx, textMessage(1, "/stats"))
	bot.handle(ctx, textMessage(1, "/status"))
	bot.handle(ctx, textMessage(1, "hello"))

	if pipeline.approved != 1 || len(pipeline.retried) != 1 || pipeline.retried[0] != "20261016_item" {
		t.Fatalf("unexpected pipeline calls: approved=%d retried=%v", pipeline.approved, pipeline.retried)
	}

	got := api.texts()
	want := []string{"Publishing <code>item-1</code>", "Nothing is waiting", "again", "Unknown status bogus", "Success rate: 75%", "published: 2", "Send a file"}
	if len(got) != len(want) {
		t.Fatalf("expected %d replies, got %v", len(want), got)
	}
	for i := range want {
		if !strings.Contains(got[i], want[i]) {
			t.Fatalf("reply %d = %q, want it to contain %q", i, got[i], want[i])
		}
	}
	for _, m := range api.messages {
		if m.Get("chat_id") != "1" || m.Get("parse_mode") != "HTML" {
			t.Fatalf("unexpected form %v", m)
		}
	}
}

func TestBotUploadSubmitsDownloadedFile(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{files: map[string]string{"file-1": "<html><body>hello</body></html>"}}
	pipeline := &fakePipeline{}
	bot, done := newTestBot(t, api, pipeline)
	defer done()

	bot.handle(context.Background(), &message{
		From:     &user{ID: 5},
		Chat:     chat{ID: 5},
		Document: &document{FileID: "file-1", FileName: "post.html", FileSize: 31},
	})
	bot.jobs.Wait()

	if len(pipeline.submitted) != 1 || pipeline.submitted[0] != "5" {
		t.Fatalf("unexpected submissions %v", pipeline.submitted)
	}
	if pipeline.contents[0] != api.files["file-1"] {
		t.Fatalf("downloaded content mismatch: %q", pipeline.contents[0])
	}

	got := api.texts()
	if len(got) != 2 || !strings.Contains(got[0], "Received") || !strings.Contains(got[1], "Draft ready for review") {
		t.Fatalf("unexpected replies %v", got)
	}
	if !strings.Contains(got[1], "Draft &lt;b&gt;text&lt;/b&gt;") || !strings.Contains(got[1], "/approve  /cancel") {
		t.Fatalf("review not rendered safely: %q", got[1])
	}

	left, err := os.ReadDir(bot.cfg.DownloadDir)
	if err != nil {
		t.Fatalf("read download dir: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("download kept after submit: %v", left)
	}
}

func TestBotRefusesUploadWhileBusy(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{files: map[string]string{"file-2": "second post"}}
	pipeline := &fakePipeline{busy: true}
	bot, done := newTestBot(t, api, pipeline)
	defer done()

	bot.handle(context.Background(), &message{
		From:     &user{ID: 5},
		Chat:     chat{ID: 5},
		Document: &document{FileID: "file-2", FileName: "next.txt", FileSize: 11},
	})
	bot.jobs.Wait()

	if len(pipeline.submitted) != 0 {
		t.Fatalf("busy requester reached the pipeline")
	}
	got := api.texts()
	if len(got) != 1 || strings.Contains(got[0], "Received") || !strings.Contains(got[0], "already have an item in progress") {
		t.Fatalf("unexpected replies %v", got)
	}
	if left, _ := os.ReadDir(bot.cfg.DownloadDir); len(left) != 0 {
		t.Fatalf("busy upload was downloaded: %v", left)
	}
}

func TestBotRetryRunsOffTheUpdateLoop(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	pipeline := &fakePipeline{retryGate: make(chan struct{})}
	bot, done := newTestBot(t, api, pipeline)
	defer done()
	ctx := context.Background()

	handled := make(chan struct{})
	go func() {
		defer close(handled)
		bot.handle(ctx, textMessage(1, "/retry 20261016_item"))
		bot.handle(ctx, textMessage(2, "/status"))
	}()
	select {
	case <-handled:
	case <-time.After(time.Second):
		close(pipeline.retryGate)
		t.Fatal("update loop blocked on a retry")
	}

	if got := api.texts(); len(got) != 1 || !strings.Contains(got[0], "published: 2") {
		t.Fatalf("unexpected replies before retry finished: %v", got)
	}

	close(pipeline.retryGate)
	bot.jobs.Wait()
	got := api.texts()
	if len(got) != 2 || !strings.Contains(got[1], "again") {
		t.Fatalf("unexpected replies after retry: %v", got)
	}
}

func TestBotRejectsLargeAndUnsupportedFiles(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	pipeline := &fakePipeline{}
	bot, done := newTestBot(t, api, pipeline)
	defer done()
	ctx := context.Background()

	bot.handle(ctx, &message{From: &user{ID: 5}, Chat: chat{ID: 5}, Document: &document{FileID: "a", FileName: "deck.pdf", FileSize: 10}})
	bot.handle(ctx, &message{From: &user{ID: 5}, Chat: chat{ID: 5}, Document: &document{FileID: "b", FileName: "big.html", FileSize: 4096}})
	bot.jobs.Wait()

	if len(pipeline.submitted) != 0 {
		t.Fatalf("rejected files reached the pipeline")
	}
	got := api.texts()
	if len(got) != 2 || !strings.Contains(got[0], "Unsupported") || !strings.Contains(got[1], "too large") {
		t.Fatalf("unexpected replies %v", got)
	}
}

func TestBotRunAdvancesOffset(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := &fakeAPI{}
	api.onPoll = func(call int) []update {
		if call == 1 {
			return []update{{UpdateID: 41, Message: textMessage(1, "/start")}}
		}
		cancel()
		return nil
	}
	bot, done := newTestBot(t, api, &fakePipeline{})
	defer done()

	if err := bot.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	api.mu.Lock()
	offsets := append([]string(nil), api.offsets...)
	api.mu.Unlock()
	if len(offsets) < 2 || offsets[0] != "0" || offsets[1] != "42" {
		t.Fatalf("unexpected offsets %v", offsets)
	}
	if got := api.texts(); len(got) != 1 || !strings.Contains(got[0], "Content publication bot") {
		t.Fatalf("unexpected replies %v", got)
	}
}

func TestNotifierSendsAlertAndScreenshot(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	srv := api.server(t)
	defer srv.Close()

	shot := filepath.Join(t.TempDir(), "fail.png")
	if err := os.WriteFile(shot, []byte("\x89PNG"), 0o644); err != nil {
		t.Fatalf("write screenshot: %v", err)
	}

	n := NewNotifier(srv.URL, testToken, "99")
	err := n.Alert(context.Background(), domain.Alert{
		Kind:       domain.KindVerificationRequired,
		Title:      "Publish failed",
		Message:    "landed on <challenge>",
		URL:        "https://example.com/checkpoint",
		Screenshot: shot,
		At:         time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Alert returned error: %v", err)
	}

	got := api.texts()
	if len(got) != 1 || !strings.Contains(got[0], "&lt;challenge&gt;") || !strings.Contains(got[0], "2026-10-16 09:30:00") {
		t.Fatalf("unexpected alert text %v", got)
	}
	if api.photos != 1 {
		t.Fatalf("expected screenshot upload, got %d", api.photos)
	}

	if err := NewNotifier(srv.URL, "", "").Alert(context.Background(), domain.Alert{}); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}

func TestRenderReviewLimitsIssuesAndSuggestions(t *testing.T) {
	t.Parallel()

	item := domain.ContentItem{ID: "x", Status: domain.StatusAwaitingApproval}
	item.SetRewritten("body")
	item.ReviewReport = &domain.ReviewReport{
		Recommendation: domain.RecommendNeedsReview,
		Confidence:     0.5,
		Issues:         []string{"i1", "i2", "i3", "i4", "i5"},
		Suggestions:    []string{"s1", "s2", "s3"},
		CharCount:      4,
	}

	out := RenderReview(item)
	if !strings.Contains(out, "i3") || strings.Contains(out, "i4") {
		t.Fatalf("issues not limited to 3: %q", out)
	}
	if !strings.Contains(out, "s2") || strings.Contains(out, "s3") {
		t.Fatalf("suggestions not limited to 2: %q", out)
	}
	if !strings.Contains(out, "confidence 50%") || !strings.Contains(out, "REVIEW_NEEDED") {
		t.Fatalf("verdict missing: %q", out)
	}

	item.LastErrorKind = domain.KindSessionLost
	if out := RenderReview(item); !strings.Contains(out, "/retry  /cancel") {
		t.Fatalf("failed publish should offer retry: %q", out)
	}
}
