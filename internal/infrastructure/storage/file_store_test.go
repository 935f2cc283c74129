package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	root := t.TempDir()
	store, err := NewFileStore(root,
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	return store, root
}

func enqueue(t *testing.T, store *FileStore, title string) domain.ContentItem {
	t.Helper()
	item, err := store.Enqueue(context.Background(), domain.ContentItem{
		SourceName:  "Article.HTML",
		Requester:   "42",
		RawMetadata: domain.Metadata{Title: title},
	}, []byte("<html><body>hello</body></html>"))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	return item
}

// advance walks item to Publishing.
func advance(t *testing.T, store *FileStore, id string) {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		from, to domain.Status
		mutate   func(*domain.ContentItem)
	}{
		{domain.StatusPending, domain.StatusProcessing, nil},
		{domain.StatusProcessing, domain.StatusAwaitingApproval, func(i *domain.ContentItem) { i.SetRewritten("rewritten post") }},
		{domain.StatusAwaitingApproval, domain.StatusPublishing, nil},
	}
	for _, step := range steps {
		if _, err := store.Transition(ctx, id, step.from, step.to, step.mutate); err != nil {
			t.Fatalf("transition %s -> %s: %v", step.from, step.to, err)
		}
	}
}

func TestEnqueueNamesAndCollisions(t *testing.T) {
	t.Parallel()

	store, root := newTestStore(t)
	first := enqueue(t, store, "Café com Leite: a história!")
	second := enqueue(t, store, "Café com Leite: a história!")

	if first.ID != "20240309_140507_cafe-com-leite-a-historia" {
		t.Fatalf("unexpected id %q", first.ID)
	}
	if second.ID != first.ID+"_2" {
		t.Fatalf("expected collision suffix, got %q", second.ID)
	}
	if first.ContentFile != first.ID+".html" {
		t.Fatalf("unexpected content file %q", first.ContentFile)
	}
	if first.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", first.Status)
	}
	for _, name := range []string{first.ContentFile, first.ID + ".json", second.ContentFile, second.ID + ".json"} {
		if _, err := os.Stat(filepath.Join(root, "incoming", name)); err != nil {
			t.Fatalf("expected %s in incoming: %v", name, err)
		}
	}
}

func TestEnqueueFallsBackToSourceName(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	item, err := store.Enqueue(context.Background(), domain.ContentItem{SourceName: "My Notes.md"}, []byte("x"))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if item.ID != "20240309_140507_my-notes" || item.ContentFile != item.ID+".md" {
		t.Fatalf("unexpected naming %q / %q", item.ID, item.ContentFile)
	}
}

func TestTransitionGuardsCurrentStatus(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	item := enqueue(t, store, "Guarded")
	ctx := context.Background()

	if _, err := store.Transition(ctx, item.ID, domain.StatusPending, domain.StatusProcessing, nil); err != nil {
		t.Fatalf("first transition failed: %v", err)
	}
	_, err := store.Transition(ctx, item.ID, domain.StatusPending, domain.StatusProcessing, nil)
	if !errors.Is(err, ports.ErrStatusConflict) {
		t.Fatalf("expected status conflict, got %v", err)
	}
	if _, err := store.Transition(ctx, item.ID, domain.StatusProcessing, domain.StatusPublishing, nil); err == nil {
		t.Fatal("expected edge outside the lifecycle graph to be rejected")
	}
	if _, err := store.Transition(ctx, item.ID, domain.StatusProcessing, domain.StatusAwaitingApproval, nil); err == nil {
		t.Fatal("expected missing rewritten text to be rejected")
	}

	got, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Status != domain.StatusProcessing {
		t.Fatalf("rejected transitions must not persist, got %s", got.Status)
	}
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	item := enqueue(t, store, "Race")
	advance(t, store, item.ID)
	if _, err := store.Transition(context.Background(), item.ID, domain.StatusPublishing, domain.StatusAwaitingApproval, nil); err != nil {
		t.Fatalf("reset transition: %v", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Transition(context.Background(), item.ID, domain.StatusAwaitingApproval, domain.StatusPublishing, nil)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestStoresSharingRootHaveOneWinner(t *testing.T) {
	t.Parallel()

	first, root := newTestStore(t)
	second, err := NewFileStore(root, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	item := enqueue(t, first, "Shared")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		store := first
		if i%2 == 1 {
			store = second
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Transition(context.Background(), item.ID, domain.StatusPending, domain.StatusProcessing, nil)
			switch {
			case err == nil:
				mu.Lock()
				wins++
				mu.Unlock()
			case !errors.Is(err, ports.ErrStatusConflict):
				t.Errorf("unexpected transition error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner across stores, got %d", wins)
	}
}

func TestClaimIsExclusive(t *testing.T) {
	t.Parallel()

	first, root := newTestStore(t)
	second, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	release, err := first.Claim()
	if err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}
	if _, err := second.Claim(); !errors.Is(err, ErrQueueServed) {
		t.Fatalf("expected ErrQueueServed, got %v", err)
	}
	if err := release(); err != nil {
		t.Fatalf("release returned error: %v", err)
	}

	again, err := second.Claim()
	if err != nil {
		t.Fatalf("Claim after release returned error: %v", err)
	}
	_ = again()
}

func TestArchiveMovesPair(t *testing.T) {
	t.Parallel()

	store, root := newTestStore(t)
	item := enqueue(t, store, "Ship it")
	advance(t, store, item.ID)

	archived, err := store.Archive(context.Background(), item.ID, func(i *domain.ContentItem) {
		i.AppendAudit(domain.AuditEntry{Action: "publish", Outcome: domain.OutcomeSuccess})
	})
	if err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}
	if archived.Status != domain.StatusPublished {
		t.Fatalf("expected published, got %s", archived.Status)
	}

	assertLocation(t, root, item, "archive")

	published := domain.StatusPublished
	listed, err := store.List(context.Background(), &published)
	if err != nil || len(listed) != 1 || listed[0].ID != item.ID {
		t.Fatalf("expected archived item listed, got %v (%v)", listed, err)
	}
	if len(listed[0].AuditTrail) != 1 {
		t.Fatalf("expected audit entry persisted, got %d", len(listed[0].AuditTrail))
	}
}

func TestArchiveRejectsWrongStatus(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	item := enqueue(t, store, "Too early")
	if _, err := store.Archive(context.Background(), item.ID, nil); !errors.Is(err, ports.ErrStatusConflict) {
		t.Fatalf("expected status conflict, got %v", err)
	}
}

func TestArchiveCrashRecovery(t *testing.T) {
	t.Parallel()

	for _, stage := range []string{stageContentMoved, stageRecordRewritten} {
		stage := stage
		t.Run(stage, func(t *testing.T) {
			t.Parallel()

			store, root := newTestStore(t)
			item := enqueue(t, store, "Crash "+stage)
			advance(t, store, item.ID)

			crash := errors.New("simulated crash")
			store.afterStage = func(s string) error {
				if s == stage {
					return crash
				}
				return nil
			}
			if _, err := store.Archive(context.Background(), item.ID, nil); !errors.Is(err, crash) {
				t.Fatalf("expected simulated crash, got %v", err)
			}
			store.afterStage = nil

			// The record still lives in exactly one directory.
			inIncoming := fileExists(filepath.Join(root, "incoming", item.ID+".json"))
			inArchive := fileExists(filepath.Join(root, "archive", item.ID+".json"))
			if inIncoming == inArchive {
				t.Fatalf("record must be in exactly one directory (incoming=%t archive=%t)", inIncoming, inArchive)
			}

			issues, err := store.Verify(context.Background())
			if err != nil {
				t.Fatalf("Verify returned error: %v", err)
			}
			if len(issues) == 0 {
				t.Fatal("expected partial archive to be reported")
			}

			finished, err := store.Recover(context.Background())
			if err != nil {
				t.Fatalf("Recover returned error: %v", err)
			}
			if len(finished) != 1 || finished[0] != item.ID {
				t.Fatalf("expected %s recovered, got %v", item.ID, finished)
			}

			assertLocation(t, root, item, "archive")
			got, err := store.Get(context.Background(), item.ID)
			if err != nil {
				t.Fatalf("Get returned error: %v", err)
			}
			if got.Status != domain.StatusPublished {
				t.Fatalf("expected published after recovery, got %s", got.Status)
			}
			if issues, _ := store.Verify(context.Background()); len(issues) != 0 {
				t.Fatalf("expected clean store after recovery, got %v", issues)
			}
		})
	}
}

func TestVerifyAndListDetectCorruption(t *testing.T) {
	t.Parallel()

	store, root := newTestStore(t)
	good := enqueue(t, store, "Good")
	lost := enqueue(t, store, "Lost content")

	if err := os.Remove(filepath.Join(root, "incoming", lost.ContentFile)); err != nil {
		t.Fatalf("remove content: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "incoming", "orphan.html"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write orphan: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "incoming", "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write broken record: %v", err)
	}

	if _, err := store.Get(context.Background(), lost.ID); !errors.Is(err, ports.ErrCorruptPair) {
		t.Fatalf("expected corrupt pair, got %v", err)
	}

	issues, err := store.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	var problems []string
	for _, issue := range issues {
		problems = append(problems, issue.File+": "+issue.Problem)
	}
	joined := strings.Join(problems, "\n")
	for _, want := range []string{"broken.json: unreadable record", lost.ID + ".json: record without content", "orphan.html: content file without record"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing issue %q in:\n%s", want, joined)
		}
	}

	items, err := store.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	ids := map[string]bool{}
	for _, item := range items {
		ids[item.ID] = true
	}
	if !ids[good.ID] || ids["broken"] {
		t.Fatalf("unexpected listing %v", ids)
	}
}

func TestGetUnknownItem(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	for _, id := range []string{"missing", "../etc/passwd", ""} {
		if _, err := store.Get(context.Background(), id); !errors.Is(err, ports.ErrNotFound) {
			t.Fatalf("Get(%q): expected not found, got %v", id, err)
		}
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Hello, World!":       "hello-world",
		"  Ação   rápida -- já": "acao-rapida-ja",
		"snake_case stays":    "snake_case-stays",
		"!!!":                 "fallback",
		"A very long title that keeps going and going well past the limit": "a-very-long-title-that-keeps-going-and-going-well",
	}
	for in, want := range cases {
		if got := Slugify(in, "fallback"); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func assertLocation(t *testing.T, root string, item domain.ContentItem, want string) {
	t.Helper()
	other := "incoming"
	if want == "incoming" {
		other = "archive"
	}
	for _, name := range []string{item.ContentFile, item.ID + ".json"} {
		if !fileExists(filepath.Join(root, want, name)) {
			t.Fatalf("%s missing from %s", name, want)
		}
		if fileExists(filepath.Join(root, other, name)) {
			t.Fatalf("%s still present in %s", name, other)
		}
	}
}
