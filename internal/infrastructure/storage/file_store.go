package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

const (
	incomingDir = "incoming"
	archiveDir  = "archive"
	recordExt   = ".json"
	defaultExt  = ".txt"
	nameLayout  = "20060102_150405"

	// writeLockFile is held by every process while it changes the queue.
	writeLockFile = ".queue.lock"
	// serviceLockFile is held by the one process serving the queue.
	serviceLockFile = ".serve.lock"
)

// ErrQueueServed reports that another process already holds the queue.
var ErrQueueServed = errors.New("queue is held by another running process")

// Archive stages, in commit order.
const (
	stageContentMoved    = "content-moved"
	stageRecordRewritten = "record-rewritten"
)

// FileStore keeps every item as a content file plus a JSON record sharing
// the same base name. The record's directory decides where the item lives.
type FileStore struct {
	root     string
	incoming string
	archive  string
	now      func() time.Time
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// afterStage lets tests stop an archive between renames.
	afterStage func(stage string) error
}

var _ ports.ItemStore = (*FileStore)(nil)

// Option customizes a FileStore during construction.
type Option func(*FileStore)

// WithClock overrides the clock used for names and timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *FileStore) {
		s.now = clock
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FileStore) {
		s.logger = logger
	}
}

// NewFileStore prepares the queue directories under root.
func NewFileStore(root string, opts ...Option) (*FileStore, error) {
	s := &FileStore{
		root:     root,
		incoming: filepath.Join(root, incomingDir),
		archive:  filepath.Join(root, archiveDir),
		now:      time.Now,
		logger:   slog.Default(),
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "store")

	for _, dir := range []string{s.incoming, s.archive} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create queue dir: %w", err)
		}
	}
	return s, nil
}

// Enqueue stores content and a Pending record under a fresh, unique name.
func (s *FileStore) Enqueue(ctx context.Context, item domain.ContentItem, content []byte) (domain.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.ContentItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.lockQueue()
	if err != nil {
		return domain.ContentItem{}, err
	}
	defer unlock()

	now := s.now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.Status == "" {
		item.Status = domain.StatusPending
	}
	if item.Status != domain.StatusPending {
		return domain.ContentItem{}, fmt.Errorf("enqueue: new items must be %s, got %s", domain.StatusPending, item.Status)
	}
	if err := item.CheckInvariants(); err != nil {
		return domain.ContentItem{}, fmt.Errorf("enqueue: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(item.SourceName))
	if ext == "" || ext == recordExt {
		ext = defaultExt
	}
	fallback := strings.TrimSuffix(filepath.Base(item.SourceName), filepath.Ext(item.SourceName))
	slug := Slugify(item.RawMetadata.Title, Slugify(fallback, "content"))
	base := item.CreatedAt.Format(nameLayout) + "_" + slug

	id := base
	for n := 2; s.taken(id, ext); n++ {
		id = base + "_" + strconv.Itoa(n)
	}
	item.ID = id
	item.ContentFile = id + ext

	contentPath := filepath.Join(s.incoming, item.ContentFile)
	if err := writeAtomic(contentPath, content); err != nil {
		return domain.ContentItem{}, fmt.Errorf("write content: %w", err)
	}
	if err := s.writeRecord(s.incoming, item); err != nil {
		_ = os.Remove(contentPath)
		return domain.ContentItem{}, err
	}

	s.logger.Info("item enqueued", "id", item.ID, "requester", item.Requester)
	return item.Clone(), nil
}

// Get loads the item from whichever directory holds its record.
func (s *FileStore) Get(ctx context.Context, id string) (domain.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.ContentItem{}, err
	}
	unlock, err := s.lock(id)
	if err != nil {
		return domain.ContentItem{}, err
	}
	defer unlock()

	item, _, err := s.load(id)
	return item, err
}

// Transition applies mutate and moves id from -> to while holding the item lock.
func (s *FileStore) Transition(ctx context.Context, id string, from, to domain.Status, mutate func(*domain.ContentItem)) (domain.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.ContentItem{}, err
	}
	if to == domain.StatusPublished {
		return domain.ContentItem{}, fmt.Errorf("transition %s: published items must be archived", id)
	}
	if !domain.CanTransition(from, to) {
		return domain.ContentItem{}, fmt.Errorf("transition %s: %s -> %s is not allowed", id, from, to)
	}

	unlock, err := s.lock(id)
	if err != nil {
		return domain.ContentItem{}, err
	}
	defer unlock()

	item, dir, err := s.load(id)
	if err != nil {
		return domain.ContentItem{}, err
	}
	if dir != s.incoming || item.Status != from {
		return domain.ContentItem{}, fmt.Errorf("transition %s: stored status is %s, expected %s: %w",
			id, item.Status, from, ports.ErrStatusConflict)
	}

	if mutate != nil {
		mutate(&item)
	}
	item.ID = id
	item.Status = to
	item.UpdatedAt = s.now().UTC()
	if err := item.CheckInvariants(); err != nil {
		return domain.ContentItem{}, fmt.Errorf("transition %s: %w", id, err)
	}

	if err := s.writeRecord(s.incoming, item); err != nil {
		return domain.ContentItem{}, err
	}
	s.logger.Debug("item transitioned", "id", id, "from", from, "to", to)
	return item.Clone(), nil
}

// AppendAudit adds entries to the item's trail without changing its status.
func (s *FileStore) AppendAudit(ctx context.Context, id string, entries ...domain.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	unlock, err := s.lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	item, dir, err := s.load(id)
	if err != nil {
		return err
	}
	item.AppendAudit(entries...)
	item.UpdatedAt = s.now().UTC()
	return s.writeRecord(dir, item)
}

// Archive moves a Publishing item to the archive as Published. The content
// file moves first; the record rename is the commit point.
func (s *FileStore) Archive(ctx context.Context, id string, mutate func(*domain.ContentItem)) (domain.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.ContentItem{}, err
	}
	unlock, err := s.lock(id)
	if err != nil {
		return domain.ContentItem{}, err
	}
	defer unlock()

	item, dir, err := s.load(id)
	if err != nil {
		return domain.ContentItem{}, err
	}
	if dir != s.incoming || item.Status != domain.StatusPublishing {
		return domain.ContentItem{}, fmt.Errorf("archive %s: stored status is %s: %w", id, item.Status, ports.ErrStatusConflict)
	}

	if mutate != nil {
		mutate(&item)
	}
	item.ID = id
	item.Status = domain.StatusPublished
	item.UpdatedAt = s.now().UTC()
	if err := item.CheckInvariants(); err != nil {
		return domain.ContentItem{}, fmt.Errorf("archive %s: %w", id, err)
	}

	if err := s.commitArchive(item); err != nil {
		return domain.ContentItem{}, err
	}
	s.logger.Info("item archived", "id", id)
	return item.Clone(), nil
}

func (s *FileStore) commitArchive(item domain.ContentItem) error {
	src := filepath.Join(s.incoming, item.ContentFile)
	dst := filepath.Join(s.archive, item.ContentFile)
	if _, err := os.Stat(src); err == nil {
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("archive %s: move content: %w", item.ID, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("archive %s: stat content: %w", item.ID, err)
	}
	if err := s.stage(stageContentMoved); err != nil {
		return err
	}

	if err := s.writeRecord(s.incoming, item); err != nil {
		return err
	}
	if err := s.stage(stageRecordRewritten); err != nil {
		return err
	}

	if err := os.Rename(s.recordPath(s.incoming, item.ID), s.recordPath(s.archive, item.ID)); err != nil {
		return fmt.Errorf("archive %s: move record: %w", item.ID, err)
	}
	syncDir(s.archive)
	syncDir(s.incoming)
	return nil
}

// List returns items in both directories, optionally filtered by status.
// Unreadable records are logged and skipped; Verify reports them.
func (s *FileStore) List(ctx context.Context, status *domain.Status) ([]domain.ContentItem, error) {
	var out []domain.ContentItem
	for _, dir := range []string{s.incoming, s.archive} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids, err := recordIDs(dir)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			item, err := readRecord(s.recordPath(dir, id))
			if err != nil {
				s.logger.Warn("skipping unreadable record", "dir", dir, "id", id, "error", err)
				continue
			}
			if status != nil && item.Status != *status {
				continue
			}
			out = append(out, item)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Recover completes archives interrupted between the content move and the
// record rename. It returns the IDs it finished.
func (s *FileStore) Recover(ctx context.Context) ([]string, error) {
	ids, err := recordIDs(s.incoming)
	if err != nil {
		return nil, err
	}

	var finished []string
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return finished, err
		}
		done, err := s.recoverOne(id)
		if err != nil {
			return finished, err
		}
		if done {
			finished = append(finished, id)
		}
	}
	return finished, nil
}

func (s *FileStore) recoverOne(id string) (bool, error) {
	unlock, err := s.lock(id)
	if err != nil {
		return false, err
	}
	defer unlock()

	path := s.recordPath(s.incoming, id)
	item, err := readRecord(path)
	if err != nil {
		s.logger.Warn("cannot recover unreadable record", "id", id, "error", err)
		return false, nil
	}

	inIncoming := fileExists(filepath.Join(s.incoming, item.ContentFile))
	inArchive := fileExists(filepath.Join(s.archive, item.ContentFile))

	switch {
	case item.Status == domain.StatusPublished:
	case item.Status == domain.StatusPublishing && !inIncoming && inArchive:
		item.Status = domain.StatusPublished
		item.UpdatedAt = s.now().UTC()
		item.AppendAudit(domain.AuditEntry{
			Timestamp: item.UpdatedAt,
			Action:    "archive-recovered",
			Outcome:   domain.OutcomeWarning,
			Detail:    "archive completed after restart",
		})
		if err := item.CheckInvariants(); err != nil {
			return false, fmt.Errorf("recover %s: %w", id, err)
		}
	default:
		return false, nil
	}

	if err := s.commitArchive(item); err != nil {
		return false, fmt.Errorf("recover %s: %w", id, err)
	}
	s.logger.Warn("completed interrupted archive", "id", id)
	return true, nil
}

// Issue is one consistency problem found by Verify.
type Issue struct {
	Dir     string
	File    string
	Problem string
}

// Verify reports content files without records, records without content,
// and records that cannot be decoded.
func (s *FileStore) Verify(ctx context.Context) ([]Issue, error) {
	var issues []Issue
	for _, dir := range []string{s.incoming, s.archive} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}

		contents := make(map[string]string)
		records := make(map[string]bool)
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasPrefix(name, ".") {
				continue
			}
			if strings.HasSuffix(name, recordExt) {
				records[strings.TrimSuffix(name, recordExt)] = true
				continue
			}
			contents[strings.TrimSuffix(name, filepath.Ext(name))] = name
		}

		for id := range records {
			item, err := readRecord(s.recordPath(dir, id))
			if err != nil {
				issues = append(issues, Issue{Dir: dir, File: id + recordExt, Problem: "unreadable record: " + err.Error()})
				continue
			}
			if !fileExists(filepath.Join(dir, item.ContentFile)) {
				issues = append(issues, Issue{Dir: dir, File: id + recordExt, Problem: "record without content file"})
			}
			delete(contents, strings.TrimSuffix(item.ContentFile, filepath.Ext(item.ContentFile)))
		}
		for _, name := range contents {
			issues = append(issues, Issue{Dir: dir, File: name, Problem: "content file without record"})
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Dir != issues[j].Dir {
			return issues[i].Dir < issues[j].Dir
		}
		return issues[i].File < issues[j].File
	})
	return issues, nil
}

// ContentPath returns the current location of the item's content file.
func (s *FileStore) ContentPath(item domain.ContentItem) string {
	if item.Status.Archived() {
		return filepath.Join(s.archive, item.ContentFile)
	}
	return filepath.Join(s.incoming, item.ContentFile)
}

func (s *FileStore) load(id string) (domain.ContentItem, string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return domain.ContentItem{}, "", fmt.Errorf("item %q: %w", id, ports.ErrNotFound)
	}
	for _, dir := range []string{s.incoming, s.archive} {
		path := s.recordPath(dir, id)
		item, err := readRecord(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return domain.ContentItem{}, "", fmt.Errorf("item %s: %w: %v", id, ports.ErrCorruptPair, err)
		}
		if !fileExists(filepath.Join(dir, item.ContentFile)) {
			return domain.ContentItem{}, "", fmt.Errorf("item %s: content %s missing: %w", id, item.ContentFile, ports.ErrCorruptPair)
		}
		return item, dir, nil
	}
	return domain.ContentItem{}, "", fmt.Errorf("item %s: %w", id, ports.ErrNotFound)
}

func (s *FileStore) taken(id, ext string) bool {
	for _, dir := range []string{s.incoming, s.archive} {
		if fileExists(s.recordPath(dir, id)) || fileExists(filepath.Join(dir, id+ext)) {
			return true
		}
	}
	return false
}

func (s *FileStore) writeRecord(dir string, item domain.ContentItem) error {
	raw, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record %s: %w", item.ID, err)
	}
	if err := writeAtomic(s.recordPath(dir, item.ID), raw); err != nil {
		return fmt.Errorf("write record %s: %w", item.ID, err)
	}
	return nil
}

func (s *FileStore) recordPath(dir, id string) string {
	return filepath.Join(dir, id+recordExt)
}

// Claim takes the service lock on the queue root and returns its release.
// It fails with ErrQueueServed while another process holds the lock.
func (s *FileStore) Claim() (func() error, error) {
	fl := flock.New(filepath.Join(s.root, serviceLockFile))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("claim queue: %w", err)
	}
	if !ok {
		return nil, ErrQueueServed
	}
	return fl.Unlock, nil
}

// lock serializes work on id within the process, then takes the queue write
// lock shared with other processes using the same root.
func (s *FileStore) lock(id string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	unlock, err := s.lockQueue()
	if err != nil {
		l.Unlock()
		return nil, err
	}
	return func() {
		unlock()
		l.Unlock()
	}, nil
}

// lockQueue takes the file lock. Each call opens its own descriptor, so
// callers in one process exclude each other as well.
func (s *FileStore) lockQueue() (func(), error) {
	fl := flock.New(filepath.Join(s.root, writeLockFile))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("lock queue: %w", err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("unlock queue failed", "error", err)
		}
	}, nil
}

func (s *FileStore) stage(name string) error {
	if s.afterStage == nil {
		return nil
	}
	return s.afterStage(name)
}

func readRecord(path string) (domain.ContentItem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.ContentItem{}, err
	}
	var item domain.ContentItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.ContentItem{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if item.ID == "" || item.ContentFile == "" {
		return domain.ContentItem{}, fmt.Errorf("decode %s: missing id or content file", filepath.Base(path))
	}
	return item, nil
}

func recordIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, recordExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// writeAtomic writes data to a hidden temp file in the target directory,
// syncs it and renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	syncDir(dir)
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
