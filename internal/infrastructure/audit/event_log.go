package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/ports"
)

const dayLayout = "2006-01-02"

// EventLog appends execution events to one JSON-lines file per UTC day.
// Lines are never rewritten.
type EventLog struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

var _ ports.AuditSink = (*EventLog)(nil)

// Option customizes an EventLog.
type Option func(*EventLog)

// WithClock overrides the clock used to stamp events and pick files.
func WithClock(clock func() time.Time) Option {
	return func(l *EventLog) {
		l.now = clock
	}
}

// New creates the log directory if needed.
func New(dir string, opts ...Option) (*EventLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	l := &EventLog{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Record appends event to the file of the event's day.
func (l *EventLog) Record(ctx context.Context, event domain.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	event.Timestamp = event.Timestamp.UTC()

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.pathFor(event.Timestamp)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	if _, err := file.Write(line); err != nil {
		_ = file.Close()
		return fmt.Errorf("append audit event: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync audit log: %w", err)
	}
	return file.Close()
}

// Day returns all events recorded on the UTC day of t.
func (l *EventLog) Day(ctx context.Context, t time.Time) ([]domain.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return readEvents(ctx, l.pathFor(t.UTC()))
}

// Tail returns up to n of the most recent events across days.
func (l *EventLog) Tail(ctx context.Context, n int) ([]domain.AuditEvent, error) {
	if n <= 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := l.files()
	if err != nil {
		return nil, err
	}
	var out []domain.AuditEvent
	for i := len(files) - 1; i >= 0 && len(out) < n; i-- {
		events, err := readEvents(ctx, files[i])
		if err != nil {
			return nil, err
		}
		out = append(events, out...)
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

// Stats summarizes events.
type Stats struct {
	Total         int
	Succeeded     int
	Failed        int
	ByKind        map[domain.ErrorKind]int
	AvgDurationMs int64
	LastFailure   *domain.AuditEvent
}

// Stats aggregates events recorded at or after since.
func (l *EventLog) Stats(ctx context.Context, since time.Time) (Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{ByKind: map[domain.ErrorKind]int{}}
	files, err := l.files()
	if err != nil {
		return stats, err
	}

	sinceDay := since.UTC().Format(dayLayout)
	var totalDuration int64
	for _, path := range files {
		if strings.TrimSuffix(filepath.Base(path), ".jsonl") < sinceDay {
			continue
		}
		events, err := readEvents(ctx, path)
		if err != nil {
			return stats, err
		}
		for _, ev := range events {
			if ev.Timestamp.Before(since) {
				continue
			}
			stats.Total++
			totalDuration += ev.DurationMs
			if ev.Success {
				stats.Succeeded++
			} else {
				stats.Failed++
				ev := ev
				stats.LastFailure = &ev
			}
			if ev.ErrorKind != "" {
				stats.ByKind[ev.ErrorKind]++
			}
		}
	}
	if stats.Total > 0 {
		stats.AvgDurationMs = totalDuration / int64(stats.Total)
	}
	return stats, nil
}

func (l *EventLog) pathFor(t time.Time) string {
	return filepath.Join(l.dir, t.Format(dayLayout)+".jsonl")
}

func (l *EventLog) files() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(l.dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func readEvents(ctx context.Context, path string) ([]domain.AuditEvent, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	var events []domain.AuditEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev domain.AuditEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			// A torn final line from a crash is skipped, not fatal.
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return events, nil
}
