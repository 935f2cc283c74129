package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ContentPublisher/internal/domain"
)

// fakeDriver is an in-memory page. Elements are keyed by locator string.
type fakeDriver struct {
	mu sync.Mutex

	location string
	title    string

	present        map[string]bool
	appearAfter    map[string]int
	queryErr       map[string]error
	notInteract    map[string]bool
	disabled       map[string]bool
	clickErr       map[string]error
	scriptClickErr map[string]error
	dropTyped      map[string]bool
	content        map[string]string

	onClick  map[string]func(*fakeDriver)
	onReload func(*fakeDriver)

	lost bool

	queries     []string
	clicks      []string
	navigations []string
	reloads     int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		title:          "Example",
		present:        map[string]bool{},
		appearAfter:    map[string]int{},
		queryErr:       map[string]error{},
		notInteract:    map[string]bool{},
		disabled:       map[string]bool{},
		clickErr:       map[string]error{},
		scriptClickErr: map[string]error{},
		dropTyped:      map[string]bool{},
		content:        map[string]string{},
		onClick:        map[string]func(*fakeDriver){},
	}
}

func (f *fakeDriver) lostErr() error {
	return fmt.Errorf("browser gone: %w", ErrSessionLost)
}

func (f *fakeDriver) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost {
		return f.lostErr()
	}
	f.navigations = append(f.navigations, url)
	f.location = url
	return nil
}

func (f *fakeDriver) Reload(ctx context.Context) error {
	f.mu.Lock()
	if f.lost {
		f.mu.Unlock()
		return f.lostErr()
	}
	f.reloads++
	hook := f.onReload
	f.mu.Unlock()
	if hook != nil {
		hook(f)
	}
	return nil
}

func (f *fakeDriver) Location(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost {
		return "", f.lostErr()
	}
	return f.location, nil
}

func (f *fakeDriver) Title(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost {
		return "", f.lostErr()
	}
	return f.title, nil
}

func (f *fakeDriver) Query(ctx context.Context, loc Locator) (Element, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := loc.String()
	f.queries = append(f.queries, key)
	if f.lost {
		return Element{}, false, f.lostErr()
	}
	if err := f.queryErr[key]; err != nil {
		return Element{}, false, err
	}
	if n, ok := f.appearAfter[key]; ok {
		if n > 0 {
			f.appearAfter[key] = n - 1
			return Element{}, false, nil
		}
		f.present[key] = true
	}
	if !f.present[key] {
		return Element{}, false, nil
	}
	return Element{Ref: key, Locator: loc}, true, nil
}

func (f *fakeDriver) Interactable(ctx context.Context, el Element) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost {
		return false, f.lostErr()
	}
	return !f.notInteract[el.Ref], nil
}

func (f *fakeDriver) Enabled(ctx context.Context, el Element) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost {
		return false, f.lostErr()
	}
	return !f.disabled[el.Ref], nil
}

func (f *fakeDriver) ScrollIntoView(ctx context.Context, el Element) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost {
		return f.lostErr()
	}
	return nil
}

func (f *fakeDriver) Click(ctx context.Context, el Element) error {
	return f.click(el, f.clickErr, "native")
}

func (f *fakeDriver) ScriptClick(ctx context.Context, el Element) error {
	return f.click(el, f.scriptClickErr, "script")
}

func (f *fakeDriver) click(el Element, errs map[string]error, path string) error {
	f.mu.Lock()
	if f.lost {
		f.mu.Unlock()
		return f.lostErr()
	}
	if err := errs[el.Ref]; err != nil {
		f.mu.Unlock()
		return err
	}
	f.clicks = append(f.clicks, path+":"+el.Ref)
	hook := f.onClick[el.Ref]
	f.mu.Unlock()
	if hook != nil {
		hook(f)
	}
	return nil
}

func (f *fakeDriver) ClearAndType(ctx context.Context, el Element, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost {
		return f.lostErr()
	}
	if f.dropTyped[el.Ref] {
		f.content[el.Ref] = ""
		return nil
	}
	f.content[el.Ref] = text
	return nil
}

func (f *fakeDriver) ScriptSetContent(ctx context.Context, el Element, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost {
		return f.lostErr()
	}
	f.content[el.Ref] = text
	return nil
}

func (f *fakeDriver) Content(ctx context.Context, el Element) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost {
		return "", f.lostErr()
	}
	return f.content[el.Ref], nil
}

func (f *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost {
		return nil, f.lostErr()
	}
	return []byte("\x89PNG"), nil
}

func (f *fakeDriver) Alive(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lost {
		return f.lostErr()
	}
	return nil
}

func (f *fakeDriver) Close() error { return nil }

func (f *fakeDriver) set(mutate func(*fakeDriver)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(f)
}

func (f *fakeDriver) clickLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.clicks...)
}

func (f *fakeDriver) queryLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type memorySink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	err    error
}

func (m *memorySink) Record(ctx context.Context, event domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memorySink) all() []domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEvent(nil), m.events...)
}

var errBoom = errors.New("boom")
