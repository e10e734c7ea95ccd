package memdoc

import (
	"context"
	"fmt"
	"sync"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

var _ output.TabPort = (*Browser)(nil)

type tab struct {
	id  entity.TabID
	doc *Document
}

// Browser is an ordered set of in-memory tabs with one active tab.
type Browser struct {
	mu     sync.Mutex
	tabs   []tab
	active entity.TabID
}

func NewBrowser() *Browser {
	return &Browser{}
}

// OpenTab adds a tab and makes it active.
func (b *Browser) OpenTab(id entity.TabID, url, rawHTML string) (*Document, error) {
	doc, err := New(url, rawHTML)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.tabs {
		if t.id == id {
			return nil, fmt.Errorf("tab %s already open", id)
		}
	}
	b.tabs = append(b.tabs, tab{id: id, doc: doc})
	b.active = id
	return doc, nil
}

func (b *Browser) ActivateTab(id entity.TabID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.tabs {
		if t.id == id {
			b.active = id
			return nil
		}
	}
	return fmt.Errorf("tab %s: %w", id, entity.ErrNoTab)
}

func (b *Browser) CloseTab(id entity.TabID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, t := range b.tabs {
		if t.id == id {
			b.tabs = append(b.tabs[:i], b.tabs[i+1:]...)
			break
		}
	}
	if b.active == id {
		b.active = ""
		if n := len(b.tabs); n > 0 {
			b.active = b.tabs[n-1].id
		}
	}
}

func (b *Browser) Tabs(ctx context.Context) ([]entity.TabInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]entity.TabInfo, 0, len(b.tabs))
	for _, t := range b.tabs {
		out = append(out, entity.TabInfo{ID: t.id, URL: t.doc.url})
	}
	return out, nil
}

func (b *Browser) ActiveTab(ctx context.Context) (entity.TabInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.tabs {
		if t.id == b.active {
			return entity.TabInfo{ID: t.id, URL: t.doc.url}, nil
		}
	}
	return entity.TabInfo{}, entity.ErrNoTab
}

func (b *Browser) Document(ctx context.Context, id entity.TabID) (output.DocumentPort, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.tabs {
		if t.id == id {
			return t.doc, nil
		}
	}
	return nil, fmt.Errorf("tab %s: %w", id, entity.ErrNoTab)
}

func (b *Browser) Close() {}
