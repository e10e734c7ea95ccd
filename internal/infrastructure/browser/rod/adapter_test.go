package rod

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-navigator/internal/domain/entity"
	"voice-navigator/internal/infrastructure/logger"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Headless)
	assert.Equal(t, time.Duration(defaultSlowMotion), cfg.SlowMotion)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.False(t, cfg.NoSandbox)
	assert.False(t, cfg.DevTools)
}

// newAdapter launches a headless browser or skips when none is available.
func newAdapter(t *testing.T) *BrowserAdapter {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}

	cfg := DefaultConfig()
	cfg.Headless = true
	cfg.NoSandbox = true

	adapter, err := NewBrowserAdapter(context.Background(), cfg, logger.NewNop())
	if err != nil {
		t.Skipf("Chromium not available: %v", err)
	}
	t.Cleanup(adapter.Close)
	return adapter
}

func serve(t *testing.T, body string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server.URL + "/"
}

func openDocument(t *testing.T, adapter *BrowserAdapter, body string) (entity.TabInfo, *document) {
	t.Helper()
	ctx := context.Background()

	tab, err := adapter.OpenTab(ctx, serve(t, body))
	require.NoError(t, err)

	doc, err := adapter.Document(ctx, tab.ID)
	require.NoError(t, err)
	return tab, doc.(*document)
}

func TestPickFocused(t *testing.T) {
	tests := []struct {
		name    string
		active  entity.TabID
		visible []entity.TabID
		want    entity.TabID
		changed bool
	}{
		{name: "nothing visible", active: "a"},
		{name: "active still visible", active: "a", visible: []entity.TabID{"b", "a"}},
		{name: "user switched tabs", active: "a", visible: []entity.TabID{"b"}, want: "b", changed: true},
		{name: "no active tab yet", visible: []entity.TabID{"c", "d"}, want: "c", changed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := pickFocused(tt.active, tt.visible)
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBrowserAdapter_Tabs(t *testing.T) {
	adapter := newAdapter(t)
	ctx := context.Background()

	first, _ := openDocument(t, adapter, BasicHTML)
	assert.Equal(t, "Test Page", first.Title)

	active, err := adapter.ActiveTab(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	second, _ := openDocument(t, adapter, InteractiveHTML)
	active, err = adapter.ActiveTab(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	require.NoError(t, adapter.ActivateTab(ctx, first.ID))
	active, err = adapter.ActiveTab(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	tabs, err := adapter.Tabs(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(tabs), 2)

	_, err = adapter.Document(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNoTab)
}

func TestDocument_Scroll(t *testing.T) {
	adapter := newAdapter(t)
	ctx := context.Background()
	_, doc := openDocument(t, adapter, ScrollableHTML)

	height, err := doc.ScrollHeight(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, height, 5000)

	require.NoError(t, doc.ScrollBy(ctx, 300))
	assert.Eventually(t, func() bool {
		v, err := doc.eval(ctx, `() => window.scrollY`)
		return err == nil && v.Int() == 300
	}, 3*time.Second, 50*time.Millisecond)

	require.NoError(t, doc.ScrollTo(ctx, 0))
	assert.Eventually(t, func() bool {
		v, err := doc.eval(ctx, `() => window.scrollY`)
		return err == nil && v.Int() == 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestDocument_QueryAndActivate(t *testing.T) {
	adapter := newAdapter(t)
	ctx := context.Background()
	_, doc := openDocument(t, adapter, InteractiveHTML)

	ref, found, err := doc.Query(ctx, "#btn")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, strings.HasPrefix(ref, `[data-voice-nav-ref="`))

	again, _, err := doc.Query(ctx, "button")
	require.NoError(t, err)
	assert.Equal(t, ref, again, "refs are stable")

	_, found, err = doc.Query(ctx, "[unclosed")
	require.NoError(t, err)
	assert.False(t, found, "invalid selector is no match")

	_, found, err = doc.Query(ctx, "#nothing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, doc.Activate(ctx, ref))
	v, err := doc.eval(ctx, `() => document.getElementById("result").textContent`)
	require.NoError(t, err)
	assert.Equal(t, "Clicked!", v.Str())

	err = doc.Activate(ctx, `[data-voice-nav-ref="9999"]`)
	assert.ErrorIs(t, err, entity.ErrElementNotFound)
}

func TestDocument_Elements(t *testing.T) {
	adapter := newAdapter(t)
	ctx := context.Background()
	_, doc := openDocument(t, adapter, InteractiveHTML)

	elements, err := doc.Elements(ctx)
	require.NoError(t, err)

	byTag := map[string]entity.ElementInfo{}
	for _, el := range elements {
		assert.NotEqual(t, "SCRIPT", el.Tag)
		if _, ok := byTag[el.Tag]; !ok {
			byTag[el.Tag] = el
		}
	}
	assert.Equal(t, "Sign in", byTag["BUTTON"].Text)
	assert.Equal(t, "Search", byTag["INPUT"].Text)
	assert.Equal(t, "text", byTag["INPUT"].Type)
	assert.Equal(t, "Next page", byTag["A"].Text)

	require.NoError(t, doc.Activate(ctx, byTag["BUTTON"].Ref))
}

func TestDocument_InjectStyleAndHTML(t *testing.T) {
	adapter := newAdapter(t)
	ctx := context.Background()
	tab, doc := openDocument(t, adapter, BasicHTML)

	require.NoError(t, doc.InjectStyle(ctx, "voice-nav-style-test", "h1 { color: red !important; }"))

	html, err := doc.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, `id="voice-nav-style-test"`)
	assert.Contains(t, html, "Hello World")

	v, err := doc.eval(ctx, `() => getComputedStyle(document.querySelector("h1")).color`)
	require.NoError(t, err)
	assert.Equal(t, "rgb(255, 0, 0)", v.Str())

	url, err := doc.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, tab.URL, url)
}

func TestBrowserAdapter_Close(t *testing.T) {
	adapter := newAdapter(t)

	assert.True(t, adapter.IsReady())
	adapter.Close()
	adapter.Close()
	assert.False(t, adapter.IsReady())

	_, err := adapter.OpenTab(context.Background(), "about:blank")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = adapter.Tabs(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
