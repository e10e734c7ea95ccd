package rod

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

var (
	_ output.TabPort      = (*BrowserAdapter)(nil)
	_ output.DocumentPort = (*document)(nil)
)

const (
	defaultSlowMotion = 0
	defaultTimeout    = 10 * time.Second
	maxElements       = 2000
	focusPollInterval = time.Second
)

var ErrClosed = errors.New("browser is closed")

// TabListener receives tab focus and close events from Watch.
type TabListener interface {
	TabActivated(ctx context.Context, id entity.TabID) error
	TabClosed(ctx context.Context, id entity.TabID)
}

type BrowserConfig struct {
	Headless   bool
	SlowMotion time.Duration
	Timeout    time.Duration
	NoSandbox  bool
	DevTools   bool
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless:   false,
		SlowMotion: defaultSlowMotion,
		Timeout:    defaultTimeout,
	}
}

// BrowserAdapter drives a Chromium instance over the DevTools protocol. The
// most recently opened or activated page is the active tab.
type BrowserAdapter struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
	logger   output.LoggerPort

	mu     sync.Mutex
	active entity.TabID
	closed bool
}

func NewBrowserAdapter(ctx context.Context, cfg BrowserConfig, logger output.LoggerPort) (*BrowserAdapter, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		Devtools(cfg.DevTools).
		NoSandbox(cfg.NoSandbox)

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().
		ControlURL(url).
		SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &BrowserAdapter{
		browser:  browser,
		launcher: l,
		timeout:  cfg.Timeout,
		logger:   logger.WithField("component", "rod"),
	}, nil
}

// OpenTab opens url in a new tab and makes it active.
func (b *BrowserAdapter) OpenTab(ctx context.Context, url string) (entity.TabInfo, error) {
	if !b.IsReady() {
		return entity.TabInfo{}, ErrClosed
	}

	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return entity.TabInfo{}, fmt.Errorf("open tab %s: %w", url, err)
	}
	if err := page.Timeout(b.timeout).WaitLoad(); err != nil {
		b.logger.Warn("Page load did not finish", "url", url, "error", err)
	}

	id := entity.TabID(page.TargetID)
	b.mu.Lock()
	b.active = id
	b.mu.Unlock()

	return b.info(page)
}

// ActivateTab brings the tab to the front and makes it active.
func (b *BrowserAdapter) ActivateTab(ctx context.Context, id entity.TabID) error {
	page, err := b.page(ctx, id)
	if err != nil {
		return err
	}
	if _, err := page.Activate(); err != nil {
		return fmt.Errorf("activate tab %s: %w", id, err)
	}

	b.mu.Lock()
	b.active = id
	b.mu.Unlock()
	return nil
}

func (b *BrowserAdapter) Tabs(ctx context.Context) ([]entity.TabInfo, error) {
	if !b.IsReady() {
		return nil, ErrClosed
	}

	pages, err := b.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}

	tabs := make([]entity.TabInfo, 0, len(pages))
	for _, p := range pages {
		info, err := b.info(p)
		if err != nil {
			continue
		}
		tabs = append(tabs, info)
	}
	return tabs, nil
}

func (b *BrowserAdapter) ActiveTab(ctx context.Context) (entity.TabInfo, error) {
	b.mu.Lock()
	active := b.active
	b.mu.Unlock()

	if active != "" {
		if page, err := b.page(ctx, active); err == nil {
			return b.info(page)
		}
	}

	tabs, err := b.Tabs(ctx)
	if err != nil {
		return entity.TabInfo{}, err
	}
	if len(tabs) == 0 {
		return entity.TabInfo{}, entity.ErrNoTab
	}
	return tabs[0], nil
}

func (b *BrowserAdapter) Document(ctx context.Context, id entity.TabID) (output.DocumentPort, error) {
	page, err := b.page(ctx, id)
	if err != nil {
		return nil, err
	}
	return &document{page: page, timeout: b.timeout}, nil
}

// Watch forwards tab events to l until ctx is done. A newly created page
// counts as activated, matching how the browser focuses new tabs. Focusing an
// existing tab has no DevTools event, so page visibility is polled for it.
func (b *BrowserAdapter) Watch(ctx context.Context, l TabListener) error {
	if !b.IsReady() {
		return ErrClosed
	}
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b.browser); err != nil {
		return fmt.Errorf("discover targets: %w", err)
	}

	go b.pollFocus(ctx, l)

	wait := b.browser.Context(ctx).EachEvent(
		func(e *proto.TargetTargetCreated) {
			if e.TargetInfo == nil || e.TargetInfo.Type != proto.TargetTargetInfoTypePage {
				return
			}
			id := entity.TabID(e.TargetInfo.TargetID)
			b.setActive(id)
			go b.notifyActivated(ctx, l, id)
		},
		func(e *proto.TargetTargetDestroyed) {
			id := entity.TabID(e.TargetID)
			b.mu.Lock()
			if b.active == id {
				b.active = ""
			}
			b.mu.Unlock()
			go l.TabClosed(ctx, id)
		},
	)
	wait()
	return ctx.Err()
}

func (b *BrowserAdapter) setActive(id entity.TabID) {
	b.mu.Lock()
	b.active = id
	b.mu.Unlock()
}

func (b *BrowserAdapter) notifyActivated(ctx context.Context, l TabListener, id entity.TabID) {
	if err := l.TabActivated(ctx, id); err != nil {
		b.logger.Warn("Tab switch failed", "tab", id, "error", err)
	}
}

func (b *BrowserAdapter) pollFocus(ctx context.Context, l TabListener) {
	ticker := time.NewTicker(focusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !b.IsReady() {
			return
		}

		b.mu.Lock()
		active := b.active
		b.mu.Unlock()

		id, ok := pickFocused(active, b.visibleTabs(ctx))
		if !ok {
			continue
		}
		b.logger.Debug("Tab focused", "tab", id, "previous", active)
		b.setActive(id)
		b.notifyActivated(ctx, l, id)
	}
}

// visibleTabs lists pages whose document is visible, in target order.
func (b *BrowserAdapter) visibleTabs(ctx context.Context) []entity.TabID {
	pages, err := b.browser.Context(ctx).Pages()
	if err != nil {
		return nil
	}
	var visible []entity.TabID
	for _, page := range pages {
		res, err := page.Timeout(b.timeout).Eval(`() => document.visibilityState`)
		if err != nil {
			continue
		}
		if res.Value.Str() == "visible" {
			visible = append(visible, entity.TabID(page.TargetID))
		}
	}
	return visible
}

// pickFocused returns the tab that took focus from active. Nothing changes
// while active is still visible, which also covers headless browsers where
// every page is visible.
func pickFocused(active entity.TabID, visible []entity.TabID) (entity.TabID, bool) {
	if len(visible) == 0 {
		return "", false
	}
	for _, id := range visible {
		if id == active {
			return "", false
		}
	}
	return visible[0], true
}

func (b *BrowserAdapter) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.browser != nil
}

func (b *BrowserAdapter) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			b.logger.Warn("Browser close failed", "error", err)
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}

func (b *BrowserAdapter) page(ctx context.Context, id entity.TabID) (*rod.Page, error) {
	if !b.IsReady() {
		return nil, ErrClosed
	}
	page, err := b.browser.Context(ctx).PageFromTarget(proto.TargetTargetID(id))
	if err != nil {
		return nil, fmt.Errorf("tab %s: %w", id, entity.ErrNoTab)
	}
	return page, nil
}

func (b *BrowserAdapter) info(page *rod.Page) (entity.TabInfo, error) {
	info, err := page.Info()
	if err != nil {
		return entity.TabInfo{}, fmt.Errorf("tab info: %w", err)
	}
	return entity.TabInfo{ID: entity.TabID(info.TargetID), URL: info.URL, Title: info.Title}, nil
}

// document is one live page. Element refs are attribute selectors stamped
// onto the DOM so they stay valid between Elements and Activate.
type document struct {
	page    *rod.Page
	timeout time.Duration
}

func (d *document) eval(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	res, err := d.page.Context(ctx).Timeout(d.timeout).Eval(js, args...)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

func (d *document) URL(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

func (d *document) HTML(ctx context.Context) (string, error) {
	html, err := d.page.Context(ctx).Timeout(d.timeout).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

func (d *document) ScrollBy(ctx context.Context, dy int) error {
	if _, err := d.eval(ctx, `(dy) => window.scrollBy({top: dy, behavior: "smooth"})`, dy); err != nil {
		return fmt.Errorf("scroll by %d: %w", dy, err)
	}
	return nil
}

func (d *document) ScrollTo(ctx context.Context, y int) error {
	if _, err := d.eval(ctx, `(y) => window.scrollTo({top: y, behavior: "smooth"})`, y); err != nil {
		return fmt.Errorf("scroll to %d: %w", y, err)
	}
	return nil
}

func (d *document) ScrollHeight(ctx context.Context) (int, error) {
	v, err := d.eval(ctx, `() => document.documentElement.scrollHeight || document.body.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("scroll height: %w", err)
	}
	return v.Int(), nil
}

func (d *document) Query(ctx context.Context, selector string) (string, bool, error) {
	v, err := d.eval(ctx, `
		(sel) => {`+refScript+`
			let el
			try { el = document.querySelector(sel) } catch (e) { return "" }
			return el ? voiceNavRef(el) : ""
		}`, selector)
	if err != nil {
		return "", false, fmt.Errorf("query %q: %w", selector, err)
	}
	ref := v.Str()
	return ref, ref != "", nil
}

func (d *document) Elements(ctx context.Context) ([]entity.ElementInfo, error) {
	v, err := d.eval(ctx, `
		(limit) => {`+refScript+`
			const out = []
			for (const el of document.querySelectorAll("body *")) {
				if (out.length >= limit) break
				if (el.tagName === "SCRIPT" || el.tagName === "STYLE") continue
				let text
				if (el.tagName === "INPUT" || el.tagName === "TEXTAREA" || el.tagName === "SELECT") {
					text = el.value || el.getAttribute("placeholder") || el.getAttribute("aria-label") || ""
				} else {
					text = (el.innerText || el.textContent || "").trim() || el.getAttribute("aria-label") || ""
				}
				out.push({
					ref: voiceNavRef(el),
					tag: el.tagName,
					role: el.getAttribute("role") || "",
					type: (el.getAttribute("type") || "").toLowerCase(),
					text: text.trim(),
				})
			}
			return out
		}`, maxElements)
	if err != nil {
		return nil, fmt.Errorf("list elements: %w", err)
	}

	items := v.Arr()
	elements := make([]entity.ElementInfo, 0, len(items))
	for _, item := range items {
		elements = append(elements, entity.ElementInfo{
			Ref:  item.Get("ref").Str(),
			Tag:  item.Get("tag").Str(),
			Role: item.Get("role").Str(),
			Type: item.Get("type").Str(),
			Text: item.Get("text").Str(),
		})
	}
	return elements, nil
}

func (d *document) Activate(ctx context.Context, ref string) error {
	v, err := d.eval(ctx, `
		(sel) => {
			const el = document.querySelector(sel)
			if (!el) return false
			el.scrollIntoView({behavior: "smooth", block: "center"})
			el.click()
			if (typeof el.focus === "function") el.focus()
			return true
		}`, ref)
	if err != nil {
		return fmt.Errorf("activate %s: %w", ref, err)
	}
	if !v.Bool() {
		return fmt.Errorf("%s: %w", ref, entity.ErrElementNotFound)
	}
	return nil
}

func (d *document) InjectStyle(ctx context.Context, id, css string) error {
	_, err := d.eval(ctx, `
		(id, css) => {
			const style = document.createElement("style")
			style.id = id
			style.textContent = css
			;(document.head || document.documentElement).appendChild(style)
		}`, id, css)
	if err != nil {
		return fmt.Errorf("inject style: %w", err)
	}
	return nil
}

// refScript is spliced into function bodies. It defines voiceNavRef, which
// stamps el with a stable ref attribute and returns the selector for it.
const refScript = `
	const voiceNavRef = (el) => {
		const attr = "data-voice-nav-ref"
		if (!el.hasAttribute(attr)) {
			window.__voiceNavRefs = (window.__voiceNavRefs || 0) + 1
			el.setAttribute(attr, String(window.__voiceNavRefs))
		}
		return "[" + attr + "=\"" + el.getAttribute(attr) + "\"]"
	};`
