package output

import (
	"context"

	"voice-navigator/internal/domain/entity"
)

// DocumentPort is the live document of one tab.
type DocumentPort interface {
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)

	ScrollBy(ctx context.Context, dy int) error
	ScrollTo(ctx context.Context, y int) error
	ScrollHeight(ctx context.Context) (int, error)

	// Query returns a ref for the first element matching selector. An invalid
	// selector is reported as no match.
	Query(ctx context.Context, selector string) (ref string, found bool, err error)
	Elements(ctx context.Context) ([]entity.ElementInfo, error)
	Activate(ctx context.Context, ref string) error

	InjectStyle(ctx context.Context, id, css string) error
}

// DocumentProvider resolves the document of the tab voice control is bound to.
type DocumentProvider interface {
	Document(ctx context.Context) (DocumentPort, error)
}

// TabPort is the browser as a set of tabs.
type TabPort interface {
	Tabs(ctx context.Context) ([]entity.TabInfo, error)
	ActiveTab(ctx context.Context) (entity.TabInfo, error)
	Document(ctx context.Context, id entity.TabID) (DocumentPort, error)
	Close()
}
