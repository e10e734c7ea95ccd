package entity

// ElementInfo is a snapshot of one element in document order. Ref is a CSS
// selector that resolves back to the same element.
type ElementInfo struct {
	Ref  string
	Tag  string
	Role string
	Type string
	Text string
}

type TabInfo struct {
	ID    TabID
	URL   string
	Title string
}

// PageText is the extracted readable content of a page.
type PageText struct {
	Title string
	Text  string
}
