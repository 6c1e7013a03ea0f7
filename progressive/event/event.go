// Package event defines the records emitted while placeholders are upgraded.
// These are the public contract: sinks, the store, and any consumer of the
// webhook or stdout stream decode these types.
package event

// Role tells which of the two images of a placeholder an event is about.
type Role string

const (
	RoleLow  Role = "low"  // the embedded low-resolution image
	RoleHigh Role = "high" // the appended high-resolution image
)

// State is the lifecycle of one image: unrequested → pending → loaded.
// There is no failure state: an image whose fetch fails stays pending.
type State string

const (
	StateUnrequested State = "unrequested"
	StatePending     State = "pending"
	StateLoaded      State = "loaded"
)

// Load is emitted once per image, when its completion callback has marked
// the element with the loaded class.
type Load struct {
	ID          string `json:"id"` // UUIDv7
	PageID      string `json:"page_id"`
	PageURL     string `json:"page_url,omitempty"`
	Placeholder int    `json:"placeholder"` // index in document order
	Role        Role   `json:"role"`
	URL         string `json:"url"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Format      string `json:"format,omitempty"`
	Bytes       int    `json:"bytes,omitempty"`
	DurationMs  int64  `json:"duration_ms,omitempty"` // fetch time
	Timestamp   int64  `json:"timestamp"`             // epoch milliseconds
}

// Item is the final state of one placeholder.
type Item struct {
	Placeholder int    `json:"placeholder"`
	LowURL      string `json:"low_url,omitempty"`
	HighURL     string `json:"high_url,omitempty"`
	Low         State  `json:"low"`
	High        State  `json:"high"`
	Appended    bool   `json:"appended"` // a high-res element was added
}

// Report summarises one upgrade run, emitted after the page has settled.
type Report struct {
	ID           string `json:"id"`
	PageID       string `json:"page_id"`
	PageURL      string `json:"page_url,omitempty"`
	Placeholders int    `json:"placeholders"`
	Requested    int    `json:"requested"`
	Loaded       int    `json:"loaded"`
	Pending      int    `json:"pending"`
	Appended     int    `json:"appended"`
	HTMLHash     string `json:"html_hash"` // SHA-256 hex of the rendered document
	SettleMs     int64  `json:"settle_ms"` // upgrade start to settle end
	Timestamp    int64  `json:"timestamp"`
	Items        []Item `json:"items"`
}
