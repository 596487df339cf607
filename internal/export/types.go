// Package export renders a board's current arrangement as JSON or Markdown
// and uploads JSON snapshots to object storage.
package export

import (
	"errors"
	"time"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat maps a query value to a Format. Empty means JSON.
func ParseFormat(value string) (Format, error) {
	switch value {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// Document is the exported board. Lists and cards appear in position order.
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Version    int64     `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Lists      []ListDoc `json:"lists"`
}

type ListDoc struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Position int       `json:"position"`
	Cards    []CardDoc `json:"cards"`
}

type CardDoc struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Position int      `json:"position"`
	Assignee string   `json:"assignee,omitempty"`
	Labels   []string `json:"labels"`
}

// Snapshot describes an uploaded JSON export.
type Snapshot struct {
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Version int64  `json:"version"`
}

var (
	ErrUnsupportedFormat   = errors.New("unsupported export format")
	ErrObjectStoreDisabled = errors.New("object storage is not configured")
)
