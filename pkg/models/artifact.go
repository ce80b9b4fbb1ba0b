package models

import (
	"fmt"
	"time"
)

// SourceType tags where a piece of evidence came from.
type SourceType string

const (
	SourceDocument  SourceType = "document"
	SourceEmail     SourceType = "email"
	SourceCodeEvent SourceType = "code-event"
	SourceChatPost  SourceType = "chat-post"
	SourcePlanItem  SourceType = "plan-item"
	SourceReport    SourceType = "report"
)

// Metadata keys shared by every source collection.
const (
	MetaAuthor   = "author"
	MetaFilename = "filename"
	MetaDate     = "date"
	MetaRepo     = "repo_name"
	MetaType     = "type"
	MetaTitle    = "title"
)

// Artifact is one retrieved unit of evidence. Artifacts are built fresh on
// every retrieval call and are not modified afterwards.
type Artifact struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Source   SourceType     `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Score is the normalized vector similarity when the artifact came from
	// a similarity search, zero otherwise.
	Score float64 `json:"score,omitempty"`
}

// Meta returns the metadata value for key rendered as a string, or "".
func (a Artifact) Meta(key string) string {
	v, ok := a.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Filename returns the artifact's filename metadata, if any.
func (a Artifact) Filename() string { return a.Meta(MetaFilename) }

// Author returns the artifact's author/identity metadata, if any.
func (a Artifact) Author() string { return a.Meta(MetaAuthor) }

// Timestamp parses the given date metadata field. The zero time is returned
// when the field is missing or unparseable.
func (a Artifact) Timestamp(field string) time.Time {
	t, _ := ParseTimestamp(a.Meta(field))
	return t
}

// timestampLayouts are the formats accepted for stored timestamps, most
// specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a stored timestamp. Values without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTimestamp renders t the way timestamps are stored in payloads.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
