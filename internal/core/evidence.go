package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valter-silva-au/workpulse/internal/storage"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

const (
	payloadSourceHash  = "source_hash"
	evidenceBatchSize  = 64
	emailPreviewRunes  = 1000
	prBodyPreviewRunes = 500
)

// EvidenceResult describes one evidence file load.
type EvidenceResult struct {
	Source   string   `json:"source"`
	Path     string   `json:"path"`
	Hash     string   `json:"hash"`
	Records  int      `json:"records"`
	Written  int      `json:"written"`
	Skipped  int      `json:"skipped"`
	Problems []string `json:"problems,omitempty"`
}

// EvidenceIngester loads exported activity records into the collection of
// one source.
type EvidenceIngester interface {
	IngestEvidence(ctx context.Context, source, path string) (*EvidenceResult, error)
}

type evidenceIngester struct {
	retriever *Retriever
	events    EventLogger
	logger    *slog.Logger
}

// NewEvidenceIngester creates an EvidenceIngester writing through
// retriever. events may be nil.
func NewEvidenceIngester(retriever *Retriever, events EventLogger, logger *slog.Logger) EvidenceIngester {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &evidenceIngester{retriever: retriever, events: events, logger: logger}
}

// IngestEvidence embeds every usable record of the file at path and upserts
// it under a stable id, so loading the same export twice leaves one copy.
// Records without the source's identity field, or with a missing or
// unparseable date field, are skipped and listed in Problems. Nothing is
// written when any embedding fails.
func (e *evidenceIngester) IngestEvidence(ctx context.Context, source, path string) (*EvidenceResult, error) {
	src, _, err := e.retriever.ResolveSource(source)
	if err != nil {
		return nil, err
	}
	name := canonicalSource(source)
	res := &EvidenceResult{Source: name, Path: path}

	if res.Hash, err = HashFile(path); err != nil {
		return res, err
	}
	raw, err := LoadEvidenceFile(path)
	if err != nil {
		return res, err
	}

	var records []storage.Record
	seen := make(map[string]int)
	for i, block := range raw {
		for _, rec := range flattenEvidence(name, block) {
			res.Records++
			r, problem := e.buildRecord(name, src, rec, res.Hash)
			if problem != "" {
				res.Skipped++
				res.Problems = append(res.Problems, fmt.Sprintf("record %d: %s", i+1, problem))
				continue
			}
			vec, err := e.retriever.Embed(ctx, fmt.Sprint(r.Payload[contentKey(src)]))
			if err != nil {
				e.logEvent("evidence.failed", map[string]any{"source": name, "error": err.Error()})
				return res, fmt.Errorf("embedding %s record %d: %w", name, i+1, err)
			}
			r.Vector = vec
			if at, dup := seen[r.ID]; dup {
				records[at] = r
				continue
			}
			seen[r.ID] = len(records)
			records = append(records, r)
		}
	}

	for start := 0; start < len(records); start += evidenceBatchSize {
		end := min(start+evidenceBatchSize, len(records))
		if err := e.retriever.Upsert(ctx, src.Collection, records[start:end]); err != nil {
			e.logEvent("evidence.failed", map[string]any{"source": name, "error": err.Error()})
			return res, fmt.Errorf("writing %s records: %w", name, err)
		}
		res.Written = end
	}

	e.logger.Info("evidence ingested", "source", name, "collection", src.Collection,
		"written", res.Written, "skipped", res.Skipped, "hash", shortHash(res.Hash))
	e.logEvent("evidence.ingested", map[string]any{
		"source":  name,
		"hash":    res.Hash,
		"written": res.Written,
		"skipped": res.Skipped,
	})
	return res, nil
}

// buildRecord normalizes rec into a store record without its vector. A
// non-empty problem means the record cannot be used.
func (e *evidenceIngester) buildRecord(source string, src models.SourceConfig, rec EvidenceRecord, fileHash string) (storage.Record, string) {
	payload := make(map[string]any, len(rec)+2)
	for k, v := range rec {
		payload[k] = v
	}
	if source == "code" {
		if payload[models.MetaRepo] == nil && payload["repo"] != nil {
			payload[models.MetaRepo] = payload["repo"]
		}
		if payload[models.MetaDate] == nil && payload["created_at"] != nil {
			payload[models.MetaDate] = payload["created_at"]
		}
	}

	if src.IdentityKey != "" && isBlank(payload[src.IdentityKey]) {
		return storage.Record{}, fmt.Sprintf("missing %s", src.IdentityKey)
	}
	if src.DateField != "" {
		ts, err := models.ParseTimestamp(EvidenceRecord(payload).str(src.DateField))
		if err != nil {
			return storage.Record{}, fmt.Sprintf("missing or invalid %s", src.DateField)
		}
		payload[src.DateField] = models.FormatTimestamp(ts)
	}

	text := evidenceText(source, rec)
	if text == "" {
		return storage.Record{}, "no content"
	}
	for _, k := range []string{"content", "text", "message", "body"} {
		delete(payload, k)
	}
	payload[contentKey(src)] = text
	payload[payloadSourceHash] = fileHash

	return storage.Record{ID: StableID(source, evidenceKey(source, src, rec, payload)), Payload: payload}, ""
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	}
	return false
}

func contentKey(src models.SourceConfig) string {
	if src.ContentField != "" {
		return src.ContentField
	}
	return defaultContentField
}

// canonicalSource maps the accepted source aliases onto one name.
func canonicalSource(name string) string {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "docs":
		return "documents"
	case "email":
		return "emails"
	case "readme":
		return "readmes"
	default:
		return n
	}
}

// evidenceText is the text stored and embedded for a record.
func evidenceText(source string, rec EvidenceRecord) string {
	body := firstNonEmpty(rec.str(defaultContentField), rec.str("content"), rec.str("text"))
	switch source {
	case "documents":
		if body == "" && rec.str(models.MetaFilename) != "" {
			return fmt.Sprintf("[content unavailable: %s]", rec.str(models.MetaFilename))
		}
	case "emails":
		subject := firstNonEmpty(rec.str("subject"), rec.str(models.MetaTitle))
		if subject != "" || body != "" {
			return fmt.Sprintf("Subject: %s\nContent: %s", subject, truncateRunes(body, emailPreviewRunes))
		}
	case "code":
		switch rec.str(models.MetaType) {
		case "pull_request":
			return fmt.Sprintf("PR Title: %s\nPR Body: %s", rec.str(models.MetaTitle), truncateRunes(body, prBodyPreviewRunes))
		case "commit", "":
			if msg := rec.str("message"); msg != "" {
				return "Commit: " + msg
			}
		}
	case "chat":
		var parts []string
		if s := rec.str("subject"); s != "" {
			parts = append(parts, "Subject: "+s)
		}
		if body != "" {
			parts = append(parts, body)
		}
		if list, ok := rec["attachments"].([]any); ok {
			for _, a := range list {
				parts = append(parts, fmt.Sprintf("Attachment: %v", a))
			}
		}
		return strings.Join(parts, "\n")
	}
	return body
}

// evidenceKey is the natural key the stable record id is derived from.
func evidenceKey(source string, src models.SourceConfig, rec EvidenceRecord, payload map[string]any) string {
	if id := rec.str("id"); id != "" {
		return id
	}
	p := EvidenceRecord(payload)
	switch source {
	case "code":
		if sha := p.str("sha"); sha != "" {
			return "commit/" + sha
		}
		if n := p.str("number"); n != "" {
			return "pr/" + p.str(models.MetaRepo) + "/" + n
		}
	case "emails":
		return strings.Join([]string{p.str(models.MetaAuthor), p.str("conversation_id"), p.str(src.DateField), p.str("subject"), p.str("sender")}, "|")
	case "documents":
		if f := p.str(models.MetaFilename); f != "" {
			return f + "|" + p.str(src.DateField)
		}
	case "readmes":
		return p.str(src.IdentityKey)
	case "chat":
		if id := p.str("message_id"); id != "" {
			return id
		}
	}
	canonical, _ := json.Marshal(rec)
	return ContentHash(canonical)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (e *evidenceIngester) logEvent(eventType string, data map[string]any) {
	logIngestEvent(e.events, e.logger, eventType, data)
}
