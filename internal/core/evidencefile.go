package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// EvidenceRecord is one raw activity record as exported by a source system.
type EvidenceRecord map[string]any

// LoadEvidenceFile reads activity records from a .json or .jsonl export.
// A .json file holds a list of records, a {"records": [...]} document or a
// single record; a .jsonl file holds one record per line.
func LoadEvidenceFile(path string) ([]EvidenceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading evidence file: %w", err)
	}
	var recs []EvidenceRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		recs, err = parseEvidenceJSON(data)
	case ".jsonl", ".ndjson":
		recs, err = parseEvidenceJSONL(data)
	default:
		return nil, fmt.Errorf("unsupported evidence file type %q (want .json or .jsonl)", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return recs, nil
}

func parseEvidenceJSON(data []byte) ([]EvidenceRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var recs []EvidenceRecord
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, err
		}
		return recs, nil
	}
	var doc EvidenceRecord
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	if list, ok := doc["records"].([]any); ok {
		return toRecords(list), nil
	}
	return []EvidenceRecord{doc}, nil
}

func parseEvidenceJSONL(data []byte) ([]EvidenceRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var recs []EvidenceRecord
	for line := 1; ; line++ {
		var rec EvidenceRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
}

func toRecords(list []any) []EvidenceRecord {
	out := make([]EvidenceRecord, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// flattenEvidence expands the grouped export shapes into one record per
// item: {"author", "emails": [...]} blocks for email, and {"author",
// "repo_name", "commits": [...], "pull_requests": [...]} blocks for code.
// Items inherit the block author and repository when they carry none.
func flattenEvidence(source string, rec EvidenceRecord) []EvidenceRecord {
	switch source {
	case "emails":
		emails, ok := rec["emails"].([]any)
		if !ok {
			return []EvidenceRecord{rec}
		}
		var out []EvidenceRecord
		for _, e := range toRecords(emails) {
			inherit(e, rec, "author")
			out = append(out, e)
		}
		return out
	case "code":
		commits, hasCommits := rec["commits"].([]any)
		prs, hasPRs := rec["pull_requests"].([]any)
		if !hasCommits && !hasPRs {
			return []EvidenceRecord{rec}
		}
		var out []EvidenceRecord
		for _, c := range toRecords(commits) {
			c["type"] = "commit"
			if v, ok := c["author_email"]; ok && c["author"] == nil {
				c["author"] = v
			}
			inherit(c, rec, "author", "repo_name", "repo")
			out = append(out, c)
		}
		for _, pr := range toRecords(prs) {
			pr["type"] = "pull_request"
			if v, ok := pr["user_email"]; ok && pr["author"] == nil {
				pr["author"] = v
			}
			inherit(pr, rec, "author", "repo_name", "repo")
			out = append(out, pr)
		}
		return out
	}
	return []EvidenceRecord{rec}
}

func inherit(dst, src EvidenceRecord, keys ...string) {
	for _, k := range keys {
		if v, ok := src[k]; ok && v != nil && dst[k] == nil {
			dst[k] = v
		}
	}
}

// str returns the string form of rec[key], or "" when absent.
func (rec EvidenceRecord) str(key string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
