package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

type searcherMock struct {
	resolveFn func(name string) (models.SourceConfig, models.SourceType, error)
	searchFn  func(ctx context.Context, src models.SourceConfig, source models.SourceType, queries, filenames []string, topK int) ([]models.Artifact, error)
}

func (m *searcherMock) ResolveSource(name string) (models.SourceConfig, models.SourceType, error) {
	return m.resolveFn(name)
}

func (m *searcherMock) HybridSearch(ctx context.Context, src models.SourceConfig, source models.SourceType, queries, filenames []string, topK int) ([]models.Artifact, error) {
	return m.searchFn(ctx, src, source, queries, filenames, topK)
}

func resetSearchFlags() {
	searchSource, searchQueries, searchFiles, searchTopK, searchJSON = "documents", nil, nil, 5, false
}

func TestSearchCmd(t *testing.T) {
	orig := Retriever
	defer func() { Retriever = orig; resetSearchFlags() }()
	defer searchCmd.SetOut(nil)

	var gotQueries, gotFiles []string
	var gotTopK int
	Retriever = &searcherMock{
		resolveFn: func(name string) (models.SourceConfig, models.SourceType, error) {
			if name != "docs" {
				t.Errorf("resolve got %q", name)
			}
			return models.SourceConfig{Collection: "Documents"}, models.SourceDocument, nil
		},
		searchFn: func(_ context.Context, src models.SourceConfig, _ models.SourceType, queries, filenames []string, topK int) ([]models.Artifact, error) {
			gotQueries, gotFiles, gotTopK = queries, filenames, topK
			return []models.Artifact{
				{ID: "d1", Content: "System design\n\noverview", Score: 0.81, Metadata: map[string]any{"filename": "design.docx"}},
				{ID: "d2", Content: "notes", Score: 0.5},
			}, nil
		},
	}
	searchSource, searchQueries, searchFiles, searchTopK = "docs", []string{"design"}, []string{"design.docx"}, 3
	var out bytes.Buffer
	searchCmd.SetOut(&out)

	if err := searchCmd.RunE(searchCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotQueries) != 1 || len(gotFiles) != 1 || gotTopK != 3 {
		t.Errorf("search args = %v %v %d", gotQueries, gotFiles, gotTopK)
	}
	for _, want := range []string{" 1. [0.81] design.docx", "System design overview", " 2. [0.50] d2"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestSearchCmd_Errors(t *testing.T) {
	orig := Retriever
	defer func() { Retriever = orig; resetSearchFlags() }()

	Retriever = &searcherMock{
		resolveFn: func(name string) (models.SourceConfig, models.SourceType, error) {
			return models.SourceConfig{}, "", fmt.Errorf("unknown source %q", name)
		},
	}

	searchQueries = nil
	if err := searchCmd.RunE(searchCmd, nil); err == nil || !strings.Contains(err.Error(), "--query") {
		t.Errorf("expected --query error, got %v", err)
	}

	searchSource, searchQueries = "wiki", []string{"x"}
	if err := searchCmd.RunE(searchCmd, nil); err == nil || !strings.Contains(err.Error(), "unknown source") {
		t.Errorf("expected unknown source error, got %v", err)
	}
}

func TestPreviewLine(t *testing.T) {
	if got := previewLine("a\n b\t c", 10); got != "a b c" {
		t.Errorf("previewLine = %q", got)
	}
	if got := previewLine("가나다라마", 3); got != "가나다..." {
		t.Errorf("previewLine = %q", got)
	}
}
