package core

import (
	"strings"
	"testing"
)

func TestRenderPrompt_AllBuiltins(t *testing.T) {
	pm := NewPromptManager("")
	data := PromptData{
		SubjectID:   "u1",
		SubjectName: "Kim",
		Date:        "2026-10-19",
		PeriodStart: "2026-10-13",
		PeriodEnd:   "2026-10-17",
		ProjectID:   "P1",
		Plan:        "- [1.1] Architecture",
		Evidence:    "1. design.docx",
		Sections:    map[string]string{"b second": "two", "a first": "one"},
	}
	for kind := range builtinPrompts {
		t.Run(string(kind), func(t *testing.T) {
			out, err := pm.Render(kind, data)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if !strings.Contains(out, "Kim") {
				t.Error("prompt should name the subject")
			}
			if !strings.Contains(out, "JSON object") {
				t.Error("prompt should ask for a JSON object")
			}
			if strings.Contains(out, "<no value>") {
				t.Errorf("prompt has unfilled fields:\n%s", out)
			}
		})
	}
}

func TestRenderPrompt_SectionsInKeyOrder(t *testing.T) {
	out, err := NewPromptManager("").Render(PromptDaily, PromptData{
		SubjectName: "Kim",
		Sections:    map[string]string{"2. Code activity": "git", "1. Documents": "docs"},
	})
	if err != nil {
		t.Fatal(err)
	}
	first, second := strings.Index(out, "## 1. Documents"), strings.Index(out, "## 2. Code activity")
	if first < 0 || second < 0 || first > second {
		t.Errorf("sections out of order:\n%s", out)
	}
}

func TestPromptManager_Override(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "email_analyze.md", "Custom for {{.SubjectName}} on {{.Date}}")
	pm := NewPromptManager(dir)

	out, err := pm.Render(PromptEmail, PromptData{SubjectName: "Kim", Date: "2026-10-19"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Custom for Kim on 2026-10-19" {
		t.Errorf("out = %q", out)
	}

	// Kinds without an override keep the built-in.
	raw, err := pm.GetTemplate(PromptChat)
	if err != nil || raw != builtinPrompts[PromptChat] {
		t.Errorf("GetTemplate(chat) = %q, %v", raw, err)
	}
}

func TestPromptManager_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "git_analyze.tmpl", "{{.Broken")
	pm := NewPromptManager(dir)

	if _, err := pm.Render(PromptCode, PromptData{}); err == nil {
		t.Error("expected parse error for broken override")
	}
	if _, err := pm.Render(PromptKind("unknown"), PromptData{}); err == nil {
		t.Error("expected error for unknown kind")
	}
}
