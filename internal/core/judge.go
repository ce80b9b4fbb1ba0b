package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

// JudgeRequest is one structured-judgment call: a task name used for
// logging and routing, and the fully rendered prompt.
type JudgeRequest struct {
	Task   string
	Prompt string
}

// Judge turns rendered evidence into a structured judgment. The response is
// only checked for being a JSON object; its schema is up to the prompt.
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) (map[string]any, error)
}

// planText renders a plan slice for prompts, one line per item.
func planText(plan *models.PlanSlice) string {
	if plan == nil || len(plan.Items) == 0 {
		return "(no plan available)"
	}
	var sb strings.Builder
	for _, item := range plan.Items {
		fmt.Fprintf(&sb, "- [%s] %s", item.ID, item.Name)
		if item.Status != "" {
			fmt.Fprintf(&sb, " (status: %s)", item.Status)
		}
		if item.StartDate != "" || item.EndDate != "" {
			fmt.Fprintf(&sb, " %s..%s", item.StartDate, item.EndDate)
		}
		if labels := item.Labels(); len(labels) > 0 {
			fmt.Fprintf(&sb, " deliverables: %s", strings.Join(labels, ", "))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// jsonText renders v as indented JSON for inclusion in a prompt.
func jsonText(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
