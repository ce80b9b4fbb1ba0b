package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

// PlanSource supplies the slice of a project plan assigned to one person.
type PlanSource interface {
	PlanFor(ctx context.Context, projectID, assignee string) (*models.PlanSlice, error)
}

// PlanLookup reads plan items through the retriever and keeps those whose
// assignee entries contain the requested name, ignoring case.
type PlanLookup struct {
	retriever *Retriever
}

// NewPlanLookup creates a PlanLookup.
func NewPlanLookup(r *Retriever) *PlanLookup {
	return &PlanLookup{retriever: r}
}

// PlanFor returns the assignee's plan slice. An empty assignee returns every
// item of the project. A project with no stored items is an error so the
// caller can record it.
func (l *PlanLookup) PlanFor(ctx context.Context, projectID, assignee string) (*models.PlanSlice, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("loading plan: no project id given")
	}
	items, err := l.retriever.PlanItems(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading plan %s: %w", projectID, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("loading plan %s: no plan items stored", projectID)
	}
	slice := &models.PlanSlice{ProjectID: projectID, Assignee: assignee}
	for _, item := range items {
		if strings.TrimSpace(assignee) == "" || item.AssignedTo(assignee) {
			slice.Items = append(slice.Items, item)
		}
	}
	return slice, nil
}
