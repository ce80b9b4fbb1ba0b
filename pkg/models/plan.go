package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// StringList is a list of strings that also accepts a single scalar string
// when decoded from YAML or JSON. Plan exports are inconsistent about whether
// assignees and deliverables are written as "a" or ["a", "b"].
type StringList []string

// UnmarshalYAML accepts a scalar, a sequence, or null.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make(StringList, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list entries must be scalars", item.Line)
			}
			if item.Tag == "!!null" {
				continue
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", value.Line)
	}
}

// UnmarshalJSON accepts a string, an array of strings, or null.
func (l *StringList) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*l = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}
	var many []*string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	if many == nil {
		*l = nil
		return nil
	}
	out := make(StringList, 0, len(many))
	for _, s := range many {
		if s != nil {
			out = append(out, *s)
		}
	}
	*l = out
	return nil
}

// Trimmed returns the entries with surrounding whitespace removed, dropping
// entries that are empty afterwards.
func (l StringList) Trimmed() []string {
	var out []string
	for _, s := range l {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// PlanItem is a single WBS task as stored by the plan-ingestion pipeline.
type PlanItem struct {
	ID           string     `yaml:"task_id" json:"task_id"`
	Name         string     `yaml:"task_name" json:"task_name"`
	Assignee     StringList `yaml:"assignee,omitempty" json:"assignee,omitempty"`
	Status       string     `yaml:"status,omitempty" json:"status,omitempty"`
	StartDate    string     `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate      string     `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	Deliverables StringList `yaml:"deliverables,omitempty" json:"deliverables,omitempty"`
	ProjectID    string     `yaml:"project_id,omitempty" json:"project_id,omitempty"`
}

// Labels returns the item's deliverable labels, trimmed, with blank labels removed.
func (p PlanItem) Labels() []string {
	return p.Deliverables.Trimmed()
}

// AssignedTo reports whether name appears in any assignee entry. Matching is
// case-insensitive substring containment so that "Kim" finds "Kim Minsu" and
// "Kim Minsu, Lee Jiwon".
func (p PlanItem) AssignedTo(name string) bool {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return false
	}
	for _, a := range p.Assignee {
		if strings.Contains(strings.ToLower(a), needle) {
			return true
		}
	}
	return false
}

// PlanSlice is the part of a project plan relevant to one run: the project
// reference and the tasks assigned to the run's subject.
type PlanSlice struct {
	ProjectID string     `json:"project_id"`
	Assignee  string     `json:"assignee"`
	Items     []PlanItem `json:"items"`
}

// Labels returns every deliverable label across the slice, in item order,
// without duplicates.
func (s *PlanSlice) Labels() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, item := range s.Items {
		for _, label := range item.Labels() {
			if !seen[label] {
				seen[label] = true
				out = append(out, label)
			}
		}
	}
	return out
}
