package core

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/valter-silva-au/workpulse/pkg/models"
	"gopkg.in/yaml.v3"
)

// PlanDocument is a parsed plan file.
type PlanDocument struct {
	ProjectID string            `yaml:"project_id" json:"project_id"`
	Items     []models.PlanItem `yaml:"items" json:"items"`
}

// ParsePlanFile reads a plan export. YAML and JSON files may hold either a
// bare list of items or a {project_id, items} document; CSV files need a
// header row naming the item fields.
func ParsePlanFile(path string) (*PlanDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	var doc *PlanDocument
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc, err = parsePlanYAML(data)
	case ".json":
		doc, err = parsePlanJSON(data)
	case ".csv":
		doc, err = parsePlanCSV(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported plan file type %q (want .yaml, .yml, .json or .csv)", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

func parsePlanYAML(data []byte) (*PlanDocument, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return &PlanDocument{}, nil
	}
	node := root.Content[0]
	doc := &PlanDocument{}
	switch node.Kind {
	case yaml.SequenceNode:
		if err := node.Decode(&doc.Items); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		if err := node.Decode(doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("line %d: expected a list of items or a document with items", node.Line)
	}
	return doc, nil
}

func parsePlanJSON(data []byte) (*PlanDocument, error) {
	trimmed := bytes.TrimSpace(data)
	doc := &PlanDocument{}
	if len(trimmed) == 0 {
		return doc, nil
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Items); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err := json.Unmarshal(trimmed, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// csvColumns maps accepted header names to plan item fields.
var csvColumns = map[string]string{
	"task_id":      "id",
	"id":           "id",
	"task_name":    "name",
	"name":         "name",
	"assignee":     "assignee",
	"assignees":    "assignee",
	"status":       "status",
	"start_date":   "start",
	"end_date":     "end",
	"deliverable":  "deliverables",
	"deliverables": "deliverables",
	"project_id":   "project",
}

// splitCell splits a list-valued CSV cell on semicolons.
func splitCell(s string) models.StringList {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out models.StringList
	for _, part := range strings.Split(s, ";") {
		out = append(out, strings.TrimSpace(part))
	}
	return out
}

func parsePlanCSV(r io.Reader) (*PlanDocument, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return &PlanDocument{}, nil
	}
	if err != nil {
		return nil, err
	}
	fields := make([]string, len(header))
	hasID := false
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		fields[i] = csvColumns[key]
		if fields[i] == "id" {
			hasID = true
		}
	}
	if !hasID {
		return nil, fmt.Errorf("csv header must include a task_id column")
	}

	doc := &PlanDocument{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		var item models.PlanItem
		for i, cell := range row {
			if i >= len(fields) {
				break
			}
			cell = strings.TrimSpace(cell)
			switch fields[i] {
			case "id":
				item.ID = cell
			case "name":
				item.Name = cell
			case "assignee":
				item.Assignee = splitCell(cell)
			case "status":
				item.Status = cell
			case "start":
				item.StartDate = cell
			case "end":
				item.EndDate = cell
			case "deliverables":
				item.Deliverables = splitCell(cell)
			case "project":
				item.ProjectID = cell
			}
		}
		if item.ID == "" && item.Name == "" {
			continue
		}
		doc.Items = append(doc.Items, item)
	}
	return doc, nil
}
