package indexer

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
)

// NamedFields lists the fields indexed separately from the composite, per
// record type. They are the fields matched_fields can report.
var NamedFields = map[records.Type][]string{
	records.TypeTask:        {"title", "description", "compliance_area"},
	records.TypeTeam:        {"name", "department", "role"},
	records.TypeLegislation: {"title", "category", "description"},
}

func (m *Manager) taskFields(t records.Task) index.Fields {
	composite := join(
		t.Key, t.Title, t.Description, t.ComplianceArea, t.Subcategory,
		t.TaskSetter, t.Priority, t.Status,
		strings.Join(t.AllocatedTo, " "), strings.Join(t.Tags, " "),
	)
	return index.Fields{
		index.AllField:    m.tok.Tokenize(composite),
		"title":           m.tok.Tokenize(t.Title),
		"description":     m.tok.Tokenize(t.Description),
		"compliance_area": m.tok.Tokenize(t.ComplianceArea),
	}
}

func (m *Manager) teamFields(tm records.TeamMember) index.Fields {
	composite := join(
		tm.Name, tm.Email, tm.Department, tm.Role, tm.Location,
		tm.Manager, tm.EmployeeID,
	)
	return index.Fields{
		index.AllField: m.tok.Tokenize(composite),
		"name":         m.tok.Tokenize(tm.Name),
		"department":   m.tok.Tokenize(tm.Department),
		"role":         m.tok.Tokenize(tm.Role),
	}
}

func (m *Manager) legislationFields(l records.LegislationReference) index.Fields {
	composite := join(
		l.Code, l.Title, l.Category, l.Jurisdiction, l.Description,
		strings.Join(l.KeyRequirements, " "),
	)
	return index.Fields{
		index.AllField: m.tok.Tokenize(composite),
		"title":        m.tok.Tokenize(l.Title),
		"category":     m.tok.Tokenize(l.Category),
		"description":  m.tok.Tokenize(l.Description),
	}
}

func join(parts ...string) string {
	return strings.Join(parts, " ")
}
