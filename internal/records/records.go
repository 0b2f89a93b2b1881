// Package records defines the compliance records the search index covers
// and the Store contract the index reads them through.
package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
)

// Type identifies an indexed record table.
type Type string

const (
	TypeTask        Type = "task"
	TypeTeam        Type = "team"
	TypeLegislation Type = "legislation"
)

// AllTypes lists every record type in rebuild and search order.
var AllTypes = []Type{TypeTask, TypeTeam, TypeLegislation}

// ParseType validates a record type name.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeTask, TypeTeam, TypeLegislation:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownRecordType, s)
}

// Date layouts used by the record data files.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Store is the read side of the record data store.
type Store interface {
	LoadTasks(ctx context.Context) ([]Task, error)
	// GetTask returns nil, nil when no task has the key.
	GetTask(ctx context.Context, key string) (*Task, error)
	LoadTeamMembers(ctx context.Context) ([]TeamMember, error)
	LoadLegislation(ctx context.Context) ([]LegislationReference, error)
}

// Task is a compliance task.
type Task struct {
	Key             string   `json:"key"`
	Title           string   `json:"title"`
	ComplianceArea  string   `json:"compliance_area"`
	Subcategory     string   `json:"subcategory"`
	TaskSetter      string   `json:"task_setter"`
	TaskSetterEmail string   `json:"task_setter_email"`
	AllocatedTo     []string `json:"allocated_to"`
	AllocatedEmails []string `json:"allocated_emails"`
	Manager         string   `json:"manager"`
	ManagerEmail    string   `json:"manager_email"`
	Priority        string   `json:"priority"`
	Description     string   `json:"description"`
	Status          string   `json:"status"`
	DateLogged      string   `json:"date_logged"`
	TargetDate      string   `json:"target_date"`
	CompletedDate   string   `json:"completed_date"`
	CreatedBy       string   `json:"created_by"`
	CreatedDate     string   `json:"created_date"`
	ModifiedBy      string   `json:"modified_by"`
	ModifiedDate    string   `json:"modified_date"`
	Tags            []string `json:"tags"`
}

// Validate reports ErrMalformedRecord when the key or title is missing.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Key) == "" {
		return fmt.Errorf("%w: task key is required", apperrors.ErrMalformedRecord)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: task %s has no title", apperrors.ErrMalformedRecord, t.Key)
	}
	return nil
}

var closedStatuses = map[string]struct{}{
	"Resolved": {}, "Closed": {}, "Approved": {},
}

// IsOverdue reports whether the target date has passed on an unfinished task.
func (t Task) IsOverdue(now time.Time) bool {
	if t.TargetDate == "" {
		return false
	}
	if _, done := closedStatuses[t.Status]; done {
		return false
	}
	target, err := time.ParseInLocation(DateLayout, t.TargetDate, now.Location())
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return target.Before(today)
}

// Map returns the search result payload for the task.
func (t Task) Map(now time.Time) map[string]any {
	return map[string]any{
		"key":               t.Key,
		"title":             t.Title,
		"compliance_area":   t.ComplianceArea,
		"subcategory":       t.Subcategory,
		"task_setter":       t.TaskSetter,
		"task_setter_email": t.TaskSetterEmail,
		"allocated_to":      nonNil(t.AllocatedTo),
		"allocated_emails":  nonNil(t.AllocatedEmails),
		"manager":           t.Manager,
		"manager_email":     t.ManagerEmail,
		"priority":          t.Priority,
		"description":       t.Description,
		"status":            t.Status,
		"date_logged":       t.DateLogged,
		"target_date":       t.TargetDate,
		"completed_date":    t.CompletedDate,
		"created_by":        t.CreatedBy,
		"created_date":      t.CreatedDate,
		"modified_by":       t.ModifiedBy,
		"modified_date":     t.ModifiedDate,
		"tags":              nonNil(t.Tags),
		"is_overdue":        t.IsOverdue(now),
	}
}

// TeamMember is a person tasks can be allocated to. Email is the key.
type TeamMember struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Department  string `json:"department"`
	Role        string `json:"role"`
	Location    string `json:"location"`
	EmployeeID  string `json:"employee_id"`
	Phone       string `json:"phone"`
	Manager     string `json:"manager"`
	StartDate   string `json:"start_date"`
	Active      bool   `json:"active"`
	CreatedDate string `json:"created_date"`
}

// Validate reports ErrMalformedRecord when the email or name is missing.
func (m TeamMember) Validate() error {
	if strings.TrimSpace(m.Email) == "" {
		return fmt.Errorf("%w: team member email is required", apperrors.ErrMalformedRecord)
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: team member %s has no name", apperrors.ErrMalformedRecord, m.Email)
	}
	return nil
}

func (m TeamMember) Map() map[string]any {
	return map[string]any{
		"name":         m.Name,
		"email":        m.Email,
		"department":   m.Department,
		"role":         m.Role,
		"location":     m.Location,
		"employee_id":  m.EmployeeID,
		"phone":        m.Phone,
		"manager":      m.Manager,
		"start_date":   m.StartDate,
		"active":       m.Active,
		"created_date": m.CreatedDate,
	}
}

// LegislationReference is a regulation tasks are tracked against. Code is
// the key.
type LegislationReference struct {
	Code            string   `json:"code"`
	Title           string   `json:"title"`
	FullName        string   `json:"full_name"`
	Category        string   `json:"category"`
	Subcategory     string   `json:"subcategory"`
	Jurisdiction    string   `json:"jurisdiction"`
	EffectiveDate   string   `json:"effective_date"`
	Description     string   `json:"description"`
	Summary         string   `json:"summary"`
	KeyRequirements []string `json:"key_requirements"`
	ApplicableAreas []string `json:"applicable_areas"`
	Owner           string   `json:"owner"`
}

// Validate reports ErrMalformedRecord when the code or title is missing.
func (l LegislationReference) Validate() error {
	if strings.TrimSpace(l.Code) == "" {
		return fmt.Errorf("%w: legislation code is required", apperrors.ErrMalformedRecord)
	}
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("%w: legislation %s has no title", apperrors.ErrMalformedRecord, l.Code)
	}
	return nil
}

// DisplayName is the full name, falling back to the title.
func (l LegislationReference) DisplayName() string {
	if l.FullName != "" {
		return l.FullName
	}
	return l.Title
}

func (l LegislationReference) Map() map[string]any {
	return map[string]any{
		"code":             l.Code,
		"title":            l.Title,
		"full_name":        l.DisplayName(),
		"category":         l.Category,
		"subcategory":      l.Subcategory,
		"jurisdiction":     l.Jurisdiction,
		"effective_date":   l.EffectiveDate,
		"description":      l.Description,
		"summary":          l.Summary,
		"key_requirements": nonNil(l.KeyRequirements),
		"applicable_areas": nonNil(l.ApplicableAreas),
		"owner":            l.Owner,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
