// Package search runs user queries against the index: query preprocessing
// and synonym expansion, scope dispatch, filters, task boosts, sorting,
// pagination, history, suggestions and export.
package search

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
)

// Scope selects which record types a query covers.
type Scope string

const (
	ScopeAll         Scope = "all"
	ScopeTasks       Scope = "tasks"
	ScopeTeam        Scope = "team"
	ScopeLegislation Scope = "legislation"
	// ScopeDocuments has no backing index and always returns nothing.
	ScopeDocuments Scope = "documents"
)

func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case "":
		return ScopeAll, nil
	case ScopeAll, ScopeTasks, ScopeTeam, ScopeLegislation, ScopeDocuments:
		return sc, nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", apperrors.ErrInvalidInput, s)
}

// RecordTypes lists the index types searched for the scope.
func (s Scope) RecordTypes() []records.Type {
	switch s {
	case ScopeAll:
		return records.AllTypes
	case ScopeTasks:
		return []records.Type{records.TypeTask}
	case ScopeTeam:
		return []records.Type{records.TypeTeam}
	case ScopeLegislation:
		return []records.Type{records.TypeLegislation}
	}
	return nil
}

// Operator combines query terms.
type Operator string

const (
	OpOR    Operator = "or"
	OpAND   Operator = "and"
	OpNOT   Operator = "not"
	OpEXACT Operator = "exact"
)

func ParseOperator(s string) (Operator, error) {
	switch op := Operator(strings.ToLower(strings.TrimSpace(s))); op {
	case "":
		return OpOR, nil
	case OpOR, OpAND, OpNOT, OpEXACT:
		return op, nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", apperrors.ErrInvalidInput, s)
}

// Sort keys.
const (
	SortRelevance = "relevance"
	SortDate      = "date"
	SortTitle     = "title"
	SortPriority  = "priority"
)

// Query is a search request.
type Query struct {
	Text      string   `json:"text"`
	Scope     Scope    `json:"scope"`
	Filters   []Filter `json:"filters,omitempty"`
	Operator  Operator `json:"operator"`
	SortBy    string   `json:"sort_by"`
	SortOrder string   `json:"sort_order"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
}

// withDefaults fills zero fields and clamps the limit to maxLimit.
func (q Query) withDefaults(defaultLimit, maxLimit int) Query {
	if q.Scope == "" {
		q.Scope = ScopeAll
	}
	if q.Operator == "" {
		q.Operator = OpOR
	}
	if q.SortBy == "" {
		q.SortBy = SortRelevance
	}
	if q.SortOrder != "asc" {
		q.SortOrder = "desc"
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
