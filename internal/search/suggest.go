package search

import (
	"context"
	"strings"
)

const (
	suggestHistoryWindow = 20
	suggestLiveLimit     = 5
	suggestLimit         = 10
)

// Suggest completes partial from recent queries, then from record titles,
// member names or legislation codes and names depending on scope.
func (s *Service) Suggest(ctx context.Context, partial string, scope Scope) []string {
	needle := strings.ToLower(partial)
	var out []string
	for _, e := range s.history.Recent(suggestHistoryWindow) {
		if strings.Contains(strings.ToLower(e.Query), needle) {
			out = append(out, e.Query)
		}
	}
	out = append(out, s.liveSuggestions(ctx, needle, scope)...)
	return dedupeCap(out, suggestLimit)
}

func (s *Service) liveSuggestions(ctx context.Context, needle string, scope Scope) []string {
	var out []string
	switch scope {
	case ScopeTasks:
		tasks, err := s.store.LoadTasks(ctx)
		if err != nil {
			s.logger.Error("loading tasks for suggestions", "error", err)
			return nil
		}
		for _, t := range tasks {
			if len(out) == suggestLiveLimit {
				break
			}
			if strings.Contains(strings.ToLower(t.Title), needle) {
				out = append(out, t.Title)
			}
		}
	case ScopeTeam:
		members, err := s.store.LoadTeamMembers(ctx)
		if err != nil {
			s.logger.Error("loading team for suggestions", "error", err)
			return nil
		}
		for _, m := range members {
			if len(out) == suggestLiveLimit {
				break
			}
			if strings.Contains(strings.ToLower(m.Name), needle) {
				out = append(out, m.Name)
			}
		}
	case ScopeLegislation:
		refs, err := s.store.LoadLegislation(ctx)
		if err != nil {
			s.logger.Error("loading legislation for suggestions", "error", err)
			return nil
		}
		for _, l := range refs {
			if strings.Contains(strings.ToLower(l.Code), needle) {
				out = append(out, l.Code)
			}
			if name := l.DisplayName(); strings.Contains(strings.ToLower(name), needle) {
				out = append(out, name)
			}
		}
	}
	return out
}

func dedupeCap(in []string, n int) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, min(len(in), n))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == n {
			break
		}
	}
	return out
}
