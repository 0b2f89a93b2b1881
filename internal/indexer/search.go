package indexer

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer/ranker"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
)

// SearchResult is a ranked record with the fields that matched.
type SearchResult struct {
	RecordType     records.Type   `json:"record_type"`
	RecordKey      string         `json:"record_key"`
	Title          string         `json:"title"`
	Summary        string         `json:"summary"`
	RelevanceScore float64        `json:"relevance_score"`
	MatchedFields  []string       `json:"matched_fields"`
	Data           map[string]any `json:"data"`
}

type candidate struct {
	ranker.Scored
	matched []string
}

// Search scores records of the given types (all when none) by the number
// of distinct query tokens they contain, normalised per type. fieldNames
// restricts matching to those fields. limit <= 0 returns every match.
func (m *Manager) Search(ctx context.Context, query string, types []records.Type, fieldNames []string, limit int) []SearchResult {
	tokens := m.tok.Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}
	cands := m.collect(types, tokens, fieldNames, nil)
	return m.hydrate(ctx, cands, limit)
}

// SearchPhrase returns records whose composite token stream contains the
// phrase tokens contiguously.
func (m *Manager) SearchPhrase(ctx context.Context, phrase string, types []records.Type, limit int) []SearchResult {
	tokens := m.tok.Tokenize(phrase)
	if len(tokens) == 0 {
		return nil
	}
	cands := m.collect(types, tokens, nil, func(ti *index.TypeIndex, key string) bool {
		return ti.ContainsPhrase(key, tokens)
	})
	return m.hydrate(ctx, cands, limit)
}

// Contains reports whether every token of text is indexed for the record.
func (m *Manager) Contains(rt records.Type, key, text string) bool {
	tokens := m.tok.Tokenize(text)
	if len(tokens) == 0 {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ti, ok := m.indices[rt]
	return ok && ti.HasAll(key, tokens)
}

func (m *Manager) collect(types []records.Type, tokens, fieldNames []string, keep func(*index.TypeIndex, string) bool) []candidate {
	if len(types) == 0 {
		types = records.AllTypes
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []candidate
	seen := make(map[records.Type]bool, len(types))
	for _, rt := range types {
		ti, ok := m.indices[rt]
		if !ok || seen[rt] {
			continue
		}
		seen[rt] = true
		counts := ti.Match(tokens, fieldNames)
		if keep != nil {
			for key := range counts {
				if !keep(ti, key) {
					delete(counts, key)
				}
			}
		}
		for _, s := range ranker.Normalize(string(rt), counts) {
			out = append(out, candidate{Scored: s, matched: ti.MatchedFields(s.Key, tokens)})
		}
	}
	return out
}

// hydrate ranks candidates and loads their records, dropping keys the store
// no longer has.
func (m *Manager) hydrate(ctx context.Context, cands []candidate, limit int) []SearchResult {
	scored := make([]ranker.Scored, len(cands))
	matched := make(map[string][]string, len(cands))
	for i, c := range cands {
		scored[i] = c.Scored
		matched[c.RecordType+"\x00"+c.Key] = c.matched
	}
	scored = ranker.Rank(scored, 0)

	l := &loader{ctx: ctx, m: m}
	out := make([]SearchResult, 0, min(len(scored), max(limit, 0)))
	for _, s := range scored {
		if limit > 0 && len(out) >= limit {
			break
		}
		r, ok := l.result(records.Type(s.RecordType), s.Key)
		if !ok {
			continue
		}
		r.RelevanceScore = s.Score
		r.MatchedFields = matched[s.RecordType+"\x00"+s.Key]
		if r.MatchedFields == nil {
			r.MatchedFields = []string{}
		}
		out = append(out, r)
	}
	return out
}

// loader reads each record table at most once per search.
type loader struct {
	ctx   context.Context
	m     *Manager
	tasks map[string]records.Task
	team  map[string]records.TeamMember
	legis map[string]records.LegislationReference
}

func (l *loader) result(rt records.Type, key string) (SearchResult, bool) {
	switch rt {
	case records.TypeTask:
		if l.tasks == nil {
			l.tasks = make(map[string]records.Task)
			tasks, err := l.m.store.LoadTasks(l.ctx)
			l.logErr(rt, err)
			for _, t := range tasks {
				l.tasks[t.Key] = t
			}
		}
		t, ok := l.tasks[key]
		if !ok {
			return SearchResult{}, false
		}
		return SearchResult{
			RecordType: rt,
			RecordKey:  key,
			Title:      t.Title,
			Summary:    fmt.Sprintf("%s - %s", t.ComplianceArea, t.Status),
			Data:       t.Map(l.m.now()),
		}, true
	case records.TypeTeam:
		if l.team == nil {
			l.team = make(map[string]records.TeamMember)
			members, err := l.m.store.LoadTeamMembers(l.ctx)
			l.logErr(rt, err)
			for _, tm := range members {
				l.team[tm.Email] = tm
			}
		}
		tm, ok := l.team[key]
		if !ok {
			return SearchResult{}, false
		}
		return SearchResult{
			RecordType: rt,
			RecordKey:  key,
			Title:      tm.Name,
			Summary:    fmt.Sprintf("%s - %s", tm.Role, tm.Department),
			Data:       tm.Map(),
		}, true
	case records.TypeLegislation:
		if l.legis == nil {
			l.legis = make(map[string]records.LegislationReference)
			refs, err := l.m.store.LoadLegislation(l.ctx)
			l.logErr(rt, err)
			for _, ref := range refs {
				l.legis[ref.Code] = ref
			}
		}
		ref, ok := l.legis[key]
		if !ok {
			return SearchResult{}, false
		}
		return SearchResult{
			RecordType: rt,
			RecordKey:  key,
			Title:      ref.Title,
			Summary:    fmt.Sprintf("%s - %s", ref.Category, ref.Jurisdiction),
			Data:       ref.Map(),
		}, true
	}
	return SearchResult{}, false
}

func (l *loader) logErr(rt records.Type, err error) {
	if err != nil {
		l.m.logger.Error("loading records for search results", "record_type", rt, "error", err)
	}
}
