// Package index holds the per-record-type forward and inverted indices.
// A TypeIndex is not safe for concurrent use; the indexer Manager guards it.
package index

import "sort"

// AllField is the synthetic field holding every token of a record.
const AllField = "_all"

// Fields maps a field name to its ordered token list.
type Fields map[string][]string

// Tokens returns the distinct tokens across all fields.
func (f Fields) Tokens() map[string]struct{} {
	set := make(map[string]struct{})
	for _, toks := range f {
		for _, t := range toks {
			set[t] = struct{}{}
		}
	}
	return set
}

// Forward maps record key to its indexed fields.
type Forward map[string]Fields

// Inverted maps token to the set of record keys containing it.
type Inverted map[string]map[string]struct{}

// TypeIndex is the forward and inverted index of one record type. A key is
// in Inverted[t] iff t occurs in some field of Forward[key].
type TypeIndex struct {
	Forward  Forward
	Inverted Inverted
}

func New() *TypeIndex {
	return &TypeIndex{
		Forward:  make(Forward),
		Inverted: make(Inverted),
	}
}

// Put indexes fields under key, retracting whatever key held before.
func (ti *TypeIndex) Put(key string, fields Fields) {
	ti.Remove(key)
	ti.Forward[key] = fields
	for t := range fields.Tokens() {
		keys, ok := ti.Inverted[t]
		if !ok {
			keys = make(map[string]struct{})
			ti.Inverted[t] = keys
		}
		keys[key] = struct{}{}
	}
}

// Remove deletes key and drops token sets it leaves empty. It reports
// whether key was present.
func (ti *TypeIndex) Remove(key string) bool {
	fields, ok := ti.Forward[key]
	if !ok {
		return false
	}
	delete(ti.Forward, key)
	for t := range fields.Tokens() {
		keys := ti.Inverted[t]
		delete(keys, key)
		if len(keys) == 0 {
			delete(ti.Inverted, t)
		}
	}
	return true
}

// Get returns the fields indexed under key.
func (ti *TypeIndex) Get(key string) (Fields, bool) {
	f, ok := ti.Forward[key]
	return f, ok
}

// Len is the number of indexed records.
func (ti *TypeIndex) Len() int { return len(ti.Forward) }

// UniqueTokens is the number of distinct tokens.
func (ti *TypeIndex) UniqueTokens() int { return len(ti.Inverted) }

// FieldCount is the number of (record, field) entries.
func (ti *TypeIndex) FieldCount() int {
	n := 0
	for _, f := range ti.Forward {
		n += len(f)
	}
	return n
}

// Match counts, for every record containing at least one query token, how
// many distinct query tokens it contains. When fieldNames is non-empty only
// those fields are consulted; otherwise the inverted index is.
func (ti *TypeIndex) Match(queryTokens []string, fieldNames []string) map[string]int {
	distinct := dedupe(queryTokens)
	counts := make(map[string]int)
	if len(fieldNames) == 0 {
		for _, t := range distinct {
			for key := range ti.Inverted[t] {
				counts[key]++
			}
		}
		return counts
	}
	for key, fields := range ti.Forward {
		present := make(map[string]struct{})
		for _, name := range fieldNames {
			for _, t := range fields[name] {
				present[t] = struct{}{}
			}
		}
		n := 0
		for _, t := range distinct {
			if _, ok := present[t]; ok {
				n++
			}
		}
		if n > 0 {
			counts[key] = n
		}
	}
	return counts
}

// MatchedFields lists the named fields of key sharing a token with the
// query, sorted. AllField is returned only when no named field matched.
func (ti *TypeIndex) MatchedFields(key string, queryTokens []string) []string {
	fields, ok := ti.Forward[key]
	if !ok {
		return nil
	}
	q := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		q[t] = struct{}{}
	}
	var matched []string
	allMatched := false
	for name, toks := range fields {
		if !intersects(toks, q) {
			continue
		}
		if name == AllField {
			allMatched = true
			continue
		}
		matched = append(matched, name)
	}
	sort.Strings(matched)
	if len(matched) == 0 && allMatched {
		matched = []string{AllField}
	}
	return matched
}

// ContainsPhrase reports whether phrase occurs as a contiguous run in the
// AllField tokens of key.
func (ti *TypeIndex) ContainsPhrase(key string, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	all := ti.Forward[key][AllField]
	for i := 0; i+len(phrase) <= len(all); i++ {
		match := true
		for j, t := range phrase {
			if all[i+j] != t {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// HasAll reports whether every token is in the AllField tokens of key.
func (ti *TypeIndex) HasAll(key string, tokens []string) bool {
	all := ti.Forward[key][AllField]
	set := make(map[string]struct{}, len(all))
	for _, t := range all {
		set[t] = struct{}{}
	}
	for _, t := range tokens {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

func intersects(toks []string, set map[string]struct{}) bool {
	for _, t := range toks {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
