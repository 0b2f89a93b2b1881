package search

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer/tokenizer"
)

// DefaultSynonyms expands compliance vocabulary at query time.
var DefaultSynonyms = map[string][]string{
	"gdpr":       {"data protection", "privacy", "general data protection regulation"},
	"compliance": {"conformity", "adherence", "conformance"},
	"task":       {"action", "activity", "assignment", "to-do"},
	"overdue":    {"late", "delayed", "past due", "behind schedule"},
	"urgent":     {"critical", "high priority", "important", "pressing"},
	"complete":   {"done", "finished", "resolved", "completed"},
	"approve":    {"authorise", "authorize", "sign off", "endorse", "ratify"},
	"review":     {"check", "examine", "assess", "evaluate", "inspect"},
	"assign":     {"allocate", "delegate", "designate", "appoint"},
	"deadline":   {"due date", "target date", "completion date"},
}

// DefaultStopWords are dropped from unquoted queries.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "has",
	"he", "in", "is", "it", "its", "of", "on", "that", "the", "to", "was",
	"will", "with", "have", "had", "do", "does", "did", "can", "could",
	"should", "would", "may", "might", "must", "shall",
}

// Plan is a preprocessed query.
type Plan struct {
	// Groups holds one entry per query word: the word followed by its
	// synonyms. Any alternative satisfies the group.
	Groups [][]string
	// Phrase is set for quoted and EXACT queries.
	Phrase   string
	Excluded []string
	Operator Operator
	// Processed is the normalised query rendered with OR-groups.
	Processed string
}

// SearchText is the text sent to the index: every alternative of every
// group, or the phrase.
func (p Plan) SearchText() string {
	if p.Phrase != "" {
		return p.Phrase
	}
	var parts []string
	for _, g := range p.Groups {
		parts = append(parts, g...)
	}
	return strings.Join(parts, " ")
}

// Empty reports a plan with nothing to retrieve.
func (p Plan) Empty() bool {
	return p.Phrase == "" && len(p.Groups) == 0
}

// Preprocessor normalises query text. It is safe for concurrent use.
type Preprocessor struct {
	synonyms  map[string][]string
	stopWords map[string]struct{}
	tok       *tokenizer.Tokenizer
}

// NewPreprocessor uses the defaults for nil synonyms or empty stop words.
// tok decides which words can match anything in the index.
func NewPreprocessor(synonyms map[string][]string, stopWords []string, tok *tokenizer.Tokenizer) *Preprocessor {
	if synonyms == nil {
		synonyms = DefaultSynonyms
	}
	if len(stopWords) == 0 {
		stopWords = DefaultStopWords
	}
	if tok == nil {
		tok = tokenizer.New()
	}
	lower := make(map[string][]string, len(synonyms))
	for k, v := range synonyms {
		lower[strings.ToLower(k)] = v
	}
	stop := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &Preprocessor{synonyms: lower, stopWords: stop, tok: tok}
}

// Preprocess lowercases and collapses text, then either extracts the
// quoted phrase or expands each word into a synonym group and drops stop
// words. Upper-case AND and OR between words switch the operator; NOT
// (upper-case, or any case under the NOT operator) excludes the words
// after it.
func (p *Preprocessor) Preprocess(text string, op Operator) Plan {
	if op == "" {
		op = OpOR
	}
	plan := Plan{Operator: op}
	collapsed := strings.Join(strings.Fields(text), " ")
	lowered := strings.ToLower(collapsed)

	if op == OpEXACT {
		plan.Phrase = strings.TrimSpace(strings.ReplaceAll(lowered, `"`, ""))
		plan.Processed = plan.Phrase
		return plan
	}
	if strings.Contains(lowered, `"`) {
		plan.Phrase = quoted(lowered)
		plan.Processed = lowered
		return plan
	}

	var rendered []string
	excluding := false
	for _, raw := range strings.Fields(collapsed) {
		switch {
		case raw == "AND":
			plan.Operator = OpAND
			excluding = false
			continue
		case raw == "OR":
			plan.Operator = OpOR
			excluding = false
			continue
		case raw == "NOT" || (op == OpNOT && strings.EqualFold(raw, "not")):
			excluding = true
			continue
		}
		word := strings.ToLower(raw)
		if _, stop := p.stopWords[word]; stop {
			continue
		}
		if excluding {
			if len(p.tok.Tokenize(word)) > 0 {
				plan.Excluded = append(plan.Excluded, word)
				rendered = append(rendered, "NOT "+word)
			}
			continue
		}
		group := append([]string{word}, p.synonyms[word]...)
		if !p.searchable(group) {
			continue
		}
		plan.Groups = append(plan.Groups, group)
		if len(group) == 1 {
			rendered = append(rendered, word)
		} else {
			rendered = append(rendered, "("+strings.Join(group, " OR ")+")")
		}
	}
	plan.Processed = strings.Join(rendered, " ")
	return plan
}

func (p *Preprocessor) searchable(group []string) bool {
	for _, alt := range group {
		if len(p.tok.Tokenize(alt)) > 0 {
			return true
		}
	}
	return false
}

// quoted returns the first quoted segment, or the text without quotes when
// the quote is unbalanced or empty.
func quoted(s string) string {
	start := strings.IndexByte(s, '"')
	if end := strings.IndexByte(s[start+1:], '"'); end > 0 {
		if inner := strings.TrimSpace(s[start+1 : start+1+end]); inner != "" {
			return inner
		}
	}
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}
