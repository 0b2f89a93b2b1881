package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreprocessExpandsSynonyms(t *testing.T) {
	p := NewPreprocessor(nil, nil, nil)
	plan := p.Preprocess("the  GDPR compliance", OpOR)

	assert.Equal(t, OpOR, plan.Operator)
	assert.Equal(t, [][]string{
		{"gdpr", "data protection", "privacy", "general data protection regulation"},
		{"compliance", "conformity", "adherence", "conformance"},
	}, plan.Groups)
	assert.Equal(t,
		"(gdpr OR data protection OR privacy OR general data protection regulation) (compliance OR conformity OR adherence OR conformance)",
		plan.Processed)
	assert.Empty(t, plan.Phrase)
	assert.Contains(t, plan.SearchText(), "privacy")
}

func TestPreprocessQuotedPhrase(t *testing.T) {
	p := NewPreprocessor(nil, nil, nil)
	plan := p.Preprocess(`audit "Data  Protection" plan`, OpOR)
	assert.Equal(t, "data protection", plan.Phrase)
	assert.Empty(t, plan.Groups)
	assert.Equal(t, "data protection", plan.SearchText())

	plan = p.Preprocess(`unbalanced "quote`, OpOR)
	assert.Equal(t, "unbalanced quote", plan.Phrase)
}

func TestPreprocessExact(t *testing.T) {
	p := NewPreprocessor(nil, nil, nil)
	plan := p.Preprocess("  Fire   Safety ", OpEXACT)
	assert.Equal(t, "fire safety", plan.Phrase)
	assert.Equal(t, OpEXACT, plan.Operator)
}

func TestPreprocessKeywords(t *testing.T) {
	p := NewPreprocessor(map[string][]string{}, nil, nil)

	plan := p.Preprocess("gdpr AND audit", OpOR)
	assert.Equal(t, OpAND, plan.Operator)
	assert.Equal(t, [][]string{{"gdpr"}, {"audit"}}, plan.Groups)
	assert.Equal(t, "gdpr audit", plan.Processed)

	plan = p.Preprocess("gdpr NOT draft", OpOR)
	assert.Equal(t, [][]string{{"gdpr"}}, plan.Groups)
	assert.Equal(t, []string{"draft"}, plan.Excluded)
	assert.Equal(t, "gdpr NOT draft", plan.Processed)

	// Lower-case "not" is an ordinary word unless the operator is NOT.
	plan = p.Preprocess("gdpr not draft", OpOR)
	assert.Empty(t, plan.Excluded)
	plan = p.Preprocess("gdpr not draft", OpNOT)
	assert.Equal(t, []string{"draft"}, plan.Excluded)
}

func TestPreprocessDropsUnsearchableWords(t *testing.T) {
	p := NewPreprocessor(nil, nil, nil)
	assert.True(t, p.Preprocess("is a", OpOR).Empty())
	assert.True(t, p.Preprocess("x ab", OpOR).Empty())
	assert.True(t, p.Preprocess("", OpOR).Empty())
	assert.Equal(t, OpOR, p.Preprocess("audit", "").Operator)
}

func TestPreprocessCustomTables(t *testing.T) {
	p := NewPreprocessor(map[string][]string{"SOX": {"sarbanes oxley"}}, []string{"please"}, nil)
	plan := p.Preprocess("please sox", OpOR)
	assert.Equal(t, [][]string{{"sox", "sarbanes oxley"}}, plan.Groups)
}
