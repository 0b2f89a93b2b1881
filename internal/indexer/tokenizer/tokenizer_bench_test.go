package tokenizer

import (
	"strings"
	"testing"
)

// Field sizes seen on compliance records: a task title, a legislation
// summary and a long evidence note.
var (
	benchTitle   = "Annual GDPR data protection impact assessment (DPIA) for HR systems"
	benchSummary = "The Modern Slavery Act 2015 requires organisations with a turnover " +
		"above £36m to publish an annual slavery and human trafficking statement, " +
		"approved by the board and linked from the homepage."
	benchNote = strings.Repeat("Evidence reviewed by the compliance manager: training "+
		"records, supplier questionnaires, AML screening logs and ISO-27001 audit findings. ", 40)
)

func benchTokenizer(b *testing.B, tok *Tokenizer, text string) {
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for b.Loop() {
		tok.Tokenize(text)
	}
}

func BenchmarkTokenizer(b *testing.B) {
	plain := New()
	stemmed := New(WithStemming(true))
	stopped := New(WithStopWords([]string{"the", "and", "by", "of", "for", "to", "a"}), WithStemming(true))

	for _, tc := range []struct {
		name string
		tok  *Tokenizer
	}{
		{"plain", plain},
		{"stemmed", stemmed},
		{"stemmed+stopwords", stopped},
	} {
		b.Run(tc.name+"/title", func(b *testing.B) { benchTokenizer(b, tc.tok, benchTitle) })
		b.Run(tc.name+"/summary", func(b *testing.B) { benchTokenizer(b, tc.tok, benchSummary) })
		b.Run(tc.name+"/note", func(b *testing.B) { benchTokenizer(b, tc.tok, benchNote) })
	}
}
