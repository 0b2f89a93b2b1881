package tokenizer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeDocumentedExample(t *testing.T) {
	got := Tokenize("The GDPR Data-Protection review, due 2024!")
	assert.Equal(t, []string{"gdpr", "data-protection", "review", "due", "2024"}, got)
}

func TestTokenizeStopAndShortOnly(t *testing.T) {
	assert.Equal(t, []string{"gdpr"}, Tokenize("the a of GDPR is"))
}

func TestTokenizeEmpty(t *testing.T) {
	got := Tokenize("")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, Tokenize("  !!  ,, "))
}

func TestTokenizeDropsShortAndStopWords(t *testing.T) {
	assert.Equal(t, []string{"fire", "safety"}, Tokenize("a to fire is of safety it"))
}

func TestTokenizeKeepsUnderscoreAndCountsRunes(t *testing.T) {
	assert.Equal(t, []string{"iso_27001", "été"}, Tokenize("ISO_27001 été ça"))
}

func TestTokenizeIsDeterministic(t *testing.T) {
	text := "Annual compliance review of anti-money laundering controls"
	assert.Equal(t, Tokenize(text), Tokenize(text))
}

func TestCustomStopWords(t *testing.T) {
	tk := New(WithStopWords([]string{"Review"}))
	assert.Equal(t, []string{"the", "policy"}, tk.Tokenize("the review policy"))
	assert.True(t, tk.IsStopWord("review"))
}

func TestStemming(t *testing.T) {
	tk := New(WithStemming(true))
	assert.True(t, tk.Stemming())
	assert.Equal(t, []string{"review", "audit"}, tk.Tokenize("reviewing audits"))
}

var sampleTexts = map[string]string{
	"short": "Quarterly GDPR review of customer data retention",
	"medium": `Complete the annual anti-money laundering risk assessment for the retail
        division. Confirm that customer due diligence procedures follow the latest
        guidance and record any exceptions for the compliance committee.`,
	"long": strings.Repeat(`Health and safety inspections must be scheduled for every site.
        Fire wardens confirm evacuation routes, first aid kits are checked and the
        outcomes are logged against the relevant legislation reference. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Tokenize(text)
		}
	})
}

func BenchmarkTokenizeStemmed(b *testing.B) {
	tk := New(WithStemming(true))
	text := sampleTexts["medium"]
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = tk.Tokenize(text)
	}
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	base := "compliance review legislation safety audit "
	for _, size := range []int{10, 100, 1000, 5000} {
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}
