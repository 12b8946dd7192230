package query

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "java developer, 40 mins", Normalize("  Java\tDeveloper,\n 40   MINS "))
	assert.Equal(t, "", Normalize(" \n\t "))
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "stop words and punctuation",
			text: "I am hiring a Java developer who can collaborate!",
			want: []string{"collaborate", "developer", "java"},
		},
		{
			name: "set semantics",
			text: "SQL sql, Sql.",
			want: []string{"sql"},
		},
		{
			name: "short tokens dropped",
			text: "x y go qa",
			want: []string{"go", "qa"},
		},
		{
			name: "only stop words",
			text: "the test assessment for a hire",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text, DefaultStopWords())
			assert.Equal(t, tt.want, got.Sorted())
		})
	}
}

func TestTokenizerMinLength(t *testing.T) {
	tok := NewTokenizer(nil, 3)
	assert.Equal(t, []string{"net", "rust"}, tok.Tokenize("go .net rust").Sorted())
}

func TestTokensIntersect(t *testing.T) {
	a := Tokenize("java spring sql", nil)
	b := Tokenize("sql java python", nil)
	assert.Equal(t, 2, a.Intersect(b))
	assert.Equal(t, 0, a.Intersect(Tokens{}))
}

func TestIntentClassifier(t *testing.T) {
	c := NewIntentClassifier(DefaultIntentKeywords())
	tests := []struct {
		query string
		want  Intent
	}{
		{"Java developers who can collaborate with stakeholders", Intent{Technical: true, Behavioral: true}},
		{"sales representative for customer accounts", Intent{Business: true}},
		{"new hire graduate program", Intent{Entry: true}},
		{"python engineer", Intent{Technical: true}},
		{"office administrator", Intent{}},
		{"team lead with strong communication", Intent{Behavioral: true}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			n := Normalize(tt.query)
			got := c.Classify(Tokenize(n, DefaultStopWords()), n)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntentKeywordsOverride(t *testing.T) {
	classify := func(k IntentKeywords, raw string) Intent {
		n := Normalize(raw)
		return NewIntentClassifier(k).Classify(Tokenize(n, nil), n)
	}

	assert.True(t, classify(DefaultIntentKeywords(), "fitness trainer").Behavioral)

	k := DefaultIntentKeywords().Override(IntentKeywords{
		Technical:  []string{"golang"},
		Behavioral: []string{"collaborate", "teamwork"},
	})
	assert.Equal(t, []string{"golang"}, k.Technical)
	assert.Equal(t, DefaultIntentKeywords().Business, k.Business)
	assert.True(t, classify(k, "Golang backend").Technical)
	assert.False(t, classify(k, "Java backend").Technical, "replaced list drops built-in keywords")
	assert.False(t, classify(k, "fitness trainer").Behavioral)
	assert.True(t, classify(k, "must collaborate daily").Behavioral)
	assert.NotContains(t, DefaultIntentKeywords().Technical, "golang")

	assert.True(t, IntentKeywords{}.Empty())
	assert.Equal(t, "none", Intent{}.String())
	assert.Equal(t, "technical+entry", Intent{Technical: true, Entry: true}.String())
	assert.Equal(t, []catalog.Category{catalog.Technical, catalog.Behavioral},
		Intent{Technical: true, Behavioral: true}.Categories())
}

func TestExtractDurations(t *testing.T) {
	tests := []struct {
		text string
		want []int
	}{
		{"completed in 40 minutes", []int{40}},
		{"max 30 mins", []int{30}},
		{"about 1 hour", []int{60}},
		{"1.5 hours long", []int{90}},
		{"an hour at most", []int{60}},
		{"half an hour", []int{30}},
		{"between 30-40 minutes", []int{30, 40}},
		{"20 to 25 minutes or 1 hour", []int{20, 25, 60}},
		{"no time limit", []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDurations(Normalize(tt.text)))
		})
	}
}

type stubEmbedder struct {
	vec      []float32
	err      error
	gotText  string
	deadline bool
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	s.gotText = text
	_, s.deadline = ctx.Deadline()
	return s.vec, s.err
}

func TestEncode(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{0.6, 0.8}}
	enc := NewEncoder(emb, Config{Dimension: 2, Timeout: time.Second}, nil)

	qc, err := enc.Encode(context.Background(), "  Java Developer,  40 minutes ")
	require.NoError(t, err)
	assert.Equal(t, "java developer, 40 minutes", qc.Normalized)
	assert.Equal(t, "java developer, 40 minutes", emb.gotText)
	assert.True(t, emb.deadline)
	assert.Equal(t, []float32{0.6, 0.8}, qc.Embedding)
	assert.True(t, qc.Tokens.Has("java"))
	assert.True(t, qc.Intent.Technical)
	assert.Equal(t, []int{40}, qc.Durations)
}

func TestEncodeErrors(t *testing.T) {
	boom := errors.New("provider down")
	tests := []struct {
		name  string
		raw   string
		emb   *stubEmbedder
		stage string
	}{
		{name: "empty", raw: "", emb: &stubEmbedder{vec: []float32{1}}, stage: StageInput},
		{name: "whitespace", raw: " \n\t", emb: &stubEmbedder{vec: []float32{1}}, stage: StageInput},
		{name: "provider failure", raw: "java", emb: &stubEmbedder{err: boom}, stage: StageEmbed},
		{name: "empty vector", raw: "java", emb: &stubEmbedder{vec: []float32{}}, stage: StageVector},
		{name: "zero vector", raw: "java", emb: &stubEmbedder{vec: []float32{0, 0, 0}}, stage: StageVector},
		{name: "nan", raw: "java", emb: &stubEmbedder{vec: []float32{float32(math.NaN()), 1, 0}}, stage: StageVector},
		{name: "wrong dimension", raw: "java", emb: &stubEmbedder{vec: []float32{1, 0}}, stage: StageVector},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewEncoder(tt.emb, Config{Dimension: 3}, nil)
			qc, err := enc.Encode(context.Background(), tt.raw)
			require.Error(t, err)
			assert.Nil(t, qc)
			assert.ErrorIs(t, err, ErrEncoding)

			var ee *EncodingError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tt.stage, ee.Stage)
		})
	}

	enc := NewEncoder(&stubEmbedder{err: boom}, Config{}, nil)
	_, err := enc.Encode(context.Background(), "java")
	assert.ErrorIs(t, err, boom)
}
