package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `[
  {
    "url": "https://example.com/java-8/",
    "name": "Java 8 (New)",
    "description": "Multi-choice test measuring Java knowledge.",
    "test_type": ["Knowledge & Skills"],
    "job_levels": ["Mid-Professional"],
    "duration": "Approximate Completion Time in minutes = 18",
    "remote_support": "Yes",
    "adaptive_support": "No",
    "embedding": [3, 4, 0]
  },
  {
    "url": "https://example.com/opq32r/",
    "name": "Occupational Personality Questionnaire OPQ32r",
    "description": "Personality questionnaire.",
    "test_type": ["P"],
    "job_levels": ["Entry-Level", "Graduate"],
    "duration": 25,
    "remote_support": true,
    "adaptive_support": "Yes",
    "embedding": [0, 0, 2]
  },
  {
    "url": "https://example.com/sales-sim/",
    "name": "Sales Simulation",
    "description": "",
    "test_type": ["Simulations", "Biodata & Situational Judgement", "Gamified"],
    "duration": "20-30 minutes",
    "remote_support": "No",
    "adaptive_support": "No",
    "embedding": [1, 1, 1]
  }
]`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	store, err := Load(writeCatalog(t, sampleCatalog))
	require.NoError(t, err)

	assert.Equal(t, 3, store.Count())
	assert.Equal(t, 3, store.Dimension())

	java, ok := store.Get("https://example.com/java-8/")
	require.True(t, ok)
	assert.Equal(t, []TestType{KnowledgeSkills}, java.TestTypes)
	require.NotNil(t, java.Duration)
	assert.Equal(t, 18, *java.Duration)
	assert.True(t, java.RemoteSupport)
	assert.False(t, java.AdaptiveSupport)
	assert.InDeltaSlice(t, []float32{0.6, 0.8, 0}, java.Embedding, 1e-6)
	assert.Equal(t, Technical, java.Category())

	opq, _ := store.Get("https://example.com/opq32r/")
	assert.Equal(t, []TestType{PersonalityBehavior}, opq.TestTypes)
	assert.Equal(t, 25, opq.DurationMinutes())
	assert.True(t, opq.RemoteSupport)
	assert.True(t, opq.IsEntryLevel())
	assert.Equal(t, Behavioral, opq.Category())

	sim, _ := store.Get("https://example.com/sales-sim/")
	assert.Equal(t, 20, sim.DurationMinutes())
	assert.Equal(t, Mixed, sim.Category())
	assert.Equal(t, TestType("Gamified"), sim.TestTypes[2])

	assert.Equal(t, 1, store.Position("https://example.com/opq32r/"))
	assert.Equal(t, -1, store.Position("https://example.com/missing/"))
	assert.True(t, store.HasCategory(Technical))
	assert.True(t, store.HasCategory(Behavioral))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		reason  string
	}{
		{"malformed", `[{"url":`, "malformed catalog"},
		{"empty", `[]`, "catalog is empty"},
		{"missing url", `[{"name":"x","embedding":[1]}]`, "missing url"},
		{"duplicate url", `[{"url":"a","embedding":[1]},{"url":"a","embedding":[1]}]`, "duplicate url"},
		{"missing embedding", `[{"url":"a"}]`, "missing embedding"},
		{"zero embedding", `[{"url":"a","embedding":[0,0]}]`, "invalid embedding"},
		{"mixed dimension", `[{"url":"a","embedding":[1,0]},{"url":"b","embedding":[1]}]`, "embedding dimension"},
		{"bad flag", `[{"url":"a","remote_support":"maybe","embedding":[1]}]`, "malformed catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeCatalog(t, tt.content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrLoad))

			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Contains(t, le.Reason, tt.reason)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.json"))
	assert.ErrorIs(t, err, ErrLoad)
}

func TestLoadRecords_AllowsMissingEmbeddings(t *testing.T) {
	records, err := LoadRecords(writeCatalog(t, `[{"url":"a","name":"A","test_type":["K"]}]`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Embedding)
}

func TestNewStore_DoesNotMutateInput(t *testing.T) {
	in := []Record{{URL: "a", Embedding: []float32{2, 0}}}
	store, err := NewStore(in)
	require.NoError(t, err)

	assert.Equal(t, []float32{2, 0}, in[0].Embedding)
	assert.Equal(t, []float32{1, 0}, store.At(0).Embedding)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	records, err := Decode(strings.NewReader(sampleCatalog), "sample")
	require.NoError(t, err)

	path := filepath.Join(dir, "out.json")
	require.NoError(t, Save(path, records))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Regexp(t, `"remote_support":\s*"Yes"`, string(raw))
	assert.Regexp(t, `"duration":\s*18`, string(raw))

	store, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Count())
	assert.Equal(t, 20, store.At(2).DurationMinutes())
}

func TestParseTestType(t *testing.T) {
	tests := []struct {
		in   string
		want TestType
	}{
		{"K", KnowledgeSkills},
		{"p", PersonalityBehavior},
		{"knowledge & skills", KnowledgeSkills},
		{" Development & 360 ", Development360},
		{"Gamified", TestType("Gamified")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTestType(tt.in))
		})
	}
	assert.Equal(t, "B", BiodataSituational.Code())
	assert.Equal(t, "", TestType("Gamified").Code())
}

func TestCategory_Covers(t *testing.T) {
	assert.True(t, Mixed.Covers(Technical))
	assert.True(t, Mixed.Covers(Behavioral))
	assert.True(t, Technical.Covers(Technical))
	assert.False(t, Technical.Covers(Behavioral))
	assert.False(t, Uncategorized.Covers(Technical))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"30 minutes", 30, true},
		{"max 45 minutes", 45, true},
		{"20-30 minutes", 20, true},
		{"Untimed", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDuration(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmbeddingText(t *testing.T) {
	d := 30
	text := EmbeddingText(Record{
		Name:        "Java 8",
		Description: "Measures Java knowledge.",
		TestTypes:   []TestType{KnowledgeSkills},
		JobLevels:   []string{"Mid-Professional"},
		Duration:    &d,
	})
	assert.Equal(t, "Java 8 Measures Java knowledge. Knowledge & Skills Mid-Professional 30 minutes Duration 30 minutes Assessment length 30 minutes", text)

	assert.Equal(t, "Bare", EmbeddingText(Record{Name: "Bare"}))
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://example.com/view/java-8", NormalizeURL("  https://Example.com/view/Java-8/ "))
	assert.Equal(t, NormalizeURL("https://x.io/a"), NormalizeURL("https://x.io/a//"))
}
