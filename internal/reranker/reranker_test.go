package reranker

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
	"github.com/fyrsmithlabs/assessd/internal/query"
	"github.com/fyrsmithlabs/assessd/internal/retrieval"
	"github.com/fyrsmithlabs/assessd/internal/training"
)

type categorySet map[catalog.Category]bool

func (c categorySet) HasCategory(cat catalog.Category) bool { return c[cat] }

var bothCategories = categorySet{catalog.Technical: true, catalog.Behavioral: true}

func intPtr(v int) *int { return &v }

func candidate(pos int, sim float32, name string, types ...catalog.TestType) retrieval.Candidate {
	return retrieval.Candidate{
		Record: catalog.Record{
			URL:       fmt.Sprintf("https://x.io/%02d", pos),
			Name:      name,
			TestTypes: types,
		},
		Similarity: sim,
		Position:   pos,
		Rank:       pos,
	}
}

func analyze(raw string) *query.Context {
	return query.NewEncoder(nil, query.Config{}, nil).Analyze(raw)
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		w       Weights
		wantErr bool
	}{
		{name: "defaults", w: DefaultWeights()},
		{name: "negative", w: Weights{Training: 0.9, Lexical: -0.1}, wantErr: true},
		{name: "training not dominant", w: Weights{Training: 0.3, Lexical: 0.3, Type: 0.2}, wantErr: true},
		{name: "all zero", w: Weights{}, wantErr: true},
		{name: "nan", w: Weights{Training: math.NaN()}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.InDelta(t, 1.0, DefaultWeights().Sum(), 1e-9)
	n := Weights{Training: 2, Lexical: 1, Type: 1}.Normalized()
	assert.InDelta(t, 0.5, n.Training, 1e-9)
	assert.InDelta(t, 1.0, n.Sum(), 1e-9)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.PartialCredit = 1.5
	cfg.DiversityMargin = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partial credit")
	assert.Contains(t, err.Error(), "diversity margin")

	_, err = NewWeighted(cfg, nil, bothCategories, nil)
	assert.Error(t, err)
	_, err = NewWeighted(DefaultConfig(), nil, nil, nil)
	assert.Error(t, err)
}

func TestLexicalScore(t *testing.T) {
	q := query.Tokenize("java spring developer", nil)
	tests := []struct {
		name, desc string
		want       float64
	}{
		{"Java Spring", "", 2.0 / 3},
		{"Java", "spring developer framework", 1},
		{"Backend Engineer", "java spring developer framework", 1},
		{"Java", "java", 1.0 / 3},
		{"Java Spring Developer", "java spring developer", 1},
		{"Accounting", "ledger", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lexicalScore(q, query.Tokenize(tt.name, nil), query.Tokenize(tt.desc, nil))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
	assert.Zero(t, lexicalScore(query.Tokens{}, q, q))
}

func TestTypeScore(t *testing.T) {
	tech := catalog.Record{TestTypes: []catalog.TestType{catalog.KnowledgeSkills}}
	beh := catalog.Record{TestTypes: []catalog.TestType{catalog.PersonalityBehavior}}
	mixed := catalog.Record{TestTypes: []catalog.TestType{catalog.KnowledgeSkills, catalog.PersonalityBehavior}}
	biodata := catalog.Record{TestTypes: []catalog.TestType{catalog.BiodataSituational}}
	entry := catalog.Record{TestTypes: []catalog.TestType{catalog.Simulations}, JobLevels: []string{"Graduate"}}
	ability := catalog.Record{TestTypes: []catalog.TestType{catalog.AbilityAptitude}}

	tests := []struct {
		name   string
		intent query.Intent
		rec    catalog.Record
		want   float64
	}{
		{"no intent is neutral", query.Intent{}, tech, NeutralTypeScore},
		{"technical match", query.Intent{Technical: true}, tech, 1},
		{"technical miss", query.Intent{Technical: true}, beh, 0},
		{"mixed covers behavioral", query.Intent{Behavioral: true}, mixed, 1},
		{"mixed partial credit", query.Intent{Business: true}, mixed, 0.5},
		{"business biodata", query.Intent{Business: true}, biodata, 1},
		{"entry job level", query.Intent{Entry: true}, entry, 1},
		{"entry ability", query.Intent{Entry: true}, ability, 1},
		{"entry miss", query.Intent{Entry: true}, beh, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, typeScore(tt.intent, tt.rec, 0.5))
		})
	}
}

func TestDurationScore(t *testing.T) {
	rec := func(d int) catalog.Record { return catalog.Record{Duration: intPtr(d)} }
	tests := []struct {
		name      string
		requested []int
		rec       catalog.Record
		want      float64
	}{
		{"no request", nil, rec(90), 1},
		{"unknown duration", []int{30}, catalog.Record{}, 1},
		{"exact", []int{30}, rec(30), 1},
		{"within tolerance", []int{30}, rec(40), 1},
		{"halfway through band", []int{30}, rec(55), 0.5},
		{"beyond band", []int{30}, rec(80), 0},
		{"closest request wins", []int{10, 60}, rec(55), 1},
		{"shorter than requested", []int{60}, rec(35), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, durationScore(tt.requested, tt.rec, 10, 30), 1e-9)
		})
	}
	assert.Zero(t, durationScore([]int{30}, rec(45), 10, 0))
}

func TestEmbeddingScoreAndClamp(t *testing.T) {
	assert.Equal(t, 1.0, embeddingScore(1))
	assert.Equal(t, 0.0, embeddingScore(-1))
	assert.Equal(t, 0.5, embeddingScore(0))
	assert.Equal(t, 0.0, clamp01(math.NaN()))
	assert.Equal(t, 0.0, clamp01(math.Inf(1)))
	assert.Equal(t, 1.0, clamp01(1.7))
}

func TestRerankOrdering(t *testing.T) {
	w, err := NewWeighted(DefaultConfig(), nil, bothCategories, nil)
	require.NoError(t, err)

	qc := analyze("java developer")
	cands := []retrieval.Candidate{
		candidate(0, 0.9, "Office Basics", catalog.KnowledgeSkills),
		candidate(1, 0.5, "Java Developer", catalog.KnowledgeSkills),
		candidate(2, 0.5, "Java Developer", catalog.KnowledgeSkills),
		candidate(3, 0.6, "Java Developer", catalog.KnowledgeSkills),
	}
	out, err := w.Rerank(context.Background(), qc, cands, 3)
	require.NoError(t, err)
	require.Len(t, out, 3)

	// Equal scores fall back to similarity, then position.
	assert.Equal(t, []int{3, 1, 2}, []int{out[0].Position, out[1].Position, out[2].Position})
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
	}
}

func TestRerankTopK(t *testing.T) {
	w, err := NewWeighted(DefaultConfig(), nil, bothCategories, nil)
	require.NoError(t, err)
	qc := analyze("anything")

	var cands []retrieval.Candidate
	for i := 0; i < 15; i++ {
		cands = append(cands, candidate(i, float32(15-i)/15, "item", catalog.KnowledgeSkills))
	}

	out, err := w.Rerank(context.Background(), qc, cands, 0)
	require.NoError(t, err)
	assert.Len(t, out, DefaultTopK)

	out, err = w.Rerank(context.Background(), qc, cands[:4], 10)
	require.NoError(t, err)
	assert.Len(t, out, 4)

	out, err = w.Rerank(context.Background(), qc, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, out)

	// Duplicate URLs are collapsed.
	out, err = w.Rerank(context.Background(), qc, append(cands[:2:2], cands[0]), 10)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	//nolint:staticcheck // nil context is the case under test
	_, err = w.Rerank(nil, qc, cands, 1)
	assert.ErrorIs(t, err, ErrNilContext)
	_, err = w.Rerank(context.Background(), nil, cands, 1)
	assert.ErrorIs(t, err, ErrNilQuery)
}

func diversityCandidates() []retrieval.Candidate {
	var cands []retrieval.Candidate
	// Four strongly matching technical items, then weaker behavioral ones.
	for i := 0; i < 4; i++ {
		cands = append(cands, candidate(i, 0.8, "Java Programming", catalog.KnowledgeSkills))
	}
	cands = append(cands,
		candidate(4, 0.8, "Java Programming Teamwork", catalog.PersonalityBehavior),
		candidate(5, 0.8, "Java Programming Teamwork", catalog.PersonalityBehavior),
		candidate(6, 0.1, "Unrelated Survey", catalog.PersonalityBehavior),
	)
	return cands
}

func TestRerankDiversity(t *testing.T) {
	qc := analyze("java programming")

	t.Run("swaps in missing category within margin", func(t *testing.T) {
		w, err := NewWeighted(DefaultConfig(), nil, bothCategories, nil)
		require.NoError(t, err)

		out, err := w.Rerank(context.Background(), qc, diversityCandidates(), 4)
		require.NoError(t, err)
		require.Len(t, out, 4)

		var tech, beh int
		for _, s := range out {
			switch s.Record.Category() {
			case catalog.Technical:
				tech++
			case catalog.Behavioral:
				beh++
				assert.True(t, s.Promoted)
				assert.Equal(t, 4, s.Position, "highest-scoring behavioral candidate is promoted")
			}
		}
		assert.Equal(t, 3, tech)
		assert.Equal(t, 1, beh)
		assert.NotContains(t, positions(out), 3, "lowest technical item is evicted")
	})

	t.Run("margin blocks weak candidates", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DiversityMargin = 0
		w, err := NewWeighted(cfg, nil, bothCategories, nil)
		require.NoError(t, err)

		out, err := w.Rerank(context.Background(), qc, diversityCandidates(), 4)
		require.NoError(t, err)
		for _, s := range out {
			assert.Equal(t, catalog.Technical, s.Record.Category())
		}
	})

	t.Run("category absent from catalog", func(t *testing.T) {
		w, err := NewWeighted(DefaultConfig(), nil, categorySet{catalog.Technical: true}, nil)
		require.NoError(t, err)

		out, err := w.Rerank(context.Background(), qc, diversityCandidates(), 4)
		require.NoError(t, err)
		for _, s := range out {
			assert.False(t, s.Promoted)
		}
	})

	t.Run("replacement ranked beyond twice top k", func(t *testing.T) {
		w, err := NewWeighted(DefaultConfig(), nil, bothCategories, nil)
		require.NoError(t, err)

		out, err := w.Rerank(context.Background(), qc, diversityCandidates(), 2)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, catalog.Technical, out[0].Record.Category())
		assert.Equal(t, 0, out[0].Position)
		assert.Equal(t, catalog.Behavioral, out[1].Record.Category())
		assert.Equal(t, 4, out[1].Position)
		assert.True(t, out[1].Promoted)
	})

	t.Run("large technical catalog keeps a behavioral item", func(t *testing.T) {
		w, err := NewWeighted(DefaultConfig(), nil, bothCategories, nil)
		require.NoError(t, err)

		var cands []retrieval.Candidate
		for i := 0; i < 40; i++ {
			cands = append(cands, candidate(i, 0.9, "Java Programming", catalog.KnowledgeSkills))
		}
		for i := 40; i < 80; i++ {
			cands = append(cands, candidate(i, 0.5, "Java Programming Teamwork", catalog.PersonalityBehavior))
		}

		out, err := w.Rerank(context.Background(), qc, cands, 10)
		require.NoError(t, err)
		require.Len(t, out, 10)
		var beh int
		for _, s := range out {
			if s.Record.Category() == catalog.Behavioral {
				beh++
				assert.True(t, s.Promoted)
				assert.Equal(t, 40, s.Position)
			}
		}
		assert.Equal(t, 1, beh)
	})
}

func TestRerankTrainingDominates(t *testing.T) {
	table := training.NewTable([]training.Row{
		{Query: "Entry level sales role", URL: "https://x.io/10"},
		{Query: "Entry level sales role", URL: "https://x.io/11"},
		{Query: "Entry level sales role", URL: "https://x.io/12"},
	})
	w, err := NewWeighted(DefaultConfig(), table, bothCategories, nil)
	require.NoError(t, err)

	var cands []retrieval.Candidate
	for i := 0; i < 10; i++ {
		cands = append(cands, candidate(i, 0.95, "Entry Level Sales Role", catalog.BiodataSituational))
	}
	for i := 10; i < 13; i++ {
		cands = append(cands, candidate(i, 0.05, "Obscure", catalog.Simulations))
	}

	out, err := w.Rerank(context.Background(), analyze("entry level sales role"), cands, 10)
	require.NoError(t, err)
	top := positions(out)
	for _, p := range []int{10, 11, 12} {
		assert.Contains(t, top, p)
	}
}

func TestRerankScoresInRange(t *testing.T) {
	table := training.NewTable([]training.Row{{Query: "python data", URL: "https://x.io/03"}})
	w, err := NewWeighted(DefaultConfig(), table, bothCategories, nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	types := []catalog.TestType{catalog.KnowledgeSkills, catalog.PersonalityBehavior, catalog.AbilityAptitude, catalog.BiodataSituational}
	var cands []retrieval.Candidate
	for i := 0; i < 40; i++ {
		c := candidate(i, float32(rng.Float64()*2-1), "python data team", types[rng.Intn(len(types))])
		c.Record.Duration = intPtr(rng.Intn(90))
		cands = append(cands, c)
	}
	cands[5].Similarity = float32(math.NaN())

	out, err := w.Rerank(context.Background(), analyze("python data team, 30 minutes"), cands, 10)
	require.NoError(t, err)
	for _, s := range out {
		for _, v := range []float64{s.Score, s.Sub.Training, s.Sub.Lexical, s.Sub.Type, s.Sub.Duration, s.Sub.Embedding} {
			assert.False(t, math.IsNaN(v))
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func positions(s []Scored) []int {
	out := make([]int, len(s))
	for i, x := range s {
		out[i] = x.Position
	}
	return out
}
