package recommend

import (
	"time"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
	"github.com/fyrsmithlabs/assessd/internal/query"
	"github.com/fyrsmithlabs/assessd/internal/reranker"
)

// Assessment is the wire shape of one recommended catalog record.
type Assessment struct {
	URL             string   `json:"url"`
	Name            string   `json:"name"`
	AdaptiveSupport string   `json:"adaptive_support"`
	Description     string   `json:"description"`
	Duration        int      `json:"duration"`
	RemoteSupport   string   `json:"remote_support"`
	TestType        []string `json:"test_type"`
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// NewAssessment converts a catalog record. Unknown durations become 0.
func NewAssessment(rec catalog.Record) Assessment {
	types := make([]string, len(rec.TestTypes))
	for i, t := range rec.TestTypes {
		types[i] = string(t)
	}
	return Assessment{
		URL:             rec.URL,
		Name:            rec.Name,
		AdaptiveSupport: yesNo(rec.AdaptiveSupport),
		Description:     rec.Description,
		Duration:        rec.DurationMinutes(),
		RemoteSupport:   yesNo(rec.RemoteSupport),
		TestType:        types,
	}
}

// RankedResult is the ordered output of one recommendation. Items holds
// at most TopK entries with unique URLs.
type RankedResult struct {
	Query     string
	RequestID string
	TopK      int
	Items     []reranker.Scored
	// Candidates is the stage-one candidate count.
	Candidates int
	Intent     query.Intent
	Elapsed    time.Duration
}

// Len returns the number of ranked items.
func (r *RankedResult) Len() int { return len(r.Items) }

// URLs returns the ranked URLs in order.
func (r *RankedResult) URLs() []string {
	out := make([]string, len(r.Items))
	for i, s := range r.Items {
		out[i] = s.Record.URL
	}
	return out
}

// Assessments returns the ranked items in wire form.
func (r *RankedResult) Assessments() []Assessment {
	out := make([]Assessment, len(r.Items))
	for i, s := range r.Items {
		out[i] = NewAssessment(s.Record)
	}
	return out
}
