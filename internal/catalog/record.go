// Package catalog holds the immutable assessment catalog: one Record per
// assessment, each with a unit-normalized embedding, addressable by URL and
// by ingestion position.
package catalog

import (
	"strings"
)

// TestType is an assessment instrument type. Known types use the names the
// catalog publishes; unknown tags are kept verbatim.
type TestType string

const (
	AbilityAptitude     TestType = "Ability & Aptitude"
	BiodataSituational  TestType = "Biodata & Situational Judgement"
	Competencies        TestType = "Competencies"
	Development360      TestType = "Development & 360"
	AssessmentExercises TestType = "Assessment Exercises"
	KnowledgeSkills     TestType = "Knowledge & Skills"
	PersonalityBehavior TestType = "Personality & Behavior"
	Simulations         TestType = "Simulations"
)

var knownTypes = []TestType{
	AbilityAptitude, BiodataSituational, Competencies, Development360,
	AssessmentExercises, KnowledgeSkills, PersonalityBehavior, Simulations,
}

var typeCodes = map[string]TestType{
	"A": AbilityAptitude,
	"B": BiodataSituational,
	"C": Competencies,
	"D": Development360,
	"E": AssessmentExercises,
	"K": KnowledgeSkills,
	"P": PersonalityBehavior,
	"S": Simulations,
}

// ParseTestType accepts a one-letter code or a type name, case-insensitively.
func ParseTestType(s string) TestType {
	s = strings.TrimSpace(s)
	if t, ok := typeCodes[strings.ToUpper(s)]; ok {
		return t
	}
	for _, t := range knownTypes {
		if strings.EqualFold(s, string(t)) {
			return t
		}
	}
	return TestType(s)
}

// Code returns the one-letter code, or "" for unknown types.
func (t TestType) Code() string {
	for code, known := range typeCodes {
		if known == t {
			return code
		}
	}
	return ""
}

// Category returns the broad category of the type.
func (t TestType) Category() Category {
	switch t {
	case KnowledgeSkills, AbilityAptitude, Simulations, AssessmentExercises:
		return Technical
	case PersonalityBehavior, BiodataSituational, Competencies, Development360:
		return Behavioral
	default:
		return Uncategorized
	}
}

// Category groups test types into technical and behavioral instruments.
type Category string

const (
	Uncategorized Category = ""
	Technical     Category = "technical"
	Behavioral    Category = "behavioral"
	// Mixed records carry both technical and behavioral types.
	Mixed Category = "mixed"
)

// Covers reports whether a record in category c satisfies a requirement for
// target. Mixed covers both broad categories.
func (c Category) Covers(target Category) bool {
	if c == Uncategorized || target == Uncategorized {
		return false
	}
	return c == target || c == Mixed
}

// BroadCategories are the categories the diversity rule balances.
var BroadCategories = []Category{Technical, Behavioral}

// Record is a single catalog entry. Records are immutable once loaded.
type Record struct {
	URL             string
	Name            string
	Description     string
	TestTypes       []TestType
	JobLevels       []string
	Duration        *int // minutes; nil when unknown
	RemoteSupport   bool
	AdaptiveSupport bool
	Embedding       []float32
}

// ID returns the record's unique key.
func (r Record) ID() string { return r.URL }

// Category derives the broad category from the record's test types.
func (r Record) Category() Category {
	var technical, behavioral bool
	for _, t := range r.TestTypes {
		switch t.Category() {
		case Technical:
			technical = true
		case Behavioral:
			behavioral = true
		}
	}
	switch {
	case technical && behavioral:
		return Mixed
	case technical:
		return Technical
	case behavioral:
		return Behavioral
	default:
		return Uncategorized
	}
}

// HasType reports whether the record carries test type t.
func (r Record) HasType(t TestType) bool {
	for _, have := range r.TestTypes {
		if have == t {
			return true
		}
	}
	return false
}

// IsEntryLevel reports whether any job level targets entry-level or
// graduate candidates.
func (r Record) IsEntryLevel() bool {
	for _, lvl := range r.JobLevels {
		l := strings.ToLower(lvl)
		if strings.Contains(l, "entry") || strings.Contains(l, "graduate") {
			return true
		}
	}
	return false
}

// DurationMinutes returns the duration or 0 when unknown.
func (r Record) DurationMinutes() int {
	if r.Duration == nil {
		return 0
	}
	return *r.Duration
}

// NormalizeURL canonicalizes a URL for comparison: trimmed, lower-cased,
// without a trailing slash.
func NormalizeURL(u string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(u)), "/")
}
