package catalog

import (
	"fmt"
	"strings"
)

// EmbeddingText builds the text embedded for a record: name, description,
// test types, job levels and a few duration phrasings so that queries like
// "40 minute test" land near records of that length.
func EmbeddingText(r Record) string {
	parts := []string{r.Name, r.Description}

	types := make([]string, 0, len(r.TestTypes))
	for _, t := range r.TestTypes {
		types = append(types, string(t))
	}
	parts = append(parts, strings.Join(types, " "), strings.Join(r.JobLevels, " "))

	if r.Duration != nil {
		d := *r.Duration
		parts = append(parts,
			fmt.Sprintf("%d minutes", d),
			fmt.Sprintf("Duration %d minutes", d),
			fmt.Sprintf("Assessment length %d minutes", d),
		)
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}
