package query

import (
	"strings"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
)

// Intent flags the kinds of instrument a query asks for.
type Intent struct {
	Technical  bool
	Behavioral bool
	Business   bool
	Entry      bool
}

// Any reports whether any intent was detected.
func (i Intent) Any() bool {
	return i.Technical || i.Behavioral || i.Business || i.Entry
}

// Categories returns the broad catalog categories the intent points at.
func (i Intent) Categories() []catalog.Category {
	var out []catalog.Category
	if i.Technical {
		out = append(out, catalog.Technical)
	}
	if i.Behavioral {
		out = append(out, catalog.Behavioral)
	}
	return out
}

// String lists the set flags, e.g. "technical+behavioral".
func (i Intent) String() string {
	var parts []string
	for _, f := range []struct {
		on   bool
		name string
	}{
		{i.Technical, "technical"},
		{i.Behavioral, "behavioral"},
		{i.Business, "business"},
		{i.Entry, "entry"},
	} {
		if f.on {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// IntentKeywords are the keyword lists behind each intent flag.
type IntentKeywords struct {
	Technical  []string
	Behavioral []string
	Business   []string
	Entry      []string
}

// DefaultIntentKeywords returns the built-in keyword lists.
func DefaultIntentKeywords() IntentKeywords {
	return IntentKeywords{
		Technical: []string{
			"java", "python", "sql", "javascript", "developer", "programming",
			"technical", "code", "coding", "software", "engineer", "data",
		},
		Behavioral: []string{
			"collaborate", "collaboration", "communication", "leadership", "team",
			"interpersonal", "personality", "behavior", "behaviour", "cultural",
			"culture", "fit", "stakeholders",
		},
		Business: []string{"sales", "business", "customer", "client", "marketing"},
		Entry:    []string{"graduate", "entry", "junior", "new hire", "fresh"},
	}
}

// Empty reports whether no keywords are configured at all.
func (k IntentKeywords) Empty() bool {
	return len(k.Technical)+len(k.Behavioral)+len(k.Business)+len(k.Entry) == 0
}

// Override returns k with each non-empty list in o replacing the
// corresponding list of k.
func (k IntentKeywords) Override(o IntentKeywords) IntentKeywords {
	pick := func(base, over []string) []string {
		if len(over) > 0 {
			return append([]string(nil), over...)
		}
		return append([]string(nil), base...)
	}
	return IntentKeywords{
		Technical:  pick(k.Technical, o.Technical),
		Behavioral: pick(k.Behavioral, o.Behavioral),
		Business:   pick(k.Business, o.Business),
		Entry:      pick(k.Entry, o.Entry),
	}
}

type keywordSet struct {
	words   []string
	phrases []string
}

func newKeywordSet(keywords []string) keywordSet {
	var ks keywordSet
	for _, kw := range keywords {
		kw = Normalize(kw)
		switch {
		case kw == "":
		case strings.Contains(kw, " "):
			ks.phrases = append(ks.phrases, kw)
		default:
			ks.words = append(ks.words, kw)
		}
	}
	return ks
}

// match reports whether a keyword starts any token (so "developer" matches
// "developers") or a phrase occurs in the normalized text.
func (ks keywordSet) match(tokens Tokens, normalized string) bool {
	for _, p := range ks.phrases {
		if strings.Contains(" "+normalized+" ", " "+p+" ") {
			return true
		}
	}
	for tok := range tokens {
		for _, w := range ks.words {
			if strings.HasPrefix(tok, w) {
				return true
			}
		}
	}
	return false
}

// IntentClassifier maps a tokenized query to Intent flags.
type IntentClassifier struct {
	technical, behavioral, business, entry keywordSet
}

// NewIntentClassifier compiles keyword lists. Keywords are normalized;
// multi-word keywords match as phrases.
func NewIntentClassifier(k IntentKeywords) *IntentClassifier {
	return &IntentClassifier{
		technical:  newKeywordSet(k.Technical),
		behavioral: newKeywordSet(k.Behavioral),
		business:   newKeywordSet(k.Business),
		entry:      newKeywordSet(k.Entry),
	}
}

// Classify derives intent from the query's tokens and normalized text.
func (c *IntentClassifier) Classify(tokens Tokens, normalized string) Intent {
	return Intent{
		Technical:  c.technical.match(tokens, normalized),
		Behavioral: c.behavioral.match(tokens, normalized),
		Business:   c.business.match(tokens, normalized),
		Entry:      c.entry.match(tokens, normalized),
	}
}
