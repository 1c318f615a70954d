package search

import "strings"

// operators holds the inline filters a query may carry next to its words.
type operators struct {
	label     string
	tags      []string
	hasOCR    bool
	hasVision bool

	// words are the tokens that are not operators, in order.
	words []string
	// tokens are the operator tokens as written.
	tokens []string
}

// parseOperators splits type:, label:, tag:, has:ocr and has:vision out of
// q. type: and label: both filter on the vision label.
func parseOperators(q string) operators {
	var ops operators
	for _, tok := range strings.Fields(q) {
		lower := strings.ToLower(tok)
		switch {
		case strings.HasPrefix(lower, "type:"), strings.HasPrefix(lower, "label:"):
			ops.label = tok[strings.Index(tok, ":")+1:]
		case strings.HasPrefix(lower, "tag:"):
			if tag := tok[len("tag:"):]; tag != "" {
				ops.tags = append(ops.tags, tag)
			}
		case lower == "has:ocr":
			ops.hasOCR = true
		case lower == "has:vision":
			ops.hasVision = true
		default:
			ops.words = append(ops.words, tok)
			continue
		}
		ops.tokens = append(ops.tokens, tok)
	}
	return ops
}

// text returns the non-operator part of the query.
func (o operators) text() string {
	return strings.Join(o.words, " ")
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "from": true, "with": true, "by": true,
	"and": true, "or": true, "my": true, "me": true, "all": true, "any": true,
	"show": true, "find": true, "files": true, "file": true, "about": true,
	"that": true, "is": true, "are": true, "was": true, "were": true,
}

// filtered reports whether any operator narrows the results.
func (o operators) filtered() bool {
	return o.label != "" || len(o.tags) > 0 || o.hasOCR || o.hasVision
}

// keywordTerms drops stopwords. When only stopwords remain, a filtered
// query has no terms and becomes a listing; an unfiltered one keeps them
// so it still matches something.
func keywordTerms(words []string, filtered bool) []string {
	var terms []string
	for _, w := range words {
		if !stopwords[strings.ToLower(w)] {
			terms = append(terms, w)
		}
	}
	if len(terms) == 0 && !filtered {
		return words
	}
	return terms
}
