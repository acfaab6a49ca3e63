package memory

import "strings"

// maxConcepts caps how many concepts a single context contributes.
const maxConcepts = 10

// stopWords are excluded from concept extraction.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "have": {}, "has": {}, "had": {}, "do": {},
	"does": {}, "did": {}, "will": {}, "would": {}, "could": {}, "should": {},
}

// extractConcepts pulls concept tokens from free text: lower-cased,
// whitespace-split, tokens of length <= 3 or in the stop-word set dropped,
// de-duplicated in first-occurrence order, capped at maxConcepts.
func extractConcepts(text string) []string {
	seen := make(map[string]struct{})
	var concepts []string

	for _, word := range strings.Fields(strings.ToLower(text)) {
		if len(word) <= 3 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		concepts = append(concepts, word)
		if len(concepts) >= maxConcepts {
			break
		}
	}

	return concepts
}
