package caption

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// ExtractTags splits a caption into at most limit unique lowercase words, in order of
// first appearance. Periods are dropped before splitting. A non-positive limit keeps all words.
func ExtractTags(caption string, limit int) []string {
	text := cases.Lower(language.Und).String(norm.NFC.String(caption))
	text = strings.ReplaceAll(text, ".", "")

	tags := []string{}
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(text) {
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		tags = append(tags, word)
		if limit > 0 && len(tags) == limit {
			break
		}
	}
	return tags
}
