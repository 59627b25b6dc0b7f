package summarize

import (
	"regexp"
	"sort"
	"strings"

	"memorypal/keeper/internal/textutil"
)

const fallbackChars = 240

var (
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]`)
	nonWordRe  = regexp.MustCompile(`[^a-z0-9\s]`)
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "with": true, "this": true,
	"from": true, "you": true, "are": true, "was": true, "have": true, "not": true,
	"but": true, "they": true, "his": true, "her": true, "she": true, "him": true,
	"our": true, "your": true, "about": true, "into": true, "over": true, "after": true,
	"before": true, "when": true, "while": true, "what": true, "which": true, "who": true,
	"where": true, "how": true, "why": true, "can": true, "will": true, "just": true,
}

func words(sentence string) []string {
	return strings.Fields(nonWordRe.ReplaceAllString(strings.ToLower(sentence), ""))
}

// Local is an extractive summary: the maxSentences sentences with the highest
// summed term frequency, in document order. Text without sentence
// terminators yields its first 240 characters.
func Local(text string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = DefaultSentences
	}
	collapsed := strings.Join(strings.Fields(text), " ")
	sentences := sentenceRe.FindAllString(collapsed, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(textutil.Prefix(text, fallbackChars))
	}

	freq := map[string]int{}
	for _, s := range sentences {
		for _, w := range words(s) {
			if len(w) < 3 || stopwords[w] {
				continue
			}
			freq[w]++
		}
	}

	type scored struct {
		idx   int
		text  string
		score int
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		score := 0
		for _, w := range words(s) {
			score += freq[w]
		}
		ranked[i] = scored{idx: i, text: strings.TrimSpace(s), score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > maxSentences {
		ranked = ranked[:maxSentences]
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].idx < ranked[j].idx })

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.text
	}
	return strings.Join(out, " ")
}
