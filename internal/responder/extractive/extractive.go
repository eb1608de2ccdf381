// Package extractive is an offline responder. It answers with the grounding
// sentences that best match the query, weighted by word frequency across the
// grounding texts.
package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"docrag/internal/domain"
)

// DefaultMaxSentences is the answer length used when none is configured.
const DefaultMaxSentences = 3

// NoContextAnswer is returned when nothing was retrieved.
const NoContextAnswer = "No relevant context was found for this question."

var sentencePattern = regexp.MustCompile(`(?U)[^.!?\n]+(?:[.!?]+|\n|$)`)

// Responder ranks grounding sentences by query overlap and term frequency.
type Responder struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
	maxSentences int
}

var _ domain.Responder = (*Responder)(nil)

// New creates an extractive responder returning at most maxSentences sentences.
func New(maxSentences int) *Responder {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &Responder{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
		maxSentences: maxSentences,
	}
}

func (r *Responder) Name() string { return "Extractive" }

// Respond never fails.
func (r *Responder) Respond(_ context.Context, query string, grounding []string) (string, error) {
	var sentences []string
	for _, g := range grounding {
		for _, s := range sentencePattern.FindAllString(g, -1) {
			if s = strings.TrimSpace(s); s != "" {
				sentences = append(sentences, s)
			}
		}
	}
	if len(sentences) == 0 {
		return NoContextAnswer, nil
	}

	freq := map[string]float64{}
	for _, s := range sentences {
		for _, tok := range r.tokens(s) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	for k, v := range freq {
		freq[k] = v / maxF
	}

	qset := make(map[string]struct{})
	for _, tok := range r.tokens(query) {
		qset[tok] = struct{}{}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, s := range sentences {
		toks := r.tokens(s)
		fscore := 0.0
		for _, tok := range toks {
			fscore += freq[tok]
		}
		if l := float64(len(toks)); l > 0 {
			fscore /= math.Sqrt(l)
		}
		// Query overlap dominates; frequency breaks ties between matches.
		scores[i] = pair{i, 10*overlapOchiai(qset, toks) + fscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := min(r.maxSentences, len(scores))
	selected := make([]int, n)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

func (r *Responder) tokens(text string) []string {
	raw := r.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, ok := r.stopwords[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// overlapOchiai is |A∩B| / sqrt(|A||B|) over distinct tokens.
func overlapOchiai(qset map[string]struct{}, toks []string) float64 {
	seen := make(map[string]struct{}, len(toks))
	inter := 0
	for _, t := range toks {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "how", "does", "do", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
