package humanizer

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	fillerProbability   = 0.05
	commaKeepChance     = 0.5
	pauseProbability    = 0.3
	pauseMinSentenceLen = 30
)

// FillerPhrases is the vocabulary prepended by the filler step.
var FillerPhrases = []string{
	"um,",
	"uh,",
	"well,",
	"you know,",
	"I mean,",
	"like,",
	"honestly,",
	"actually,",
	"basically,",
	"so,",
}

var (
	tokenPattern           = regexp.MustCompile(`\S+`)
	spaceBeforePunctuation = regexp.MustCompile(`\s+([.,!?;:])`)
	lowerUpperBoundary     = regexp.MustCompile(`([a-z])([A-Z])`)
	commaPair              = regexp.MustCompile(`(\w+), (\w+)`)
	pauseTokens            = []string{"...", "—"}
)

// addFillerWords prepends a filler phrase to each whitespace-separated token
// with probability fillerProbability. Original whitespace is kept.
func addFillerWords(text string, rng *rand.Rand) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		if rng.Float64() >= fillerProbability {
			return token
		}
		return FillerPhrases[rng.IntN(len(FillerPhrases))] + " " + token
	})
}

// addGrammaticalVariations runs the substitutions in order: drop whitespace
// before punctuation, turn a lowercase-uppercase run into a sentence break,
// then keep or drop each "word, word" comma at even odds.
func addGrammaticalVariations(text string, rng *rand.Rand) string {
	text = spaceBeforePunctuation.ReplaceAllString(text, "$1")
	text = lowerUpperBoundary.ReplaceAllString(text, "$1. $2")
	return commaPair.ReplaceAllStringFunc(text, func(match string) string {
		if rng.Float64() < commaKeepChance {
			return match
		}
		parts := commaPair.FindStringSubmatch(match)
		return parts[1] + " " + parts[2]
	})
}

// addPauses splits on ". " and, for sentences over pauseMinSentenceLen
// characters, inserts "..." or "—" between two words with probability
// pauseProbability. The pause never lands before the third word or after the
// second-to-last.
func addPauses(text string, rng *rand.Rand) string {
	sentences := strings.Split(text, ". ")
	for i, sentence := range sentences {
		if utf8.RuneCountInString(sentence) <= pauseMinSentenceLen {
			continue
		}
		if rng.Float64() >= pauseProbability {
			continue
		}
		words := strings.Split(sentence, " ")
		if len(words) < 4 {
			continue
		}
		pause := pauseTokens[rng.IntN(len(pauseTokens))]
		at := 2 + rng.IntN(len(words)-3)

		out := make([]string, 0, len(words)+1)
		out = append(out, words[:at]...)
		out = append(out, pause)
		out = append(out, words[at:]...)
		sentences[i] = strings.Join(out, " ")
	}
	return strings.Join(sentences, ". ")
}
