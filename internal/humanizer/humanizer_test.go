package humanizer

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constSource yields the same value forever. A small value makes every
// probability draw succeed and every index draw pick 0; the max value makes
// every draw fail.
type constSource uint64

func (s constSource) Uint64() uint64 { return uint64(s) }

func alwaysRand() *rand.Rand { return rand.New(constSource(1 << 20)) }
func neverRand() *rand.Rand  { return rand.New(constSource(^uint64(0))) }

func echoGenerator(text string) (TextGenerator, *[]Params) {
	var seen []Params
	return GeneratorFunc(func(_ context.Context, prompt string, p Params) (*Generation, error) {
		seen = append(seen, p)
		return &Generation{Text: text, Model: "m", Provider: "p", TotalTokens: 12}, nil
	}), &seen
}

func allOn() Config {
	return Config{Temperature: 0.7, TopP: 0.9, AddFillerWords: true, AddGrammaticalVariations: true, AddPauses: true}
}

func TestGenerateAllStepsDisabledReturnsRawText(t *testing.T) {
	raw := "Hello , world.This is greatNow, really. The quick brown fox jumps over the lazy dog"
	gen, _ := echoGenerator(raw)
	h, err := New(gen, Config{Temperature: 0.5, TopP: 0.5}, WithRand(alwaysRand()))
	require.NoError(t, err)

	text, err := h.GenerateText(context.Background(), "write", Options{})
	require.NoError(t, err)
	assert.Equal(t, raw, text)
}

func TestGeneratePassesSamplingParams(t *testing.T) {
	gen, seen := echoGenerator("ok")
	cfg := allOn()
	cfg.MaxTokens = 100
	h, err := New(gen, cfg, WithRand(neverRand()))
	require.NoError(t, err)

	res, err := h.Generate(context.Background(), "p", Options{PromptSlug: "x-post", Variables: map[string]string{"topic": "t"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, "ok", res.Raw)
	assert.Equal(t, "m", res.Model)
	assert.Equal(t, 12, res.TotalTokens)

	_, err = h.Generate(context.Background(), "p", Options{MaxTokens: 50})
	require.NoError(t, err)

	require.Len(t, *seen, 2)
	first := (*seen)[0]
	assert.Equal(t, 0.7, first.Temperature)
	assert.Equal(t, 0.9, first.TopP)
	assert.Equal(t, 100, first.MaxTokens)
	assert.Equal(t, "x-post", first.PromptSlug)
	assert.Equal(t, "t", first.Variables["topic"])
	assert.Equal(t, 50, (*seen)[1].MaxTokens)
}

func TestGeneratorErrorPropagatesUnchanged(t *testing.T) {
	boom := errors.New("provider exploded")
	gen := GeneratorFunc(func(context.Context, string, Params) (*Generation, error) {
		return nil, boom
	})
	h, err := New(gen, allOn())
	require.NoError(t, err)

	_, err = h.GenerateText(context.Background(), "p", Options{})
	assert.Same(t, boom, err)
}

func TestNewValidates(t *testing.T) {
	gen, _ := echoGenerator("")
	_, err := New(nil, Config{})
	require.Error(t, err)
	_, err = New(gen, Config{Temperature: 1.1})
	require.Error(t, err)
	_, err = New(gen, Config{TopP: -0.1})
	require.ErrorContains(t, err, "TopP")
	_, err = New(gen, Config{MaxTokens: -1})
	require.Error(t, err)
}

func TestFillerWordsForced(t *testing.T) {
	out := addFillerWords("hello  world\nagain", alwaysRand())
	assert.Equal(t, "um, hello  um, world\num, again", out)

	assert.Equal(t, "hello world", addFillerWords("hello world", neverRand()))
}

func TestFillerWordsAppearInLongText(t *testing.T) {
	words := make([]string, 120)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	found := 0
	for seed := uint64(1); seed <= 20; seed++ {
		h, err := New(GeneratorFunc(func(context.Context, string, Params) (*Generation, error) {
			return &Generation{Text: text}, nil
		}), Config{AddFillerWords: true}, WithSeed(seed))
		require.NoError(t, err)

		out, err := h.GenerateText(context.Background(), "p", Options{})
		require.NoError(t, err)
		for _, phrase := range FillerPhrases {
			if strings.Contains(out, phrase) {
				found++
				break
			}
		}
	}
	assert.Greater(t, found, 0)
}

func TestGrammaticalVariations(t *testing.T) {
	in := "Hello , world.This is greatNow, really !"

	kept := addGrammaticalVariations(in, alwaysRand())
	assert.Equal(t, "Hello, world.This is great. Now, really!", kept)

	dropped := addGrammaticalVariations(in, neverRand())
	assert.Equal(t, "Hello world.This is great. Now really!", dropped)
}

func TestPauses(t *testing.T) {
	in := "Short one. The quick brown fox jumps over the lazy dog"

	out := addPauses(in, alwaysRand())
	assert.Equal(t, "Short one. The quick ... brown fox jumps over the lazy dog", out)

	assert.Equal(t, in, addPauses(in, neverRand()))
}

func TestPausesNeverAtEdges(t *testing.T) {
	sentence := "alpha beta gamma delta epsilon zeta eta theta"
	for seed := uint64(0); seed < 200; seed++ {
		out := addPauses(sentence, rand.New(rand.NewPCG(seed, seed)))
		words := strings.Split(out, " ")
		for i, w := range words {
			if w == "..." || w == "—" {
				assert.GreaterOrEqual(t, i, 2)
				assert.LessOrEqual(t, i, len(words)-3)
			}
		}
	}
}

func TestWithSeedIsReproducible(t *testing.T) {
	text := "Well , this is a fairly long sentence about bread, butter and jam. Another long sentence follows right here, friend"
	gen, _ := echoGenerator(text)

	a, err := New(gen, allOn(), WithSeed(42))
	require.NoError(t, err)
	b, err := New(gen, allOn(), WithSeed(42))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.Equal(t, a.Humanize(text), b.Humanize(text))
	}
}

func TestHumanizeConcurrentUse(t *testing.T) {
	gen, _ := echoGenerator("")
	h, err := New(gen, allOn(), WithSeed(7))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Humanize("The quick brown fox jumps over the lazy dog, twice. AndThen again")
		}()
	}
	wg.Wait()
}
