package vocab

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

const (
	// DefaultQuizLimit is the number of questions in a quiz when the caller does not say.
	DefaultQuizLimit = 6
	maxDistractors   = 3
	minQuizWordLen   = 4
)

// Question is one multiple-choice quiz item.
type Question struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	// Answer is the index of the correct option.
	Answer int `json:"answer"`
}

// Correct reports whether choice is the right option.
func (q Question) Correct(choice int) bool {
	return choice == q.Answer
}

func prompt(term string) string {
	return fmt.Sprintf("Nghĩa của từ: %s", term)
}

// Generate builds up to limit questions asking for the meaning of a stored word. Each question
// offers the correct meaning and up to three meanings of other words. Words without a meaning
// are skipped.
func Generate(words []Word, limit int, rng *rand.Rand) []Question {
	if limit <= 0 {
		limit = DefaultQuizLimit
	}
	pool := lo.Filter(words, func(w Word, _ int) bool { return strings.TrimSpace(w.Meaning) != "" })
	meanings := lo.Uniq(lo.Map(pool, func(w Word, _ int) string { return w.Meaning }))

	shuffle(rng, pool)
	if len(pool) > limit {
		pool = pool[:limit]
	}
	return lo.Map(pool, func(w Word, _ int) Question {
		return question(prompt(w.Term), w.Meaning, meanings, rng)
	})
}

// GenerateFromText builds up to limit questions from the distinct words of at least four letters
// in text. The options are other words from the same text.
func GenerateFromText(text string, limit int, rng *rand.Rand) []Question {
	if limit <= 0 {
		limit = DefaultQuizLimit
	}
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
	pool := lo.Filter(lo.Uniq(fields), func(w string, _ int) bool { return len([]rune(w)) >= minQuizWordLen })

	keys := append([]string{}, pool...)
	shuffle(rng, keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return lo.Map(keys, func(w string, _ int) Question {
		return question(prompt(w), w, pool, rng)
	})
}

func question(text, correct string, candidates []string, rng *rand.Rand) Question {
	distractors := lo.Without(candidates, correct)
	shuffle(rng, distractors)
	if len(distractors) > maxDistractors {
		distractors = distractors[:maxDistractors]
	}
	options := append([]string{correct}, distractors...)
	shuffle(rng, options)
	return Question{
		Prompt:  text,
		Options: options,
		Answer:  lo.IndexOf(options, correct),
	}
}

func shuffle[T any](rng *rand.Rand, s []T) {
	rng.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}
