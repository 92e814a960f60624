package usecase

import (
	"github.com/samber/lo"

	"fritz-bot/internal/domain"
)

const maxDistractors = 3

// freshWords copies a provider word set, defaulting missing statuses to ToPractice.
func freshWords(words []domain.Word) []domain.Word {
	return lo.Map(words, func(w domain.Word, _ int) domain.Word {
		if w.Status == "" {
			w.Status = domain.StatusToPractice
		}
		return w
	})
}

// pickEligible returns a uniformly random word that still needs practice.
func pickEligible(words []domain.Word, intn func(int) int) (domain.Word, bool) {
	eligible := lo.Filter(words, func(w domain.Word, _ int) bool {
		return w.ToPractice()
	})
	if len(eligible) == 0 {
		return domain.Word{}, false
	}
	return eligible[intn(len(eligible))], true
}

// practiceOptions returns the correct translation plus up to maxDistractors
// translations of other words in the set, in random order. Fewer distractors
// are used when the set is too small.
func practiceOptions(word domain.Word, words []domain.Word, intn func(int) int) []string {
	candidates := lo.Filter(words, func(w domain.Word, _ int) bool {
		return w.SourceText != word.SourceText
	})
	candidates = shuffled(candidates, intn)
	distractors := lo.Map(candidates[:min(len(candidates), maxDistractors)], func(w domain.Word, _ int) string {
		return w.TargetText
	})
	return shuffled(append([]string{word.TargetText}, distractors...), intn)
}

func reviewOptions() []string {
	return []string{domain.ReviewOk, domain.ReviewLater}
}

// shuffled returns a Fisher-Yates shuffled copy of in.
func shuffled[T any](in []T, intn func(int) int) []T {
	out := make([]T, len(in))
	copy(out, in)
	for i := len(out) - 1; i > 0; i-- {
		j := intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func choiceOptions(action domain.Action, values []string) []domain.Option {
	return lo.Map(values, func(v string, _ int) domain.Option {
		return domain.Option{Label: v, Action: action, Value: v}
	})
}
