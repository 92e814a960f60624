package domain

// WordStatus tracks whether a word still needs practice.
type WordStatus string

const (
	StatusToPractice WordStatus = "to_practice"
	StatusPracticed  WordStatus = "practiced"
)

// Word is a single vocabulary entry. SourceText identifies it within a
// (topic, part of speech) set.
type Word struct {
	SourceText   string     `json:"source"`
	TargetText   string     `json:"target"`
	PartOfSpeech string     `json:"partOfSpeech"`
	Status       WordStatus `json:"status"`
}

// ToPractice reports whether the word is still eligible for questions.
func (w Word) ToPractice() bool {
	return w.Status == StatusToPractice
}
