package domain

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned by session stores when no usable record
// exists for a conversation.
var ErrSessionNotFound = errors.New("session not found")

type ExerciseType string

const (
	ExercisePractice ExerciseType = "Practice"
	ExerciseReview   ExerciseType = "Review"
)

// Review answers are fixed literals shown in this order.
const (
	ReviewOk    = "Ok"
	ReviewLater = "Review later"
)

// Session is the single persisted record per conversation. Every write
// replaces the previous record.
type Session struct {
	ConversationID string
	Topic          string
	SpeechPart     string
	ExerciseType   ExerciseType
	Words          []Word
	CurrentWord    *Word
	CurrentOptions []string
	UpdatedAt      time.Time
}

// Phase is the conversation state implied by the populated session fields.
type Phase string

const (
	PhaseIdle                   Phase = "idle"
	PhaseAwaitingSpeechPart     Phase = "awaiting_speech_part"
	PhaseAwaitingExerciseType   Phase = "awaiting_exercise_type"
	PhaseAwaitingPracticeAnswer Phase = "awaiting_practice_answer"
	PhaseAwaitingReviewAnswer   Phase = "awaiting_review_answer"
	PhaseComplete               Phase = "complete"
)

// Phase derives the conversation state from the record.
func (s *Session) Phase() Phase {
	switch {
	case s == nil || s.Topic == "":
		return PhaseIdle
	case s.SpeechPart == "":
		return PhaseAwaitingSpeechPart
	case len(s.Words) > 0 && s.PendingCount() == 0:
		return PhaseComplete
	case s.CurrentWord == nil:
		return PhaseAwaitingExerciseType
	case s.ExerciseType == ExerciseReview:
		return PhaseAwaitingReviewAnswer
	default:
		return PhaseAwaitingPracticeAnswer
	}
}

// PendingCount returns how many words still have status ToPractice.
func (s *Session) PendingCount() int {
	n := 0
	for _, w := range s.Words {
		if w.ToPractice() {
			n++
		}
	}
	return n
}

// MarkPracticed flips the word identified by sourceText to Practiced.
// It returns false when no such word exists in the set.
func (s *Session) MarkPracticed(sourceText string) bool {
	for i := range s.Words {
		if s.Words[i].SourceText == sourceText {
			s.Words[i].Status = StatusPracticed
			return true
		}
	}
	return false
}
