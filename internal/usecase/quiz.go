package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"fritz-bot/internal/domain"
)

type VocabularyProvider interface {
	ListTopics(ctx context.Context) ([]string, error)
	ListSpeechParts(ctx context.Context, topic string) ([]string, error)
	ListWords(ctx context.Context, topic, speechPart string) ([]domain.Word, error)
}

type SessionStore interface {
	GetSession(ctx context.Context, conversationID string) (domain.Session, error)
	PutSession(ctx context.Context, session domain.Session) error
	DeleteSession(ctx context.Context, conversationID string) error
}

// Messenger delivers prompts to a conversation. Delivery failures are
// reported but never stop the quiz flow.
type Messenger interface {
	SendText(ctx context.Context, conversationID, text string) error
	SendChoice(ctx context.Context, conversationID string, prompt domain.Prompt) error
}

// QuizService drives the conversation state machine. It keeps no state of
// its own between calls: everything it needs across turns lives in the
// session store.
type QuizService struct {
	vocabulary VocabularyProvider
	sessions   SessionStore
	messenger  Messenger
	logger     *slog.Logger
	intn       func(n int) int
	now        func() time.Time
}

type Option func(*QuizService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *QuizService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRandom replaces the uniform source used for word picks, distractor
// selection and option shuffling. intn must return a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(s *QuizService) {
		if intn != nil {
			s.intn = intn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *QuizService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewQuizService(v VocabularyProvider, st SessionStore, m Messenger, opts ...Option) (*QuizService, error) {
	if v == nil {
		return nil, errors.New("usecase: vocabulary provider must not be nil")
	}
	if st == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if m == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	s := &QuizService{
		vocabulary: v,
		sessions:   st,
		messenger:  m,
		logger:     slog.Default(),
		intn:       rand.IntN,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StartSession discards any in-progress session and offers the topic list.
func (s *QuizService) StartSession(ctx context.Context, conversationID string) error {
	if err := s.sessions.DeleteSession(ctx, conversationID); err != nil {
		return newError(ErrorInternal, "session_delete_error", err)
	}
	topics, err := s.vocabulary.ListTopics(ctx)
	if err != nil {
		return newError(ErrorUpstream, "vocabulary_topics_error", err)
	}
	if len(topics) == 0 {
		s.sendText(ctx, conversationID, msgNoTopics)
		return nil
	}
	s.logger.InfoContext(ctx, "starting session", "conversation_id", conversationID, "topics", len(topics))
	s.sendChoice(ctx, conversationID, domain.Prompt{
		Text:    msgSelectTopic,
		Options: choiceOptions(domain.ActionSelectTopic, topics),
	})
	return nil
}

// ChooseTopic records the topic and offers the parts of speech available for it.
func (s *QuizService) ChooseTopic(ctx context.Context, conversationID, topic string) error {
	parts, err := s.vocabulary.ListSpeechParts(ctx, topic)
	if err != nil {
		return newError(ErrorUpstream, "vocabulary_speech_parts_error", err)
	}
	session := domain.Session{ConversationID: conversationID, Topic: topic}
	if err := s.save(ctx, &session); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "selected topic", "conversation_id", conversationID, "topic", topic)
	if len(parts) == 0 {
		s.sendText(ctx, conversationID, msgNoSpeechParts)
		return nil
	}
	s.sendChoice(ctx, conversationID, domain.Prompt{
		Text:    msgSelectSpeechPart,
		Options: choiceOptions(domain.ActionSelectSpeechPart, parts),
	})
	return nil
}

// ChooseSpeechPart records the part of speech and asks for the exercise type.
// A new part means a new word set, so any loaded words are dropped.
func (s *QuizService) ChooseSpeechPart(ctx context.Context, conversationID, part string) error {
	session, err := s.load(ctx, conversationID)
	if err != nil {
		return err
	}
	session.SpeechPart = part
	session.ExerciseType = ""
	session.Words = nil
	session.CurrentWord = nil
	session.CurrentOptions = nil
	if err := s.save(ctx, &session); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "selected speech part", "conversation_id", conversationID, "speech_part", part)
	s.sendChoice(ctx, conversationID, domain.Prompt{
		Text: msgSelectExerciseType,
		Options: choiceOptions(domain.ActionSelectExerciseType, []string{
			string(domain.ExercisePractice),
			string(domain.ExerciseReview),
		}),
	})
	return nil
}

// ChooseExerciseType starts the practice or review loop. Unknown types are ignored.
func (s *QuizService) ChooseExerciseType(ctx context.Context, conversationID, exercise string) error {
	switch domain.ExerciseType(exercise) {
	case domain.ExercisePractice, domain.ExerciseReview:
	default:
		s.logger.DebugContext(ctx, "ignoring unknown exercise type", "conversation_id", conversationID, "exercise_type", exercise)
		return nil
	}
	session, err := s.load(ctx, conversationID)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "selected exercise type", "conversation_id", conversationID, "exercise_type", exercise)
	if domain.ExerciseType(exercise) == domain.ExerciseReview {
		return s.nextReviewQuestion(ctx, &session)
	}
	return s.nextPracticeQuestion(ctx, &session)
}

// NextPracticeQuestion asks a new multiple-choice question for the stored session.
func (s *QuizService) NextPracticeQuestion(ctx context.Context, conversationID string) error {
	session, err := s.load(ctx, conversationID)
	if err != nil {
		return err
	}
	return s.nextPracticeQuestion(ctx, &session)
}

// NextReviewQuestion shows a new word to review for the stored session.
func (s *QuizService) NextReviewQuestion(ctx context.Context, conversationID string) error {
	session, err := s.load(ctx, conversationID)
	if err != nil {
		return err
	}
	return s.nextReviewQuestion(ctx, &session)
}

// AnswerPractice evaluates the selected option against the current word.
// Either way another question follows.
func (s *QuizService) AnswerPractice(ctx context.Context, conversationID, selected string) error {
	session, err := s.loadActive(ctx, conversationID)
	if err != nil {
		return err
	}
	current := *session.CurrentWord
	if selected == current.TargetText {
		s.logger.InfoContext(ctx, "answer correct", "conversation_id", conversationID, "word", current.SourceText)
		session.MarkPracticed(current.SourceText)
		if err := s.save(ctx, &session); err != nil {
			return err
		}
		s.sendText(ctx, conversationID, msgCorrect)
	} else {
		s.logger.InfoContext(ctx, "answer incorrect", "conversation_id", conversationID, "word", current.SourceText)
		s.sendText(ctx, conversationID, msgIncorrect)
	}
	return s.nextPracticeQuestion(ctx, &session)
}

// AnswerReview accepts the current word on Ok and defers it on Review later.
// Any other value is ignored.
func (s *QuizService) AnswerReview(ctx context.Context, conversationID, selected string) error {
	if selected != domain.ReviewOk && selected != domain.ReviewLater {
		s.logger.DebugContext(ctx, "ignoring unknown review answer", "conversation_id", conversationID, "answer", selected)
		return nil
	}
	session, err := s.loadActive(ctx, conversationID)
	if err != nil {
		return err
	}
	current := *session.CurrentWord
	if selected == domain.ReviewOk {
		s.logger.InfoContext(ctx, "word reviewed", "conversation_id", conversationID, "word", current.SourceText)
		session.MarkPracticed(current.SourceText)
		if err := s.save(ctx, &session); err != nil {
			return err
		}
		s.sendText(ctx, conversationID, msgReviewOk)
	} else {
		s.logger.InfoContext(ctx, "word deferred", "conversation_id", conversationID, "word", current.SourceText)
		s.sendText(ctx, conversationID, msgReviewLater)
	}
	return s.nextReviewQuestion(ctx, &session)
}

// HandlePlainMessage answers free text with a greeting. Nothing is persisted.
func (s *QuizService) HandlePlainMessage(ctx context.Context, conversationID, userName string) error {
	s.sendText(ctx, conversationID, greetingMessage(userName))
	return nil
}

func (s *QuizService) nextPracticeQuestion(ctx context.Context, session *domain.Session) error {
	session.ExerciseType = domain.ExercisePractice
	word, ok, err := s.pickWord(ctx, session)
	if err != nil {
		return err
	}
	if !ok {
		s.sendText(ctx, session.ConversationID, msgAllPracticed)
		return nil
	}
	options := practiceOptions(word, session.Words, s.intn)
	session.CurrentWord = &word
	session.CurrentOptions = options
	if err := s.save(ctx, session); err != nil {
		return err
	}
	s.sendChoice(ctx, session.ConversationID, domain.Prompt{
		Text:    practiceQuestionMessage(word.SourceText),
		Options: choiceOptions(domain.ActionSelectPracticeAnswer, options),
	})
	return nil
}

func (s *QuizService) nextReviewQuestion(ctx context.Context, session *domain.Session) error {
	session.ExerciseType = domain.ExerciseReview
	word, ok, err := s.pickWord(ctx, session)
	if err != nil {
		return err
	}
	if !ok {
		s.sendText(ctx, session.ConversationID, msgAllReviewed)
		return nil
	}
	options := reviewOptions()
	session.CurrentWord = &word
	session.CurrentOptions = options
	if err := s.save(ctx, session); err != nil {
		return err
	}
	s.sendChoice(ctx, session.ConversationID, domain.Prompt{
		Text:     reviewQuestionMessage(word.SourceText, word.TargetText),
		Markdown: true,
		Options:  choiceOptions(domain.ActionSelectReviewAnswer, options),
	})
	return nil
}

// pickWord loads the word set if the session has none yet and picks an
// eligible word. ok is false when nothing is left to practice.
func (s *QuizService) pickWord(ctx context.Context, session *domain.Session) (domain.Word, bool, error) {
	if len(session.Words) == 0 {
		words, err := s.vocabulary.ListWords(ctx, session.Topic, session.SpeechPart)
		if err != nil {
			return domain.Word{}, false, newError(ErrorUpstream, "vocabulary_words_error", err)
		}
		session.Words = freshWords(words)
	}
	word, ok := pickEligible(session.Words, s.intn)
	if ok {
		s.logger.DebugContext(ctx, "picked word",
			"conversation_id", session.ConversationID,
			"word", word.SourceText,
			"pending", session.PendingCount(),
		)
	}
	return word, ok, nil
}

func (s *QuizService) load(ctx context.Context, conversationID string) (domain.Session, error) {
	session, err := s.sessions.GetSession(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.Session{}, newError(ErrorSessionNotFound, "session_missing", err)
		}
		return domain.Session{}, newError(ErrorInternal, "session_read_error", err)
	}
	return session, nil
}

// loadActive loads a session that has a question awaiting an answer.
func (s *QuizService) loadActive(ctx context.Context, conversationID string) (domain.Session, error) {
	session, err := s.load(ctx, conversationID)
	if err != nil {
		return domain.Session{}, err
	}
	if session.CurrentWord == nil {
		return domain.Session{}, newError(ErrorSessionNotFound, "no_active_question", nil)
	}
	return session, nil
}

func (s *QuizService) save(ctx context.Context, session *domain.Session) error {
	session.UpdatedAt = s.now().UTC()
	if err := s.sessions.PutSession(ctx, *session); err != nil {
		return newError(ErrorInternal, "session_write_error", err)
	}
	return nil
}

func (s *QuizService) sendText(ctx context.Context, conversationID, text string) {
	if err := s.messenger.SendText(ctx, conversationID, text); err != nil {
		s.logger.WarnContext(ctx, "message delivery failed", "conversation_id", conversationID, "err", err)
	}
}

func (s *QuizService) sendChoice(ctx context.Context, conversationID string, prompt domain.Prompt) {
	if err := s.messenger.SendChoice(ctx, conversationID, prompt); err != nil {
		s.logger.WarnContext(ctx, "choice delivery failed", "conversation_id", conversationID, "err", err)
	}
}
