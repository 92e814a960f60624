package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fritz-bot/internal/domain"
)

type fakeVocabulary struct {
	topics    []string
	parts     []string
	words     []domain.Word
	err       error
	wordCalls int
	lastTopic string
	lastPart  string
}

func (f *fakeVocabulary) ListTopics(_ context.Context) ([]string, error) {
	return f.topics, f.err
}

func (f *fakeVocabulary) ListSpeechParts(_ context.Context, topic string) ([]string, error) {
	f.lastTopic = topic
	return f.parts, f.err
}

func (f *fakeVocabulary) ListWords(_ context.Context, topic, part string) ([]domain.Word, error) {
	f.wordCalls++
	f.lastTopic = topic
	f.lastPart = part
	out := make([]domain.Word, len(f.words))
	copy(out, f.words)
	return out, f.err
}

// memStore keeps deep copies so the service cannot mutate stored state
// without going through PutSession.
type memStore struct {
	sessions  map[string]domain.Session
	puts      int
	deletes   int
	getErr    error
	putErr    error
	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]domain.Session{}}
}

func cloneSession(s domain.Session) domain.Session {
	out := s
	out.Words = append([]domain.Word(nil), s.Words...)
	out.CurrentOptions = append([]string(nil), s.CurrentOptions...)
	if s.CurrentWord != nil {
		w := *s.CurrentWord
		out.CurrentWord = &w
	}
	return out
}

func (m *memStore) GetSession(_ context.Context, id string) (domain.Session, error) {
	if m.getErr != nil {
		return domain.Session{}, m.getErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *memStore) PutSession(_ context.Context, s domain.Session) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.sessions[s.ConversationID] = cloneSession(s)
	return nil
}

func (m *memStore) DeleteSession(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletes++
	delete(m.sessions, id)
	return nil
}

type sentMessage struct {
	conversationID string
	text           string
	prompt         *domain.Prompt
}

type recordingMessenger struct {
	sent []sentMessage
	err  error
}

func (r *recordingMessenger) SendText(_ context.Context, id, text string) error {
	r.sent = append(r.sent, sentMessage{conversationID: id, text: text})
	return r.err
}

func (r *recordingMessenger) SendChoice(_ context.Context, id string, p domain.Prompt) error {
	r.sent = append(r.sent, sentMessage{conversationID: id, text: p.Text, prompt: &p})
	return r.err
}

func (r *recordingMessenger) last(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1]
}

func (r *recordingMessenger) lastPrompt(t *testing.T) domain.Prompt {
	t.Helper()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].prompt != nil {
			return *r.sent[i].prompt
		}
	}
	t.Fatal("no choice prompt sent")
	return domain.Prompt{}
}

func (r *recordingMessenger) texts() []string {
	out := make([]string, 0, len(r.sent))
	for _, m := range r.sent {
		out = append(out, m.text)
	}
	return out
}

const conv = "42"

func word(source, target string) domain.Word {
	return domain.Word{SourceText: source, TargetText: target, PartOfSpeech: "noun", Status: domain.StatusToPractice}
}

func animals() *fakeVocabulary {
	return &fakeVocabulary{
		topics: []string{"Animals", "Food"},
		parts:  []string{"noun", "verb"},
		words:  []domain.Word{word("Hund", "dog"), word("Katze", "cat")},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, v VocabularyProvider, st SessionStore, m Messenger, opts ...Option) *QuizService {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	svc, err := NewQuizService(v, st, m, opts...)
	require.NoError(t, err)
	return svc
}

func expectQuizError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

// startExercise walks the flow up to the first question of the given exercise.
func startExercise(t *testing.T, svc *QuizService, exercise domain.ExerciseType) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.StartSession(ctx, conv))
	require.NoError(t, svc.ChooseTopic(ctx, conv, "Animals"))
	require.NoError(t, svc.ChooseSpeechPart(ctx, conv, "noun"))
	require.NoError(t, svc.ChooseExerciseType(ctx, conv, string(exercise)))
}

func pendingCount(t *testing.T, st *memStore) int {
	t.Helper()
	s, ok := st.sessions[conv]
	require.True(t, ok)
	return s.PendingCount()
}

func TestNewQuizService_ValidatesDependencies(t *testing.T) {
	_, err := NewQuizService(nil, newMemStore(), &recordingMessenger{})
	require.Error(t, err)

	_, err = NewQuizService(animals(), nil, &recordingMessenger{})
	require.Error(t, err)

	_, err = NewQuizService(animals(), newMemStore(), nil)
	require.Error(t, err)
}

func TestStartSession_SendsTopics(t *testing.T) {
	msgr := &recordingMessenger{}
	svc := newTestService(t, animals(), newMemStore(), msgr)

	require.NoError(t, svc.StartSession(context.Background(), conv))
	p := msgr.lastPrompt(t)
	require.Equal(t, msgSelectTopic, p.Text)
	require.Equal(t, []domain.Option{
		{Label: "Animals", Action: domain.ActionSelectTopic, Value: "Animals"},
		{Label: "Food", Action: domain.ActionSelectTopic, Value: "Food"},
	}, p.Options)
}

func TestStartSession_NoTopics(t *testing.T) {
	msgr := &recordingMessenger{}
	st := newMemStore()
	svc := newTestService(t, &fakeVocabulary{}, st, msgr)

	require.NoError(t, svc.StartSession(context.Background(), conv))
	require.Equal(t, msgNoTopics, msgr.last(t).text)
	require.Nil(t, msgr.last(t).prompt)
	require.Zero(t, st.puts)
}

func TestStartSession_UpstreamErrorWritesNothing(t *testing.T) {
	msgr := &recordingMessenger{}
	st := newMemStore()
	svc := newTestService(t, &fakeVocabulary{err: errors.New("sheet down")}, st, msgr)

	err := svc.StartSession(context.Background(), conv)
	expectQuizError(t, err, ErrorUpstream, "vocabulary_topics_error")
	require.Zero(t, st.puts)
	require.Empty(t, msgr.sent)
}

func TestStartSession_DeleteError(t *testing.T) {
	st := newMemStore()
	st.deleteErr = errors.New("throttled")
	svc := newTestService(t, animals(), st, &recordingMessenger{})

	err := svc.StartSession(context.Background(), conv)
	expectQuizError(t, err, ErrorInternal, "session_delete_error")
}

func TestStartSession_MidFlowDiscardsSession(t *testing.T) {
	st := newMemStore()
	svc := newTestService(t, animals(), st, &recordingMessenger{})
	startExercise(t, svc, domain.ExercisePractice)
	require.Contains(t, st.sessions, conv)

	require.NoError(t, svc.StartSession(context.Background(), conv))
	_, err := st.GetSession(context.Background(), conv)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestChooseTopic_PersistsTopicAndSendsParts(t *testing.T) {
	vocab := animals()
	st := newMemStore()
	msgr := &recordingMessenger{}
	svc := newTestService(t, vocab, st, msgr)

	require.NoError(t, svc.ChooseTopic(context.Background(), conv, "Animals"))
	require.Equal(t, "Animals", vocab.lastTopic)
	stored := st.sessions[conv]
	require.Equal(t, "Animals", stored.Topic)
	require.Equal(t, domain.PhaseAwaitingSpeechPart, stored.Phase())

	p := msgr.lastPrompt(t)
	require.Equal(t, msgSelectSpeechPart, p.Text)
	require.Len(t, p.Options, 2)
	require.Equal(t, domain.ActionSelectSpeechPart, p.Options[0].Action)
}

func TestChooseTopic_UpstreamErrorWritesNothing(t *testing.T) {
	st := newMemStore()
	svc := newTestService(t, &fakeVocabulary{err: errors.New("timeout")}, st, &recordingMessenger{})

	err := svc.ChooseTopic(context.Background(), conv, "Animals")
	expectQuizError(t, err, ErrorUpstream, "vocabulary_speech_parts_error")
	require.Zero(t, st.puts)
}

func TestChooseSpeechPart_RequiresSession(t *testing.T) {
	svc := newTestService(t, animals(), newMemStore(), &recordingMessenger{})

	err := svc.ChooseSpeechPart(context.Background(), conv, "noun")
	expectQuizError(t, err, ErrorSessionNotFound, "session_missing")
}

func TestChooseSpeechPart_OffersExerciseTypes(t *testing.T) {
	st := newMemStore()
	msgr := &recordingMessenger{}
	svc := newTestService(t, animals(), st, msgr)
	ctx := context.Background()

	require.NoError(t, svc.ChooseTopic(ctx, conv, "Animals"))
	require.NoError(t, svc.ChooseSpeechPart(ctx, conv, "noun"))

	require.Equal(t, "noun", st.sessions[conv].SpeechPart)
	p := msgr.lastPrompt(t)
	require.Equal(t, msgSelectExerciseType, p.Text)
	require.Equal(t, []domain.Option{
		{Label: "Practice", Action: domain.ActionSelectExerciseType, Value: "Practice"},
		{Label: "Review", Action: domain.ActionSelectExerciseType, Value: "Review"},
	}, p.Options)
}

func TestChooseExerciseType_UnknownIgnored(t *testing.T) {
	st := newMemStore()
	msgr := &recordingMessenger{}
	svc := newTestService(t, animals(), st, msgr)

	require.NoError(t, svc.ChooseExerciseType(context.Background(), conv, "Dance"))
	require.Empty(t, msgr.sent)
	require.Zero(t, st.puts)
}

func TestPractice_ScenarioTwoWords(t *testing.T) {
	st := newMemStore()
	msgr := &recordingMessenger{}
	svc := newTestService(t, animals(), st, msgr)
	ctx := context.Background()
	startExercise(t, svc, domain.ExercisePractice)

	p := msgr.lastPrompt(t)
	require.Len(t, p.Options, 2)
	require.ElementsMatch(t, []string{"dog", "cat"}, []string{p.Options[0].Value, p.Options[1].Value})
	require.Contains(t, []string{practiceQuestionMessage("Hund"), practiceQuestionMessage("Katze")}, p.Text)

	correct := 0
	for i := 0; i < 10 && pendingCount(t, st) > 0; i++ {
		current := st.sessions[conv].CurrentWord
		require.NotNil(t, current)
		require.NoError(t, svc.AnswerPractice(ctx, conv, current.TargetText))
		correct++
	}
	require.Equal(t, 2, correct)
	require.Equal(t, msgAllPracticed, msgr.last(t).text)
}

func TestPractice_TerminatesAfterExactlyNCorrectAnswers(t *testing.T) {
	vocab := &fakeVocabulary{
		topics: []string{"Animals"},
		parts:  []string{"noun"},
		words: []domain.Word{
			word("Hund", "dog"), word("Katze", "cat"), word("Maus", "mouse"),
			word("Vogel", "bird"), word("Pferd", "horse"),
		},
	}
	st := newMemStore()
	msgr := &recordingMessenger{}
	svc := newTestService(t, vocab, st, msgr)
	ctx := context.Background()
	startExercise(t, svc, domain.ExercisePractice)

	for want := 5; want > 0; want-- {
		require.Equal(t, want, pendingCount(t, st))
		current := st.sessions[conv].CurrentWord
		require.NotNil(t, current)
		require.True(t, current.ToPractice())
		require.NoError(t, svc.AnswerPractice(ctx, conv, current.TargetText))
	}
	require.Zero(t, pendingCount(t, st))
	require.Equal(t, msgAllPracticed, msgr.last(t).text)
	final := st.sessions[conv]
	require.Equal(t, domain.PhaseComplete, final.Phase())
	require.Equal(t, 1, vocab.wordCalls, "session words must win once loaded")
}

func TestPractice_OptionIntegrity(t *testing.T) {
	vocab := &fakeVocabulary{
		topics: []string{"Animals"},
		parts:  []string{"noun"},
		words: []domain.Word{
			word("Hund", "dog"), word("Katze", "cat"), word("Maus", "mouse"),
			word("Vogel", "bird"), word("Pferd", "horse"), word("Kuh", "cow"),
		},
	}
	st := newMemStore()
	msgr := &recordingMessenger{}
	svc := newTestService(t, vocab, st, msgr)
	startExercise(t, svc, domain.ExercisePractice)

	for i := 0; i < 50; i++ {
		require.NoError(t, svc.NextPracticeQuestion(context.Background(), conv))
		s := st.sessions[conv]
		require.Len(t, s.CurrentOptions, 4)
		require.Contains(t, s.CurrentOptions, s.CurrentWord.TargetText)
		require.True(t, s.CurrentWord.ToPractice())

		p := msgr.lastPrompt(t)
		require.Equal(t, domain.ActionSelectPracticeAnswer, p.Options[0].Action)
		require.Len(t, p.Options, len(s.CurrentOptions))
	}
}

func TestAnswerPractice_WrongAnswerKeepsStatuses(t *testing.T) {
	st := newMemStore()
	msgr := &recordingMessenger{}
	svc := newTestService(t, animals(), st, msgr)
	startExercise(t, svc, domain.ExercisePractice)
	before := st.sessions[conv].Words
	sentBefore := len(msgr.sent)

	require.NoError(t, svc.AnswerPractice(context.Background(), conv, "wrong-option"))

	after := st.sessions[conv]
	require.Equal(t, before, after.Words)
	require.Equal(t, 2, after.PendingCount())
	require.Equal(t, msgIncorrect, msgr.sent[sentBefore].text)
	require.NotNil(t, msgr.last(t).prompt)
	require.True(t, after.CurrentWord.ToPractice())
}

func TestAnswerPractice_MissingSession(t *testing.T) {
	svc := newTestService(t, animals(), newMemStore(), &recordingMessenger{})

	err := svc.AnswerPractice(context.Background(), conv, "dog")
	expectQuizError(t, err, ErrorSessionNotFound, "session_missing")
}

func TestAnswerPractice_NoActiveQuestion(t *testing.T) {
	st := newMemStore()
	svc := newTestService(t, animals(), st, &recordingMessenger{})
	require.NoError(t, svc.ChooseTopic(context.Background(), conv, "Animals"))

	err := svc.AnswerPractice(context.Background(), conv, "dog")
	expectQuizError(t, err, ErrorSessionNotFound, "no_active_question")
}

func TestAnswerPractice_StoreReadError(t *testing.T) {
	st := newMemStore()
	st.getErr = errors.New("ProvisionedThroughputExceededException")
	svc := newTestService(t, animals(), st, &recordingMessenger{})

	err := svc.AnswerPractice(context.Background(), conv, "dog")
	expectQuizError(t, err, ErrorInternal, "session_read_error")
}

func TestReview_ShowsFixedOptionsAndRevealsAnswer(t *testing.T) {
	st := newMemStore()
	msgr := &recordingMessenger{}
	svc := newTestService(t, animals(), st, msgr, WithRandom(func(int) int { return 0 }))
	startExercise(t, svc, domain.ExerciseReview)

	p := msgr.lastPrompt(t)
	require.True(t, p.Markdown)
	require.Equal(t, reviewQuestionMessage("Hund", "dog"), p.Text)
	require.Equal(t, []domain.Option{
		{Label: "Ok", Action: domain.ActionSelectReviewAnswer, Value: "Ok"},
		{Label: "Review later", Action: domain.ActionSelectReviewAnswer, Value: "Review later"},
	}, p.Options)
	require.Equal(t, []string{"Ok", "Review later"}, st.sessions[conv].CurrentOptions)
	require.Equal(t, domain.ExerciseReview, st.sessions[conv].ExerciseType)
}

func TestReview_LaterNeverChangesStatus(t *testing.T) {
	vocab := &fakeVocabulary{topics: []string{"Animals"}, parts: []string{"noun"}, words: []domain.Word{word("Hund", "dog")}}
	st := newMemStore()
	msgr := &recordingMessenger{}
	svc := newTestService(t, vocab, st, msgr)
	startExercise(t, svc, domain.ExerciseReview)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AnswerReview(context.Background(), conv, domain.ReviewLater))
		s, err := st.GetSession(context.Background(), conv)
		require.NoError(t, err)
		require.Len(t, s.Words, 1)
		require.Equal(t, domain.StatusToPractice, s.Words[0].Status)
		require.Equal(t, "Hund", s.CurrentWord.SourceText)
	}
	require.Contains(t, msgr.texts(), msgReviewLater)
}

func TestReview_OkMarksPracticedUntilComplete(t *testing.T) {
	st := newMemStore()
	msgr := &recordingMessenger{}
	svc := newTestService(t, animals(), st, msgr)
	startExercise(t, svc, domain.ExerciseReview)

	require.NoError(t, svc.AnswerReview(context.Background(), conv, domain.ReviewOk))
	require.Equal(t, 1, pendingCount(t, st))
	require.NoError(t, svc.AnswerReview(context.Background(), conv, domain.ReviewOk))
	require.Zero(t, pendingCount(t, st))
	require.Equal(t, msgAllReviewed, msgr.last(t).text)
}

func TestAnswerReview_UnknownAnswerIgnored(t *testing.T) {
	st := newMemStore()
	msgr := &recordingMessenger{}
	svc := newTestService(t, animals(), st, msgr)
	startExercise(t, svc, domain.ExerciseReview)
	puts, sent := st.puts, len(msgr.sent)

	require.NoError(t, svc.AnswerReview(context.Background(), conv, "Maybe"))
	require.Equal(t, puts, st.puts)
	require.Len(t, msgr.sent, sent)
}

func TestStatusesOnlyMoveForward(t *testing.T) {
	st := newMemStore()
	svc := newTestService(t, animals(), st, &recordingMessenger{})
	ctx := context.Background()
	startExercise(t, svc, domain.ExercisePractice)

	practiced := map[string]bool{}
	answers := []string{"wrong", "", "dog", "cat", "wrong", "dog"}
	for _, a := range answers {
		if pendingCount(t, st) == 0 {
			break
		}
		require.NoError(t, svc.AnswerPractice(ctx, conv, a))
		for _, w := range st.sessions[conv].Words {
			if practiced[w.SourceText] {
				require.Equal(t, domain.StatusPracticed, w.Status)
			}
			if w.Status == domain.StatusPracticed {
				practiced[w.SourceText] = true
			}
		}
	}
}

func TestDeliveryErrorsDoNotStopFlow(t *testing.T) {
	st := newMemStore()
	msgr := &recordingMessenger{err: errors.New("telegram: 502")}
	svc := newTestService(t, animals(), st, msgr)

	startExercise(t, svc, domain.ExercisePractice)
	require.NotNil(t, st.sessions[conv].CurrentWord)
}

func TestSaveErrorPropagates(t *testing.T) {
	st := newMemStore()
	st.putErr = errors.New("dynamodb unavailable")
	svc := newTestService(t, animals(), st, &recordingMessenger{})

	err := svc.ChooseTopic(context.Background(), conv, "Animals")
	expectQuizError(t, err, ErrorInternal, "session_write_error")
}

func TestSave_StampsUpdatedAt(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	st := newMemStore()
	svc := newTestService(t, animals(), st, &recordingMessenger{}, WithClock(func() time.Time { return now }))

	require.NoError(t, svc.ChooseTopic(context.Background(), conv, "Animals"))
	require.Equal(t, now, st.sessions[conv].UpdatedAt)
}

func TestHandlePlainMessage_GreetsWithoutPersisting(t *testing.T) {
	st := newMemStore()
	msgr := &recordingMessenger{}
	svc := newTestService(t, animals(), st, msgr)

	require.NoError(t, svc.HandlePlainMessage(context.Background(), conv, "Anna"))
	require.Equal(t, greetingMessage("Anna"), msgr.last(t).text)
	require.Contains(t, greetingMessage(""), "Hello user")
	require.Zero(t, st.puts)
	require.Zero(t, st.deletes)
}
