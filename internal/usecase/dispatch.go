package usecase

import (
	"context"

	"fritz-bot/internal/domain"
)

// Dispatch routes a classified inbound event to its transition.
// Events without a conversation and selections with an unknown action are
// dropped without error.
func (s *QuizService) Dispatch(ctx context.Context, ev domain.Event) error {
	if ev.ConversationID == "" {
		s.logger.WarnContext(ctx, "dropping event without conversation", "kind", ev.Kind.String())
		return nil
	}
	switch ev.Kind {
	case domain.EventRestart:
		return s.StartSession(ctx, ev.ConversationID)
	case domain.EventText:
		return s.HandlePlainMessage(ctx, ev.ConversationID, ev.UserName)
	case domain.EventSelection:
		return s.dispatchSelection(ctx, ev)
	default:
		return nil
	}
}

func (s *QuizService) dispatchSelection(ctx context.Context, ev domain.Event) error {
	switch ev.Action {
	case domain.ActionSelectTopic:
		return s.ChooseTopic(ctx, ev.ConversationID, ev.Item)
	case domain.ActionSelectSpeechPart:
		return s.ChooseSpeechPart(ctx, ev.ConversationID, ev.Item)
	case domain.ActionSelectExerciseType:
		return s.ChooseExerciseType(ctx, ev.ConversationID, ev.Item)
	case domain.ActionSelectPracticeAnswer:
		return s.AnswerPractice(ctx, ev.ConversationID, ev.Item)
	case domain.ActionSelectReviewAnswer:
		return s.AnswerReview(ctx, ev.ConversationID, ev.Item)
	default:
		s.logger.DebugContext(ctx, "ignoring unknown action", "conversation_id", ev.ConversationID, "action", string(ev.Action))
		return nil
	}
}
