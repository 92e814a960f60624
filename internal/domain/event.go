package domain

// Action tags a choice prompt so the selected option can be routed back to
// the matching transition.
type Action string

const (
	ActionSelectTopic          Action = "select_topic"
	ActionSelectSpeechPart     Action = "select_speech_part"
	ActionSelectExerciseType   Action = "select_exercise_type"
	ActionSelectPracticeAnswer Action = "select_practice_answer"
	ActionSelectReviewAnswer   Action = "select_review_answer"
)

// Option is one selectable control of a choice prompt.
type Option struct {
	Label  string
	Action Action
	Value  string
}

// EventKind classifies an inbound chat event.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventRestart
	EventSelection
	EventText
)

func (k EventKind) String() string {
	switch k {
	case EventRestart:
		return "restart"
	case EventSelection:
		return "selection"
	case EventText:
		return "text"
	default:
		return "unknown"
	}
}

// Event is a transport-agnostic inbound event.
type Event struct {
	Kind           EventKind
	ConversationID string
	Action         Action
	Item           string
	UserName       string
	// CallbackID is set for selections that need an acknowledgement.
	CallbackID string
}

// Prompt is an outbound choice message. Options render one control per entry,
// in order.
type Prompt struct {
	Text string
	// Markdown marks Text as Telegram MarkdownV2 with specials already escaped.
	Markdown bool
	Options  []Option
}
