package usecase

import (
	"fmt"
	"strings"
)

const (
	msgNoTopics            = "No topics found."
	msgSelectTopic         = "Select which topic you would like to practice:"
	msgSelectSpeechPart    = "Select which part of the speech you would like to practice:"
	msgNoSpeechParts       = "No words found for this topic."
	msgSelectExerciseType  = "What kind of exercise would you like to do?"
	msgCorrect             = "Correct"
	msgIncorrect           = "Incorrect. We will try again later."
	msgReviewOk            = "Ok. Here is your next word to review."
	msgReviewLater         = "Ok, we will review this word later."
	msgAllPracticed        = "Congrats! You practiced all the words correctly!"
	msgAllReviewed         = "Congrats! You reviewed all the words."
	defaultGreetingSubject = "user"
)

func greetingMessage(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultGreetingSubject
	}
	return fmt.Sprintf("Hello %s I am Fritz Bot. I can help you practice German words. Send /start to begin.", name)
}

func practiceQuestionMessage(source string) string {
	return "Select translation for: " + source
}

// reviewQuestionMessage is rendered as MarkdownV2 by the transport, so the
// word texts are escaped here.
func reviewQuestionMessage(source, target string) string {
	return fmt.Sprintf("Please review the following words:\n\nGerman: *%s*\n\nEnglish: *%s*",
		EscapeMarkdownV2(source), EscapeMarkdownV2(target))
}

const markdownV2Specials = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdownV2 escapes every character Telegram reserves in MarkdownV2.
func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markdownV2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
