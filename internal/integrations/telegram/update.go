package telegram

import (
	"encoding/json"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"fritz-bot/internal/domain"
)

// legacyCallback is the JSON callback payload used by older keyboards.
type legacyCallback struct {
	Action string `json:"action"`
	Item   string `json:"item"`
}

// EventFromUpdate classifies an update. Commands restart the quiz, button
// presses are selections, and any other message is plain text. The second
// result is false when the update carries nothing the quiz can act on.
func EventFromUpdate(upd tele.Update) (domain.Event, bool) {
	switch {
	case upd.Callback != nil:
		return callbackEvent(upd.Callback)
	case upd.Message != nil:
		return messageEvent(upd.Message)
	default:
		return domain.Event{}, false
	}
}

func messageEvent(m *tele.Message) (domain.Event, bool) {
	if m.Chat == nil {
		return domain.Event{}, false
	}
	ev := domain.Event{
		Kind:           domain.EventText,
		ConversationID: strconv.FormatInt(m.Chat.ID, 10),
		UserName:       displayName(m.Sender),
	}
	if len(m.Entities) > 0 && m.Entities[0].Type == tele.EntityCommand && m.Entities[0].Offset == 0 {
		ev.Kind = domain.EventRestart
	}
	return ev, true
}

func callbackEvent(cb *tele.Callback) (domain.Event, bool) {
	if cb.Message == nil || cb.Message.Chat == nil {
		return domain.Event{}, false
	}
	action, item, ok := ParseCallbackData(cb)
	if !ok {
		return domain.Event{}, false
	}
	return domain.Event{
		Kind:           domain.EventSelection,
		ConversationID: strconv.FormatInt(cb.Message.Chat.ID, 10),
		Action:         domain.Action(action),
		Item:           item,
		UserName:       displayName(cb.Sender),
		CallbackID:     cb.ID,
	}, true
}

// ParseCallbackData extracts the action and item of a button press. It reads
// telebot's "\f<unique>|<payload>" encoding and the older JSON payload.
func ParseCallbackData(cb *tele.Callback) (action, item string, ok bool) {
	if cb == nil {
		return "", "", false
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data, true
	}
	raw := cb.Data
	if strings.HasPrefix(raw, "{") {
		var legacy legacyCallback
		if err := json.Unmarshal([]byte(raw), &legacy); err != nil || legacy.Action == "" {
			return "", "", false
		}
		return legacy.Action, legacy.Item, true
	}
	raw = strings.TrimPrefix(raw, "\f")
	unique, payload, _ := strings.Cut(raw, "|")
	unique = strings.TrimSpace(unique)
	if unique == "" {
		return "", "", false
	}
	return unique, payload, true
}

func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}
