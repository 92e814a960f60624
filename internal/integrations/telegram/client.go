package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"fritz-bot/internal/domain"
)

// botAPI is the subset of *tele.Bot the client needs.
type botAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
}

// NewBot builds an offline bot: no getMe round trip, no poller. It is only
// used to call the Bot API.
func NewBot(token string, httpClient *http.Client) (*tele.Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram: token must not be empty")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Client:  httpClient,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return bot, nil
}

// Client sends quiz prompts as Telegram messages with inline keyboards.
type Client struct {
	api botAPI
}

func New(api botAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("telegram: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) SendText(ctx context.Context, conversationID, text string) error {
	chat, err := chatID(conversationID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Send(chat, text); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// SendChoice renders one inline button per option, one per row.
func (c *Client) SendChoice(ctx context.Context, conversationID string, prompt domain.Prompt) error {
	chat, err := chatID(conversationID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := []interface{}{inlineKeyboard(prompt.Options)}
	if prompt.Markdown {
		opts = append(opts, tele.ModeMarkdownV2)
	}
	if _, err := c.api.Send(chat, prompt.Text, opts...); err != nil {
		return fmt.Errorf("telegram: send choice: %w", err)
	}
	return nil
}

// Acknowledge answers a callback query so the client stops its spinner.
func (c *Client) Acknowledge(ctx context.Context, callbackID string) error {
	if callbackID == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.api.Respond(&tele.Callback{ID: callbackID}); err != nil {
		return fmt.Errorf("telegram: answer callback: %w", err)
	}
	return nil
}

func inlineKeyboard(options []domain.Option) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	rows := make([][]tele.InlineButton, 0, len(options))
	for _, o := range options {
		rows = append(rows, []tele.InlineButton{*markup.Data(o.Label, string(o.Action), o.Value).Inline()})
	}
	markup.InlineKeyboard = rows
	return markup
}

func chatID(conversationID string) (tele.ChatID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(conversationID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid chat id %q: %w", conversationID, err)
	}
	return tele.ChatID(id), nil
}
