package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"fritz-bot/internal/domain"
	"fritz-bot/internal/integrations/telegram"
	"fritz-bot/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	errorInvalidInput = "INVALID_INPUT"
	msgFailure        = "Something went wrong. Send /start to begin again."
)

type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) error
}

// Notifier answers button presses and reports failures back to the chat.
type Notifier interface {
	SendText(ctx context.Context, conversationID, text string) error
	Acknowledge(ctx context.Context, callbackID string) error
}

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId"`
}

// Handler turns Telegram webhook deliveries into quiz events.
type Handler struct {
	dispatcher Dispatcher
	notifier   Notifier
	logger     *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(d Dispatcher, n Notifier, opts ...Option) (*Handler, error) {
	if d == nil {
		return nil, errors.New("handler: dispatcher must not be nil")
	}
	if n == nil {
		return nil, errors.New("handler: notifier must not be nil")
	}
	h := &Handler{dispatcher: d, notifier: n, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle processes one webhook delivery. Only a malformed body is rejected;
// every other outcome answers 200 so Telegram does not redeliver the update.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", correlationID)

	body := req.Body
	if req.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			logger.WarnContext(ctx, "invalid base64 body", "err", err)
			return errorJSON(http.StatusBadRequest, correlationID), nil
		}
		body = string(raw)
	}

	var upd tele.Update
	if err := json.Unmarshal([]byte(body), &upd); err != nil {
		logger.WarnContext(ctx, "invalid update body", "err", err)
		return errorJSON(http.StatusBadRequest, correlationID), nil
	}

	_ = h.process(ctx, logger.With("update_id", upd.ID), upd)
	return okJSON(correlationID), nil
}

// Process handles one update delivered by any transport. A failed transition
// is reported to the chat and returned.
func (h *Handler) Process(ctx context.Context, upd tele.Update) error {
	return h.process(ctx, h.logger.With("update_id", upd.ID), upd)
}

func (h *Handler) process(ctx context.Context, logger *slog.Logger, upd tele.Update) error {
	ev, ok := telegram.EventFromUpdate(upd)
	if !ok {
		logger.DebugContext(ctx, "ignoring update")
		return nil
	}
	logger = logger.With("conversation_id", ev.ConversationID, "kind", ev.Kind.String())

	if ev.CallbackID != "" {
		if err := h.notifier.Acknowledge(ctx, ev.CallbackID); err != nil {
			logger.WarnContext(ctx, "callback acknowledgement failed", "err", err)
		}
	}

	err := h.dispatcher.Dispatch(ctx, ev)
	if err == nil {
		return nil
	}

	code, reason := string(usecase.ErrorInternal), "unexpected_error"
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		code, reason = string(ucErr.Code), ucErr.Reason
	}
	logger.ErrorContext(ctx, "quiz transition failed", "code", code, "reason", reason, "action", string(ev.Action), "err", err)

	if sendErr := h.notifier.SendText(ctx, ev.ConversationID, msgFailure); sendErr != nil {
		logger.WarnContext(ctx, "failure notice not delivered", "err", sendErr)
	}
	return err
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func okJSON(correlationID string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(okResponse{OK: true})
	return response(http.StatusOK, correlationID, string(body))
}

func errorJSON(status int, correlationID string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(errorResponse{Error: errorInvalidInput, CorrelationID: correlationID})
	return response(status, correlationID, string(body))
}

func response(status int, correlationID, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: body,
	}
}
