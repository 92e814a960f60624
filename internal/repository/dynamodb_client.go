package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"fritz-bot/internal/domain"
)

const (
	skSession   = "SESSION"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Client wraps a DynamoDB table holding one session item per chat.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// chatPK returns the DynamoDB partition key for a conversation.
func chatPK(conversationID string) string {
	return "CHAT#" + conversationID
}

func sessionKey(conversationID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: chatPK(conversationID)},
		"SK": &types.AttributeValueMemberS{Value: skSession},
	}
}

// GetSession reads the session for a conversation. Missing items and items
// lacking required attributes both yield domain.ErrSessionNotFound.
func (c *Client) GetSession(ctx context.Context, conversationID string) (domain.Session, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            sessionKey(conversationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	// TTL deletion lags behind expiry, so expired items can still be read.
	if ttl, err := intAttr(out.Item, "ttl"); err == nil && ttl < c.now().Unix() {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	session, err := itemToSession(out.Item)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession decode: %w: %w", domain.ErrSessionNotFound, err)
	}
	return session, nil
}

// PutSession replaces the stored session.
func (c *Client) PutSession(ctx context.Context, session domain.Session) error {
	if strings.TrimSpace(session.ConversationID) == "" {
		return errors.New("repository: PutSession: conversation id is required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      sessionItem(session, c.ttlValue()),
	})
	if err != nil {
		return fmt.Errorf("repository: PutSession: %w", err)
	}
	return nil
}

// DeleteSession removes the session. Deleting a missing item is not an error.
func (c *Client) DeleteSession(ctx context.Context, conversationID string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       sessionKey(conversationID),
	})
	if err != nil {
		return fmt.Errorf("repository: DeleteSession: %w", err)
	}
	return nil
}

// ttlValue returns a Unix timestamp 30 days in the future.
func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

func sessionItem(s domain.Session, ttl int64) map[string]types.AttributeValue {
	words := make([]types.AttributeValue, 0, len(s.Words))
	for _, w := range s.Words {
		words = append(words, wordValue(w))
	}
	options := make([]types.AttributeValue, 0, len(s.CurrentOptions))
	for _, o := range s.CurrentOptions {
		options = append(options, &types.AttributeValueMemberS{Value: o})
	}

	item := sessionKey(s.ConversationID)
	item["conversationId"] = &types.AttributeValueMemberS{Value: s.ConversationID}
	item["topic"] = &types.AttributeValueMemberS{Value: s.Topic}
	item["speechPart"] = &types.AttributeValueMemberS{Value: s.SpeechPart}
	item["exerciseType"] = &types.AttributeValueMemberS{Value: string(s.ExerciseType)}
	item["words"] = &types.AttributeValueMemberL{Value: words}
	item["currentOptions"] = &types.AttributeValueMemberL{Value: options}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: s.UpdatedAt.UTC().Format(time.RFC3339Nano)}
	item["ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttl)}
	if s.CurrentWord != nil {
		item["currentWord"] = wordValue(*s.CurrentWord)
	}
	return item
}

func wordValue(w domain.Word) types.AttributeValue {
	return &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
		"source":       &types.AttributeValueMemberS{Value: w.SourceText},
		"target":       &types.AttributeValueMemberS{Value: w.TargetText},
		"partOfSpeech": &types.AttributeValueMemberS{Value: w.PartOfSpeech},
		"status":       &types.AttributeValueMemberS{Value: string(w.Status)},
	}}
}

// itemToSession converts a DynamoDB attribute map to a Session. conversationId
// and topic are required; every other attribute may be absent on a partially
// built session.
func itemToSession(item map[string]types.AttributeValue) (domain.Session, error) {
	conversationID, err := strAttr(item, "conversationId")
	if err != nil {
		return domain.Session{}, err
	}
	topic, err := strAttr(item, "topic")
	if err != nil {
		return domain.Session{}, err
	}
	speechPart, _ := strAttr(item, "speechPart")     // allow empty
	exerciseType, _ := strAttr(item, "exerciseType") // allow empty

	session := domain.Session{
		ConversationID: conversationID,
		Topic:          topic,
		SpeechPart:     speechPart,
		ExerciseType:   domain.ExerciseType(exerciseType),
	}

	if raw, ok := item["words"]; ok {
		list, ok := raw.(*types.AttributeValueMemberL)
		if !ok {
			return domain.Session{}, errors.New("repository: attribute \"words\" is not a list")
		}
		for i, v := range list.Value {
			w, err := valueToWord(v)
			if err != nil {
				return domain.Session{}, fmt.Errorf("repository: words[%d]: %w", i, err)
			}
			session.Words = append(session.Words, w)
		}
	}
	if raw, ok := item["currentWord"]; ok {
		w, err := valueToWord(raw)
		if err != nil {
			return domain.Session{}, fmt.Errorf("repository: currentWord: %w", err)
		}
		session.CurrentWord = &w
	}
	if raw, ok := item["currentOptions"]; ok {
		list, ok := raw.(*types.AttributeValueMemberL)
		if !ok {
			return domain.Session{}, errors.New("repository: attribute \"currentOptions\" is not a list")
		}
		for i, v := range list.Value {
			s, ok := v.(*types.AttributeValueMemberS)
			if !ok {
				return domain.Session{}, fmt.Errorf("repository: currentOptions[%d] is not a string", i)
			}
			session.CurrentOptions = append(session.CurrentOptions, s.Value)
		}
	}
	if updated, err := strAttr(item, "updatedAt"); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			session.UpdatedAt = ts
		}
	}
	return session, nil
}

func valueToWord(v types.AttributeValue) (domain.Word, error) {
	m, ok := v.(*types.AttributeValueMemberM)
	if !ok {
		return domain.Word{}, errors.New("repository: word is not a map")
	}
	source, err := strAttr(m.Value, "source")
	if err != nil {
		return domain.Word{}, err
	}
	target, err := strAttr(m.Value, "target")
	if err != nil {
		return domain.Word{}, err
	}
	status, err := strAttr(m.Value, "status")
	if err != nil {
		return domain.Word{}, err
	}
	part, _ := strAttr(m.Value, "partOfSpeech") // allow empty
	return domain.Word{
		SourceText:   source,
		TargetText:   target,
		PartOfSpeech: part,
		Status:       domain.WordStatus(status),
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
