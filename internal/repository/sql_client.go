package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // driver: sqlite

	"fritz-bot/internal/domain"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS quiz_sessions (
  conversation_id TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);
`

// sessionRecord is the JSON payload stored per conversation.
type sessionRecord struct {
	ConversationID string        `json:"conversationId"`
	Topic          *string       `json:"topic"`
	SpeechPart     string        `json:"speechPart,omitempty"`
	ExerciseType   string        `json:"exerciseType,omitempty"`
	Words          []domain.Word `json:"words,omitempty"`
	CurrentWord    *domain.Word  `json:"currentWord,omitempty"`
	CurrentOptions []string      `json:"currentOptions,omitempty"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// SQLClient stores sessions in a single SQL table. It backs the local runner.
type SQLClient struct {
	db *sqlx.DB
}

// OpenSQL connects to the database and ensures the session table exists.
func OpenSQL(ctx context.Context, driver Driver, dsn string) (*SQLClient, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:fritz-bot.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/fritzbot?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("repository: unsupported driver: %s", driver)
	}

	db, err := sqlx.ConnectContext(ctx, drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	c, err := NewSQL(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// NewSQL wraps an open connection and creates the session table if needed.
func NewSQL(ctx context.Context, db *sqlx.DB) (*SQLClient, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("repository: ensure schema: %w", err)
	}
	return &SQLClient{db: db}, nil
}

func (c *SQLClient) Close() error {
	return c.db.Close()
}

// GetSession reads the session. Payloads without a topic are treated as absent.
func (c *SQLClient) GetSession(ctx context.Context, conversationID string) (domain.Session, error) {
	var payload string
	err := c.db.GetContext(ctx, &payload,
		c.db.Rebind(`SELECT payload FROM quiz_sessions WHERE conversation_id = ?`), conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession select: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession decode: %w: %w", domain.ErrSessionNotFound, err)
	}
	if rec.Topic == nil || rec.ConversationID == "" {
		return domain.Session{}, fmt.Errorf("repository: GetSession decode: %w: missing topic", domain.ErrSessionNotFound)
	}
	return domain.Session{
		ConversationID: rec.ConversationID,
		Topic:          *rec.Topic,
		SpeechPart:     rec.SpeechPart,
		ExerciseType:   domain.ExerciseType(rec.ExerciseType),
		Words:          rec.Words,
		CurrentWord:    rec.CurrentWord,
		CurrentOptions: rec.CurrentOptions,
		UpdatedAt:      rec.UpdatedAt,
	}, nil
}

// PutSession replaces the stored session.
func (c *SQLClient) PutSession(ctx context.Context, session domain.Session) error {
	if strings.TrimSpace(session.ConversationID) == "" {
		return errors.New("repository: PutSession: conversation id is required")
	}
	topic := session.Topic
	payload, err := json.Marshal(sessionRecord{
		ConversationID: session.ConversationID,
		Topic:          &topic,
		SpeechPart:     session.SpeechPart,
		ExerciseType:   string(session.ExerciseType),
		Words:          session.Words,
		CurrentWord:    session.CurrentWord,
		CurrentOptions: session.CurrentOptions,
		UpdatedAt:      session.UpdatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("repository: PutSession encode: %w", err)
	}
	_, err = c.db.ExecContext(ctx, c.db.Rebind(`
INSERT INTO quiz_sessions (conversation_id, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT (conversation_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`),
		session.ConversationID, string(payload), session.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("repository: PutSession: %w", err)
	}
	return nil
}

// DeleteSession removes the session. Deleting a missing row is not an error.
func (c *SQLClient) DeleteSession(ctx context.Context, conversationID string) error {
	_, err := c.db.ExecContext(ctx, c.db.Rebind(`DELETE FROM quiz_sessions WHERE conversation_id = ?`), conversationID)
	if err != nil {
		return fmt.Errorf("repository: DeleteSession: %w", err)
	}
	return nil
}
