package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/mirrortwin/companion/internal/model/chat"
)

// SQLiteStore persists chats and transcripts in a local sqlite database.
// List-valued message fields are stored as JSON text columns.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}

	_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
	_, _ = db.Exec("PRAGMA journal_mode = WAL;")

	schema := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			created_at_ns INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT,
			image_urls TEXT NOT NULL,
			tool_calls TEXT NOT NULL,
			tool_results TEXT NOT NULL,
			created_at_ns INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages(chat_id, created_at_ns);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "apply sqlite schema")
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateChat(ctx context.Context, c chat.Chat) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats(id, name, category, created_at_ns)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, category=excluded.category`,
		c.ID, c.Name, string(c.Category), c.CreatedAt.UnixNano(),
	)
	return errors.Wrap(err, "insert chat")
}

func (s *SQLiteStore) GetChat(ctx context.Context, chatID string) (chat.Chat, error) {
	var c chat.Chat
	var category string
	var createdNS int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, created_at_ns FROM chats WHERE id = ?`, chatID,
	).Scan(&c.ID, &c.Name, &category, &createdNS)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return chat.Chat{}, errors.Wrap(err, "select chat")
	}
	c.Category = chat.Category(category)
	c.CreatedAt = time.Unix(0, createdNS).UTC()
	return c, nil
}

func (s *SQLiteStore) ListChats(ctx context.Context) ([]chat.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, created_at_ns FROM chats ORDER BY created_at_ns ASC`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "select chats")
	}
	defer rows.Close()

	out := make([]chat.Chat, 0, 16)
	for rows.Next() {
		var c chat.Chat
		var category string
		var createdNS int64
		if err := rows.Scan(&c.ID, &c.Name, &category, &createdNS); err != nil {
			return nil, errors.Wrap(err, "scan chat row")
		}
		c.Category = chat.Category(category)
		c.CreatedAt = time.Unix(0, createdNS).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveMessage(ctx context.Context, m chat.Message) error {
	if _, err := s.GetChat(ctx, m.ChatID); err != nil {
		return err
	}

	imageURLs, err := json.Marshal(emptyIfNil(m.ImageURLs))
	if err != nil {
		return errors.Wrap(err, "marshal image urls")
	}
	toolCalls, err := json.Marshal(m.ToolCalls)
	if err != nil {
		return errors.Wrap(err, "marshal tool calls")
	}
	toolResults, err := json.Marshal(emptyIfNil(m.ToolResults))
	if err != nil {
		return errors.Wrap(err, "marshal tool results")
	}

	var text any
	if m.Text != nil {
		text = *m.Text
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages(id, chat_id, role, text, image_urls, tool_calls, tool_results, created_at_ns)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			text=excluded.text,
			image_urls=excluded.image_urls,
			tool_calls=excluded.tool_calls,
			tool_results=excluded.tool_results`,
		m.ID, m.ChatID, string(m.Role), text, string(imageURLs), string(toolCalls), string(toolResults), m.CreatedAt.UnixNano(),
	)
	return errors.Wrap(err, "upsert message")
}

func (s *SQLiteStore) GetMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, text, image_urls, tool_calls, tool_results, created_at_ns
		 FROM messages
		 WHERE chat_id = ?
		 ORDER BY created_at_ns ASC, id ASC`,
		chatID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "select messages")
	}
	defer rows.Close()

	out := make([]chat.Message, 0, 64)
	for rows.Next() {
		var m chat.Message
		var role string
		var text sql.NullString
		var imageURLs, toolCalls, toolResults string
		var createdNS int64
		if err := rows.Scan(&m.ID, &m.ChatID, &role, &text, &imageURLs, &toolCalls, &toolResults, &createdNS); err != nil {
			return nil, errors.Wrap(err, "scan message row")
		}
		m.Role = chat.Role(role)
		if text.Valid {
			v := text.String
			m.Text = &v
		}
		if err := json.Unmarshal([]byte(imageURLs), &m.ImageURLs); err != nil {
			return nil, errors.Wrap(err, "decode image urls")
		}
		if err := json.Unmarshal([]byte(toolCalls), &m.ToolCalls); err != nil {
			return nil, errors.Wrap(err, "decode tool calls")
		}
		if err := json.Unmarshal([]byte(toolResults), &m.ToolResults); err != nil {
			return nil, errors.Wrap(err, "decode tool results")
		}
		m.CreatedAt = time.Unix(0, createdNS).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
