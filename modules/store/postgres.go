package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/marketplace-messaging/domain/message"
	"github.com/example/marketplace-messaging/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          BIGSERIAL PRIMARY KEY,
	username    TEXT NOT NULL,
	email       TEXT NOT NULL UNIQUE,
	is_verified BOOLEAN NOT NULL DEFAULT FALSE,
	role        TEXT NOT NULL DEFAULT 'user',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id          BIGSERIAL PRIMARY KEY,
	content     TEXT NOT NULL,
	sender_id   BIGINT NOT NULL REFERENCES users(id),
	receiver_id BIGINT NOT NULL REFERENCES users(id),
	property_id BIGINT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_receiver_id ON messages (receiver_id, id DESC);
`

const (
	insertMessage = `
INSERT INTO messages (content, sender_id, receiver_id, property_id)
VALUES ($1, $2, $3, $4)
RETURNING id, content, sender_id, receiver_id, property_id, created_at`

	selectMessage = `
SELECT id, content, sender_id, receiver_id, property_id, created_at
FROM messages WHERE id = $1`

	selectInbox = `
SELECT id, content, sender_id, receiver_id, property_id, created_at
FROM messages WHERE receiver_id = $1
ORDER BY id DESC`

	selectUserByID = `
SELECT id, username, email, is_verified, role, created_at, updated_at
FROM users WHERE id = $1`

	selectUserByEmail = `
SELECT id, username, email, is_verified, role, created_at, updated_at
FROM users WHERE email = $1`
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store using an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgres connects to databaseURL and ensures the schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// SaveMessage inserts the message; RETURNING reads the stored row back.
func (s *PostgresStore) SaveMessage(ctx context.Context, msg *message.ChatMessage) error {
	if msg.ID != 0 {
		return fmt.Errorf("failed to create message: id already assigned (%d)", msg.ID)
	}
	row := s.pool.QueryRow(ctx, insertMessage, msg.Content, msg.SenderID, msg.ReceiverID, msg.PropertyID)
	if err := scanMessage(row, msg); err != nil {
		if isPgForeignKeyError(err) {
			return ErrUnknownReference
		}
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// FindMessageByID retrieves a message by its ID.
func (s *PostgresStore) FindMessageByID(ctx context.Context, id int64) (*message.ChatMessage, error) {
	var msg message.ChatMessage
	if err := scanMessage(s.pool.QueryRow(ctx, selectMessage, id), &msg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return &msg, nil
}

// ListInbox returns messages received by receiverID, newest first.
// A non-positive limit returns every message.
func (s *PostgresStore) ListInbox(ctx context.Context, receiverID int64, limit int) ([]message.ChatMessage, error) {
	query := selectInbox
	args := []any{receiverID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}
	defer rows.Close()

	messages := make([]message.ChatMessage, 0)
	for rows.Next() {
		var msg message.ChatMessage
		if err := scanMessage(rows, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}
	return messages, nil
}

// FindUserByID retrieves a user by ID.
func (s *PostgresStore) FindUserByID(ctx context.Context, id int64) (*user.User, error) {
	return s.findUser(ctx, selectUserByID, id)
}

// FindUserByEmail retrieves a user by email.
func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.findUser(ctx, selectUserByEmail, email)
}

func (s *PostgresStore) findUser(ctx context.Context, query string, arg any) (*user.User, error) {
	var u user.User
	var role string
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.IsVerified, &role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	u.Role = user.Role(role)
	return &u, nil
}

// Ping verifies the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanMessage(row pgx.Row, msg *message.ChatMessage) error {
	return row.Scan(&msg.ID, &msg.Content, &msg.SenderID, &msg.ReceiverID, &msg.PropertyID, &msg.CreatedAt)
}

// isPgForeignKeyError checks if error is a PostgreSQL foreign key violation.
func isPgForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
