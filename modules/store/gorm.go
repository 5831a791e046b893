package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/marketplace-messaging/domain/message"
	"github.com/example/marketplace-messaging/domain/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore implements Store on top of GORM.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore creates a store using an existing GORM connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// OpenSQLite opens (or creates) a SQLite database and migrates the schema.
func OpenSQLite(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := NewGormStore(db)
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the users and messages tables.
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&user.User{}, &message.ChatMessage{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// DB returns the underlying GORM connection.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// SaveMessage inserts the message and reads it back in one transaction.
func (s *GormStore) SaveMessage(ctx context.Context, msg *message.ChatMessage) error {
	if msg.ID != 0 {
		return fmt.Errorf("failed to create message: id already assigned (%d)", msg.ID)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return ErrUnknownReference
			}
			return fmt.Errorf("failed to create message: %w", err)
		}
		if err := tx.First(msg, msg.ID).Error; err != nil {
			return fmt.Errorf("failed to read back message %d: %w", msg.ID, err)
		}
		return nil
	})
}

// FindMessageByID retrieves a message by its ID.
func (s *GormStore) FindMessageByID(ctx context.Context, id int64) (*message.ChatMessage, error) {
	var msg message.ChatMessage
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return &msg, nil
}

// ListInbox returns messages received by receiverID, newest first.
// A non-positive limit returns every message.
func (s *GormStore) ListInbox(ctx context.Context, receiverID int64, limit int) ([]message.ChatMessage, error) {
	q := s.db.WithContext(ctx).
		Where("receiver_id = ?", receiverID).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	messages := make([]message.ChatMessage, 0)
	if err := q.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}
	return messages, nil
}

// FindUserByID retrieves a user by ID.
func (s *GormStore) FindUserByID(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}

// FindUserByEmail retrieves a user by email.
func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	if err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}

// Ping verifies the database connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
