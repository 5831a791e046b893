package message

import "time"

// ChatMessage is a persisted direct message between two users.
type ChatMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	SenderID   int64     `gorm:"not null;index" json:"sender_id"`
	ReceiverID int64     `gorm:"not null;index" json:"receiver_id"`
	PropertyID *int64    `gorm:"index" json:"property_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the table name for the ChatMessage entity.
func (ChatMessage) TableName() string {
	return "messages"
}

// Frame is the wire representation pushed to clients and returned by the inbox.
type Frame struct {
	ID         int64  `json:"id"`
	Content    string `json:"content"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	PropertyID *int64 `json:"property_id"`
}

// ToFrame converts a persisted message into its wire representation.
func (m *ChatMessage) ToFrame() Frame {
	return Frame{
		ID:         m.ID,
		Content:    m.Content,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		PropertyID: m.PropertyID,
	}
}
