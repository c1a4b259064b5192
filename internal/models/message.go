package models

import "time"

type Message struct {
	ID        int64      `json:"id"`
	ChatID    int64      `json:"chat_id"`
	AuthorID  int64      `json:"author_id"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the message was removed by its author.
func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

type MessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}
