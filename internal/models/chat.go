package models

import "time"

type Chat struct {
	ID          int64       `json:"id"`
	ServiceID   *int64      `json:"service_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Members     []int64     `json:"members"`
	Other       *ChatMember `json:"other,omitempty"`
	LastMessage *Message    `json:"last_message,omitempty"`
	Unread      int         `json:"unread"`
}

// ChatMember is the other participant summary shown in the inbox.
type ChatMember struct {
	UserID      int64      `json:"user_id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	LastReadAt  *time.Time `json:"last_read_at,omitempty"`
}

type StartChatRequest struct {
	UserID    int64  `json:"user_id" validate:"required,gt=0"`
	ServiceID *int64 `json:"service_id" validate:"omitempty,gt=0"`
}
