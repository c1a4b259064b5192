package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"doulitsa/internal/models"
)

// ChatRepository stores chats and messages in the realtime Postgres database.
type ChatRepository struct {
	Pool *pgxpool.Pool
}

func pairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// GetOrCreateDirect returns the chat between a and b, creating it on first use.
func (r *ChatRepository) GetOrCreateDirect(ctx context.Context, a, b int64, serviceID *int64) (models.Chat, error) {
	var chat models.Chat
	err := pgx.BeginFunc(ctx, r.Pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
            INSERT INTO chats (pair_key, service_id) VALUES ($1, $2)
            ON CONFLICT (pair_key) DO UPDATE SET service_id = COALESCE(chats.service_id, EXCLUDED.service_id)
            RETURNING id, service_id, created_at`, pairKey(a, b), serviceID).
			Scan(&chat.ID, &chat.ServiceID, &chat.CreatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
            INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2), ($1, $3)
            ON CONFLICT (chat_id, user_id) DO NOTHING`, chat.ID, a, b)
		return err
	})
	if err != nil {
		return models.Chat{}, err
	}
	chat.Members = []int64{a, b}
	return chat, nil
}

func (r *ChatRepository) GetChat(ctx context.Context, id int64) (models.Chat, error) {
	var chat models.Chat
	err := r.Pool.QueryRow(ctx, `SELECT id, service_id, created_at FROM chats WHERE id = $1`, id).
		Scan(&chat.ID, &chat.ServiceID, &chat.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Chat{}, models.ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}
	chat.Members, err = r.MemberIDs(ctx, id)
	return chat, err
}

func (r *ChatRepository) MemberIDs(ctx context.Context, chatID int64) ([]int64, error) {
	rows, err := r.Pool.Query(ctx, `SELECT user_id FROM chat_members WHERE chat_id = $1 ORDER BY user_id`, chatID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *ChatRepository) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	var ok bool
	err := r.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2)`, chatID, userID).Scan(&ok)
	return ok, err
}

// ListChats returns the user's inbox with the other member, the last message
// and the unread count, most recent activity first.
func (r *ChatRepository) ListChats(ctx context.Context, userID int64) ([]models.Chat, error) {
	rows, err := r.Pool.Query(ctx, `
        SELECT c.id, c.service_id, c.created_at, o.user_id, o.last_read_at,
               lm.id, lm.author_id, lm.content, lm.created_at, lm.edited_at, lm.deleted_at,
               (SELECT count(*) FROM messages m
                 WHERE m.chat_id = c.id AND m.author_id <> me.user_id AND m.deleted_at IS NULL
                   AND m.created_at > COALESCE(me.last_read_at, 'epoch'::timestamptz)) AS unread
        FROM chat_members me
        JOIN chats c ON c.id = me.chat_id
        JOIN chat_members o ON o.chat_id = c.id AND o.user_id <> me.user_id
        LEFT JOIN LATERAL (
            SELECT id, author_id, content, created_at, edited_at, deleted_at
            FROM messages WHERE chat_id = c.id ORDER BY id DESC LIMIT 1
        ) lm ON TRUE
        WHERE me.user_id = $1
        ORDER BY COALESCE(lm.created_at, c.created_at) DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var (
			c         models.Chat
			other     models.ChatMember
			msgID     *int64
			author    *int64
			content   *string
			createdAt *time.Time
			editedAt  *time.Time
			deletedAt *time.Time
		)
		if err := rows.Scan(&c.ID, &c.ServiceID, &c.CreatedAt, &other.UserID, &other.LastReadAt,
			&msgID, &author, &content, &createdAt, &editedAt, &deletedAt, &c.Unread); err != nil {
			return nil, err
		}
		c.Members = []int64{userID, other.UserID}
		c.Other = &other
		if msgID != nil {
			m := models.Message{ID: *msgID, ChatID: c.ID, AuthorID: *author, Content: *content,
				CreatedAt: *createdAt, EditedAt: editedAt, DeletedAt: deletedAt}
			c.LastMessage = &m
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

const messageColumns = `id, chat_id, author_id, content, created_at, edited_at, deleted_at`

func scanMessage(row pgx.Row) (models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.ChatID, &m.AuthorID, &m.Content, &m.CreatedAt, &m.EditedAt, &m.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Message{}, models.ErrMessageNotFound
	}
	return m, err
}

// ListMessages returns up to limit messages older than before (all when
// before is 0) in ascending order.
func (r *ChatRepository) ListMessages(ctx context.Context, chatID, before int64, limit int) ([]models.Message, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+messageColumns+` FROM messages
        WHERE chat_id = $1 AND ($2::bigint = 0 OR id < $2)
        ORDER BY id DESC LIMIT $3`, chatID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *ChatRepository) CreateMessage(ctx context.Context, chatID, authorID int64, content string) (models.Message, error) {
	return scanMessage(r.Pool.QueryRow(ctx,
		`INSERT INTO messages (chat_id, author_id, content) VALUES ($1, $2, $3) RETURNING `+messageColumns,
		chatID, authorID, content))
}

func (r *ChatRepository) GetMessage(ctx context.Context, id int64) (models.Message, error) {
	return scanMessage(r.Pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

func (r *ChatRepository) UpdateMessage(ctx context.Context, id int64, content string, at time.Time) (models.Message, error) {
	return scanMessage(r.Pool.QueryRow(ctx,
		`UPDATE messages SET content = $2, edited_at = $3 WHERE id = $1 AND deleted_at IS NULL RETURNING `+messageColumns,
		id, content, at))
}

// SoftDeleteMessage hides the content and keeps the row for ordering.
func (r *ChatRepository) SoftDeleteMessage(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE messages SET content = '', deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrMessageNotFound
	}
	return nil
}

func (r *ChatRepository) MarkRead(ctx context.Context, chatID, userID int64, at time.Time) error {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE chat_members SET last_read_at = $3 WHERE chat_id = $1 AND user_id = $2`, chatID, userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrChatNotFound
	}
	return nil
}

func (r *ChatRepository) UnreadTotal(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.Pool.QueryRow(ctx, `
        SELECT count(*) FROM messages m
        JOIN chat_members me ON me.chat_id = m.chat_id AND me.user_id = $1
        WHERE m.author_id <> $1 AND m.deleted_at IS NULL
          AND m.created_at > COALESCE(me.last_read_at, 'epoch'::timestamptz)`, userID).Scan(&n)
	return n, err
}

func (r *ChatRepository) MessageExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}
