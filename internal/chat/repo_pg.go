package chat

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PGRepo implements Repo using Postgres; sources are stored as jsonb.
type PGRepo struct {
	DB *sql.DB
}

// Append inserts one message.
func (r *PGRepo) Append(ctx context.Context, msg Message) error {
	if !validMessage(msg) {
		return ErrInvalidInput
	}
	const query = `
INSERT INTO chat_messages (id, user_id, role, message, sources, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	sources := msg.Sources
	if sources == nil {
		sources = []string{}
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query, msg.ID, msg.UserID, msg.Role, msg.Text, raw, msg.CreatedAt)
	return err
}

// ListByUser returns the latest limit messages in chronological order.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT id, user_id, role, message, sources, created_at FROM (
    SELECT id, user_id, role, message, sources, created_at
    FROM chat_messages
    WHERE user_id = $1
    ORDER BY created_at DESC, id DESC
    LIMIT $2
) recent
ORDER BY created_at ASC, id ASC`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var msg Message
		var raw []byte
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Role, &msg.Text, &raw, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &msg.Sources); err != nil {
				return nil, err
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// DeleteByUser removes the user's whole history.
func (r *PGRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM chat_messages WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

var _ Repo = (*PGRepo)(nil)
