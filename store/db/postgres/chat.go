package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/studychat/store"
)

func (d *DB) CreateChat(ctx context.Context, create *store.Chat) (*store.Chat, error) {
	fields := []string{"uid", "user_id", "title", "created_ts", "updated_ts"}
	args := []any{create.UID, create.UserID, create.Title, create.CreatedTs, create.UpdatedTs}
	stmt := `INSERT INTO chats (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create chat")
	}
	return create, nil
}

func (d *DB) ListChats(ctx context.Context, find *store.FindChat) ([]*store.Chat, error) {
	where, args := []string{"user_id = " + placeholder(1)}, []any{find.UserID}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}

	query := `SELECT id, uid, user_id, title, created_ts, updated_ts
		FROM chats
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY updated_ts DESC, id DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chats")
	}
	defer rows.Close()

	list := make([]*store.Chat, 0)
	for rows.Next() {
		c := &store.Chat{}
		if err := rows.Scan(&c.ID, &c.UID, &c.UserID, &c.Title, &c.CreatedTs, &c.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan chat")
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate chats")
	}
	return list, nil
}

func (d *DB) UpdateChat(ctx context.Context, update *store.UpdateChat) (*store.Chat, error) {
	set, args := []string{}, []any{}
	if update.Title != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *update.Title)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, update.ID, update.UserID)
	stmt := `UPDATE chats SET ` + strings.Join(set, ", ") +
		` WHERE id = ` + placeholder(len(args)-1) + ` AND user_id = ` + placeholder(len(args)) +
		` RETURNING id, uid, user_id, title, created_ts, updated_ts`
	result := &store.Chat{}
	err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&result.ID, &result.UID, &result.UserID, &result.Title, &result.CreatedTs, &result.UpdatedTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to update chat")
	}
	return result, nil
}

func (d *DB) DeleteChat(ctx context.Context, delete *store.DeleteChat) error {
	// messages are removed by ON DELETE CASCADE
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM chats WHERE id = `+placeholder(1)+` AND user_id = `+placeholder(2),
		delete.ID, delete.UserID)
	if err != nil {
		return errors.Wrap(err, "failed to delete chat")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}
