package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/studychat/store"
)

func (d *DB) CreateChat(ctx context.Context, create *store.Chat) (*store.Chat, error) {
	fields := []string{"`uid`", "`user_id`", "`title`", "`created_ts`", "`updated_ts`"}
	placeholder := []string{"?", "?", "?", "?", "?"}
	args := []any{create.UID, create.UserID, create.Title, create.CreatedTs, create.UpdatedTs}

	stmt := "INSERT INTO `chats` (" + strings.Join(fields, ", ") + ") VALUES (" + strings.Join(placeholder, ", ") + ") RETURNING `id`"
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create chat")
	}
	return create, nil
}

func (d *DB) ListChats(ctx context.Context, find *store.FindChat) ([]*store.Chat, error) {
	where, args := []string{"`user_id` = ?"}, []any{find.UserID}
	if v := find.ID; v != nil {
		where, args = append(where, "`id` = ?"), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "`uid` = ?"), append(args, *v)
	}

	query := "SELECT `id`, `uid`, `user_id`, `title`, `created_ts`, `updated_ts` FROM `chats` WHERE " +
		strings.Join(where, " AND ") + " ORDER BY `updated_ts` DESC, `id` DESC"
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chats")
	}
	defer rows.Close()

	list := []*store.Chat{}
	for rows.Next() {
		c := &store.Chat{}
		if err := rows.Scan(&c.ID, &c.UID, &c.UserID, &c.Title, &c.CreatedTs, &c.UpdatedTs); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateChat(ctx context.Context, update *store.UpdateChat) (*store.Chat, error) {
	set, args := []string{}, []any{}
	if v := update.Title; v != nil {
		set, args = append(set, "`title` = ?"), append(args, *v)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "`updated_ts` = ?"), append(args, *v)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}
	args = append(args, update.ID, update.UserID)

	stmt := "UPDATE `chats` SET " + strings.Join(set, ", ") +
		" WHERE `id` = ? AND `user_id` = ? RETURNING `id`, `uid`, `user_id`, `title`, `created_ts`, `updated_ts`"
	c := &store.Chat{}
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&c.ID, &c.UID, &c.UserID, &c.Title, &c.CreatedTs, &c.UpdatedTs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to update chat")
	}
	return c, nil
}

func (d *DB) DeleteChat(ctx context.Context, delete *store.DeleteChat) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM `chats` WHERE `id` = ? AND `user_id` = ?", delete.ID, delete.UserID)
	if err != nil {
		return errors.Wrap(err, "failed to delete chat")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}
