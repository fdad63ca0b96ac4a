package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hrygo/studychat/internal/util"
	"github.com/hrygo/studychat/store"
)

func (d *DB) CreateMessage(ctx context.Context, create *store.CreateMessage) (*store.Message, error) {
	attachments, err := store.EncodeAttachments(create.Attachments)
	if err != nil {
		return nil, err
	}
	var column sql.NullString
	if attachments != "" {
		column = sql.NullString{String: attachments, Valid: true}
	}
	uid := create.UID
	if uid == "" {
		uid = util.GenUUID()
	}

	stmt := "INSERT INTO `messages` (`uid`, `chat_id`, `role`, `content`, `attachments`, `created_ts`) " +
		"SELECT ?, ?, ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM `chats` WHERE `id` = ? AND `user_id` = ?) RETURNING `id`"
	message := &store.Message{
		UID:         uid,
		ChatID:      create.ChatID,
		Role:        create.Role,
		Content:     create.Content,
		Attachments: create.Attachments,
		CreatedTs:   create.CreatedTs,
	}
	err = d.db.QueryRowContext(ctx, stmt,
		uid, create.ChatID, string(create.Role), create.Content, column, create.CreatedTs,
		create.ChatID, create.UserID,
	).Scan(&message.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to create message")
	}
	return message, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	query := "SELECT m.`id`, m.`uid`, m.`chat_id`, m.`role`, m.`content`, m.`attachments`, m.`created_ts` " +
		"FROM `messages` m JOIN `chats` c ON c.`id` = m.`chat_id` " +
		"WHERE m.`chat_id` = ? AND c.`user_id` = ? ORDER BY m.`created_ts` ASC, m.`id` ASC"
	rows, err := d.db.QueryContext(ctx, query, find.ChatID, find.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	defer rows.Close()

	list := []*store.Message{}
	for rows.Next() {
		var (
			m           store.Message
			role        string
			attachments sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.UID, &m.ChatID, &role, &m.Content, &attachments, &m.CreatedTs); err != nil {
			return nil, err
		}
		m.Role = store.Role(role)
		if attachments.Valid {
			m.Attachments = store.DecodeAttachments([]byte(attachments.String))
		}
		list = append(list, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
