package v1

import (
	"log/slog"

	"github.com/hrygo/studychat/ai/exchange"
	"github.com/hrygo/studychat/store"
)

type chatResponse struct {
	ID        int32  `json:"id"`
	UID       string `json:"uid"`
	Title     string `json:"title"`
	CreatedTs int64  `json:"createdTs"`
	UpdatedTs int64  `json:"updatedTs"`
}

type attachmentResponse struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	Kind       string `json:"kind"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

type turnResponse struct {
	ID          int32                `json:"id"`
	UID         string               `json:"uid"`
	Role        string               `json:"role"`
	Content     string               `json:"content"`
	HTML        string               `json:"html,omitempty"`
	Attachments []attachmentResponse `json:"attachments"`
	CreatedTs   int64                `json:"createdTs"`
}

type pendingResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

type viewResponse struct {
	Chats          []chatResponse    `json:"chats"`
	SelectedChatID int32             `json:"selectedChatId,omitempty"`
	Turns          []turnResponse    `json:"turns"`
	Pending        []pendingResponse `json:"pending"`
	Sending        bool              `json:"sending"`
	Error          string            `json:"error,omitempty"`
}

func previewURL(handle string) string {
	return "/api/v1/previews/" + handle
}

func (*APIV1Service) convertChats(chats []store.Chat) []chatResponse {
	list := make([]chatResponse, 0, len(chats))
	for _, c := range chats {
		list = append(list, chatResponse{
			ID:        c.ID,
			UID:       c.UID,
			Title:     c.Title,
			CreatedTs: c.CreatedTs,
			UpdatedTs: c.UpdatedTs,
		})
	}
	return list
}

// convertTurn renders assistant content to HTML. User content is sent as
// plain text and user attachments carry their preview URL when one exists.
func (s *APIV1Service) convertTurn(t *exchange.Turn) turnResponse {
	resp := turnResponse{
		ID:          t.ID,
		UID:         t.UID,
		Role:        string(t.Role),
		Content:     t.Content,
		Attachments: make([]attachmentResponse, 0, len(t.Attachments)),
		CreatedTs:   t.CreatedTs,
	}
	if t.Role == store.RoleAssistant {
		html, err := s.MarkdownService.RenderHTML([]byte(t.Content))
		if err != nil {
			slog.Warn("failed to render assistant reply", "message_id", t.ID, "error", err)
		} else {
			resp.HTML = html
		}
	}
	for i, a := range t.Attachments {
		item := attachmentResponse{
			Name: a.Name,
			Type: a.Type,
			Size: a.Size,
			Kind: string(a.Kind()),
		}
		if t.Role == store.RoleUser && i < len(t.Previews) && t.Previews[i] != "" {
			item.PreviewURL = previewURL(t.Previews[i])
		}
		resp.Attachments = append(resp.Attachments, item)
	}
	return resp
}

func (s *APIV1Service) convertView(snap exchange.Snapshot) viewResponse {
	resp := viewResponse{
		Chats:          s.convertChats(snap.Chats),
		SelectedChatID: snap.SelectedChatID,
		Turns:          make([]turnResponse, 0, len(snap.Turns)),
		Pending:        make([]pendingResponse, 0, len(snap.Pending)),
		Sending:        snap.Sending,
		Error:          snap.LastError,
	}
	for _, t := range snap.Turns {
		resp.Turns = append(resp.Turns, s.convertTurn(t))
	}
	for _, p := range snap.Pending {
		resp.Pending = append(resp.Pending, pendingResponse{ID: p.ID, Name: p.Name, Type: p.Type, Size: p.Size})
	}
	return resp
}
