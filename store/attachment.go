package store

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// AttachmentKind classifies a stored attachment by its MIME type.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentDocument AttachmentKind = "document"
)

// AttachmentDescriptor is the persisted metadata of a file sent with a
// message. The bytes themselves are never stored.
type AttachmentDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// Kind derives the attachment variant from its MIME type.
func (a AttachmentDescriptor) Kind() AttachmentKind {
	switch {
	case strings.HasPrefix(a.Type, "image/"):
		return AttachmentImage
	case strings.HasPrefix(a.Type, "video/"):
		return AttachmentVideo
	default:
		return AttachmentDocument
	}
}

// EncodeAttachments serializes descriptors for the attachments column.
// An empty list encodes to "" which drivers store as NULL.
func EncodeAttachments(list []AttachmentDescriptor) (string, error) {
	if len(list) == 0 {
		return "", nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal attachments")
	}
	return string(data), nil
}

// rawDescriptor mirrors AttachmentDescriptor with pointers so missing fields
// can be told apart from zero values.
type rawDescriptor struct {
	Name *string `json:"name"`
	Type *string `json:"type"`
	Size *int64  `json:"size"`
}

// DecodeAttachments parses the attachments column. Malformed entries are
// dropped one by one; a value that is not a JSON array yields no attachments.
// Unknown fields from older rows (such as a stale preview url) are ignored.
func DecodeAttachments(raw []byte) []AttachmentDescriptor {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
		slog.Warn("dropping malformed attachments column", "error", err)
		return nil
	}

	list := make([]AttachmentDescriptor, 0, len(items))
	for i, item := range items {
		var r rawDescriptor
		if err := json.Unmarshal(item, &r); err != nil {
			slog.Warn("dropping malformed attachment entry", "index", i, "error", err)
			continue
		}
		if r.Name == nil || *r.Name == "" || r.Type == nil || *r.Type == "" || r.Size == nil || *r.Size < 0 {
			slog.Warn("dropping incomplete attachment entry", "index", i)
			continue
		}
		list = append(list, AttachmentDescriptor{Name: *r.Name, Type: *r.Type, Size: *r.Size})
	}
	if len(list) == 0 {
		return nil
	}
	return list
}
