package exchange

import (
	"bytes"
	"io"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/studychat/internal/security"
	"github.com/hrygo/studychat/store"
)

// PendingAttachment is a file staged for the next send. It is not part of
// any persisted turn yet.
type PendingAttachment struct {
	ID       string
	name     string
	mimeType string
	size     int64
	open     func() (io.ReadCloser, error)
}

// NewPendingAttachment stages a file whose bytes are produced by open.
func NewPendingAttachment(name, mimeType string, size int64, open func() (io.ReadCloser, error)) *PendingAttachment {
	return &PendingAttachment{
		ID:       shortuuid.New(),
		name:     name,
		mimeType: mimeType,
		size:     size,
		open:     open,
	}
}

// PendingFromBytes stages an in-memory file.
func PendingFromBytes(name, mimeType string, data []byte) *PendingAttachment {
	return NewPendingAttachment(name, mimeType, int64(len(data)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

func (a *PendingAttachment) Name() string     { return a.name }
func (a *PendingAttachment) MIMEType() string { return a.mimeType }
func (a *PendingAttachment) Size() int64      { return a.size }

func (a *PendingAttachment) Open() (io.ReadCloser, error) {
	return a.open()
}

func (a *PendingAttachment) descriptor() store.AttachmentDescriptor {
	return store.AttachmentDescriptor{Name: a.name, Type: a.mimeType, Size: a.size}
}

func (a *PendingAttachment) meta() security.FileMeta {
	return security.FileMeta{Name: a.name, Type: a.mimeType, Size: a.size}
}

// PendingInfo is the displayable part of a pending attachment.
type PendingInfo struct {
	ID   string
	Name string
	Type string
	Size int64
}

func (a *PendingAttachment) info() PendingInfo {
	return PendingInfo{ID: a.ID, Name: a.name, Type: a.mimeType, Size: a.size}
}
