package store

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable turn of a chat.
type Message struct {
	UID         string
	Role        Role
	Content     string
	Attachments []AttachmentDescriptor
	CreatedTs   int64 // unix milliseconds
	ID          int32
	ChatID      int32
}

// CreateMessage inserts a message into a chat owned by UserID.
type CreateMessage struct {
	UID         string
	Role        Role
	Content     string
	Attachments []AttachmentDescriptor
	CreatedTs   int64
	ChatID      int32
	UserID      int32
}

// FindMessage lists the messages of a chat owned by UserID.
type FindMessage struct {
	ChatID int32
	UserID int32
}
