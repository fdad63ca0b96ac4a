package store

// Chat is a titled, owned sequence of messages.
type Chat struct {
	UID       string
	Title     string
	CreatedTs int64 // unix milliseconds
	UpdatedTs int64 // unix milliseconds, bumped on every exchange
	ID        int32
	UserID    int32
}

// FindChat selects chats of one owner. UserID is mandatory.
type FindChat struct {
	ID     *int32
	UID    *string
	UserID int32
}

type UpdateChat struct {
	Title     *string
	UpdatedTs *int64
	ID        int32
	UserID    int32
}

type DeleteChat struct {
	ID     int32
	UserID int32
}
