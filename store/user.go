package store

type User struct {
	Email        string
	PasswordHash string
	CreatedTs    int64
	ID           int32
}

type FindUser struct {
	ID    *int32
	Email *string
}
