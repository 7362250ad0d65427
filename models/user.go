package models

import "time"

type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the authenticated caller of a chat operation. It is resolved
// once per request by the transport and passed down explicitly.
type Identity struct {
	UserID   int
	Username string
}
