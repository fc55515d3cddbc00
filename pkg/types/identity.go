package types

import "github.com/google/uuid"

// Identity is the server-issued description of the logged-in user.
type Identity struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}
