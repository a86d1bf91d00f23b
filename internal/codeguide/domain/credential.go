package domain

import "time"

// Credential is a registered account as persisted in local storage.
// Records are immutable once created. Salt repeats the salt embedded in the
// PHC-encoded PasswordHash; login refuses a record where the two disagree.
type Credential struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Salt         string    `json:"salt"`
	CreatedAt    time.Time `json:"created_at"`
}

// User is the public view of a Credential.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// User strips the secret material.
func (c Credential) User() User {
	return User{
		ID:        c.ID,
		Username:  c.Username,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
	}
}
