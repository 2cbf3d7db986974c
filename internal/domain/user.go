package domain

import "strings"

// User is a registered player. Stored under users/{id}.
type User struct {
	ID          string `json:"id" db:"id"`
	DisplayName string `json:"display_name" db:"display_name"`
	Email       string `json:"email" db:"email"`
}

// Principal is what the identity gateway returns after register/login.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// User converts an authenticated principal into a registry entry.
func (p Principal) User() User {
	return User{ID: p.ID, DisplayName: p.DisplayName, Email: strings.ToLower(p.Email)}
}

func (u User) Valid() bool {
	return strings.TrimSpace(u.ID) != ""
}
