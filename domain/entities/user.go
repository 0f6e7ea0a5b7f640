package entities

import (
	"fmt"
	"strings"
	"time"
)

// User is a registered account that can own diagrams and join
// collaboration sessions.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	IsOnline  bool      `json:"isOnline"`
	LastSeen  time.Time `json:"lastSeen"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserProfile is the public projection of a user attached to
// participant listings.
type UserProfile struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar,omitempty"`
}

// NewUser creates a user, normalizing the email to lowercase.
func NewUser(id, username, email string) (*User, error) {
	if len(username) < 3 || len(username) > 30 {
		return nil, fmt.Errorf("username must be 3-30 characters")
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	now := time.Now()
	return &User{
		ID:        id,
		Username:  username,
		Email:     strings.ToLower(email),
		LastSeen:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Profile returns the public projection of the user.
func (u *User) Profile() UserProfile {
	return UserProfile{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
	}
}
