// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered Soundscape account.
//
// PasswordHash is empty for accounts created through federated sign-in until
// the user resets their password. Secret fields carry json:"-" so a User can
// never leak them even if it is encoded directly.
type User struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"` // stored lower-cased
	PasswordHash  string   `json:"-"`
	GoogleID      string   `json:"-"` // federated subject id, empty if never linked
	Genres        []string `json:"genres"`
	EmailVerified bool     `json:"emailVerified"`

	VerificationToken string     `json:"-"`
	ResetToken        string     `json:"-"`
	ResetTokenExpiry  *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicUser is the subset of User returned by the API.
type PublicUser struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Genres        []string `json:"genres"`
	EmailVerified bool     `json:"emailVerified"`
}

// Public strips credentials and tokens from u.
func (u *User) Public() PublicUser {
	genres := u.Genres
	if genres == nil {
		genres = []string{}
	}
	return PublicUser{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Genres:        genres,
		EmailVerified: u.EmailVerified,
	}
}
