// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an Echoes account. Guest sessions share one row flagged IsGuest.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"column:password_hash;not null" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	Username     *string        `gorm:"uniqueIndex" json:"username,omitempty"`
	Bio          string         `gorm:"type:text" json:"bio"`
	AvatarURL    string         `gorm:"column:avatar_url" json:"avatar_url"`
	IsGuest      bool           `gorm:"not null;default:false" json:"is_guest"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// PublicProfile is the subset of a user embedded in other users' views.
type PublicProfile struct {
	ID        uint    `json:"id"`
	Name      string  `json:"name"`
	Username  *string `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url"`
	Bio       string  `json:"bio"`
}

// Profile returns the public projection of u.
func (u *User) Profile() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
	}
}
