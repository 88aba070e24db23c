package auth

import "time"

type Session struct {
	SessionID string    `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"not null;unique" json:"-"`
	ExpiresAt time.Time `gorm:"not null"`
}

type User struct {
	UserID         string    `gorm:"primaryKey" json:"user_id"`
	Email          string    `gorm:"uniqueIndex;not null" json:"email"`
	Password       string    `json:"password,omitempty" gorm:"-"`
	HashedPassword string    `json:"-"`
	FullName       string    `json:"full_name"`
	Bio            string    `json:"bio"`
	Organization   string    `json:"organization"`
	AvatarURL      string    `json:"avatar_url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "app_auth.sessions" }
func (User) TableName() string    { return "app_auth.users" }

// Profile is the public view of a user.
type Profile struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Bio          string `json:"bio"`
	Organization string `json:"organization"`
	AvatarURL    string `json:"avatar_url"`
}

func (u User) Profile() Profile {
	return Profile{
		UserID:       u.UserID,
		Email:        u.Email,
		FullName:     u.FullName,
		Bio:          u.Bio,
		Organization: u.Organization,
		AvatarURL:    u.AvatarURL,
	}
}
