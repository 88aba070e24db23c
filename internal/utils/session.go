package utils

import (
	"time"

	"github.com/google/uuid"
)

// SessionData is what the session middleware needs to know about a session.
type SessionData struct {
	UserID    string
	ExpiresAt time.Time
}

func GenerateUUID() string {
	return uuid.NewString()
}
