package auth

import (
	"context"
	"time"

	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/utils"
)

// SessionInfo looks sessions up in app_auth.sessions. Every module's session
// middleware uses it.
type SessionInfo struct{}

func (si SessionInfo) FindSessionByID(id string) (utils.SessionData, error) {
	var session Session

	err := db.DB.First(&session, "session_id = ?", id).Error
	if err != nil {
		return utils.SessionData{}, err
	}

	return utils.SessionData{
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Names resolves user ids to display names for listings.
func Names(ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []User
	if err := db.DB.Select("user_id", "full_name").Where("user_id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.UserID] = u.FullName
	}
	return out, nil
}

// PurgeExpired deletes sessions that expired before now and reports how many went.
func PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := db.DB.WithContext(ctx).Where("expires_at < ?", now).Delete(&Session{})
	return res.RowsAffected, res.Error
}
