package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/metrics"
	"github.com/cuencahub/hub-backend/internal/middleware"
	"github.com/cuencahub/hub-backend/internal/storage"
	"github.com/cuencahub/hub-backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func sessionCookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   settings.SecureCookies,
		Expires:  expires,
	}
	// Cross-site frontends need SameSite=None, which browsers only accept with Secure.
	if settings.SecureCookies {
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}

	if err := utils.DecodeJSON(w, r, &input); err != nil {
		http.Error(w, "Invalid Request Format", http.StatusBadRequest)
		return
	}

	email := normalizeEmail(input.Email)
	if err := validateCredentials(email, input.Password); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fullName := strings.TrimSpace(input.FullName)
	if err := validateProfile(fullName, ""); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Check if email is taken
	var existing User
	err := db.DB.First(&existing, "email = ?", email).Error
	if err == nil {
		http.Error(w, "Email already registered", http.StatusConflict)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Server error hashing password", http.StatusInternalServerError)
		return
	}

	user := User{
		UserID:         utils.GenerateUUID(),
		Email:          email,
		HashedPassword: string(hashed),
		FullName:       fullName,
	}

	if err := db.DB.Create(&user).Error; err != nil {
		http.Error(w, "Failed to register user", http.StatusInternalServerError)
		return
	}

	slog.Info("user registered", "component", "auth", "user_id", user.UserID)
	utils.WriteJSON(w, http.StatusCreated, user.Profile())
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := utils.DecodeJSON(w, r, &input); err != nil {
		http.Error(w, "Invalid Data", http.StatusBadRequest)
		return
	}

	var user User
	err := db.DB.First(&user, "email = ?", normalizeEmail(input.Email)).Error
	if err != nil {
		http.Error(w, "Invalid Credentials", http.StatusUnauthorized)
		return
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(input.Password))
	if err != nil {
		http.Error(w, "Invalid Credentials", http.StatusUnauthorized)
		return
	}

	sessionID := utils.GenerateUUID()
	expires := time.Now().Add(settings.SessionTTL)

	// One session per user: rotate the id if a row already exists.
	var existing Session
	err = db.DB.Where("user_id = ?", user.UserID).First(&existing).Error
	switch {
	case err == nil:
		err = db.DB.Model(&Session{}).
			Where("user_id = ?", user.UserID).
			Updates(map[string]interface{}{"session_id": sessionID, "expires_at": expires}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = db.DB.Create(&Session{SessionID: sessionID, UserID: user.UserID, ExpiresAt: expires}).Error
	}
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, sessionCookie(sessionID, expires))
	utils.WriteJSON(w, http.StatusOK, user.Profile())
}

func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil {
		http.Error(w, "Couldn't find cookie", http.StatusUnauthorized)
		return
	}

	res := db.DB.Where("session_id = ?", cookie.Value).Delete(&Session{})
	if res.Error != nil {
		http.Error(w, "Failed to end session", http.StatusInternalServerError)
		return
	}
	if res.RowsAffected == 0 {
		http.Error(w, "Couldn't find session", http.StatusUnauthorized)
		return
	}

	deleted := sessionCookie("", time.Unix(0, 0))
	deleted.MaxAge = -1
	http.SetCookie(w, deleted)

	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Logout successful")
}

// currentUser loads the user injected by the session middleware.
func currentUser(w http.ResponseWriter, r *http.Request) (User, bool) {
	var user User

	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return user, false
	}
	if err := db.DB.First(&user, "user_id = ?", userID).Error; err != nil {
		http.Error(w, "Couldn't find user", http.StatusNotFound)
		return user, false
	}
	return user, true
}

func MeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, user.Profile())
}

func UpdatePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}

	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := utils.DecodeJSON(w, r, &input); err != nil {
		http.Error(w, "Current and new password are required", http.StatusBadRequest)
		return
	}
	if err := validatePassword(input.NewPassword); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Make sure user's current password matches stored hash before updating
	err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(input.CurrentPassword))
	if err != nil {
		http.Error(w, "Invalid current password", http.StatusUnauthorized)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Server error hashing password", http.StatusInternalServerError)
		return
	}

	if err := db.DB.Model(&user).Update("hashed_password", string(hashed)).Error; err != nil {
		http.Error(w, "Failed to update password", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Password updated")
}

func UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var updates struct {
		FullName     *string `json:"full_name,omitempty"`
		Bio          *string `json:"bio,omitempty"`
		Organization *string `json:"organization,omitempty"`
	}

	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := utils.DecodeJSON(w, r, &updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updateMap := make(map[string]interface{})
	if updates.FullName != nil {
		updateMap["full_name"] = strings.TrimSpace(*updates.FullName)
	}
	if updates.Bio != nil {
		updateMap["bio"] = strings.TrimSpace(*updates.Bio)
	}
	if updates.Organization != nil {
		updateMap["organization"] = strings.TrimSpace(*updates.Organization)
	}

	name, _ := updateMap["full_name"].(string)
	bio, _ := updateMap["bio"].(string)
	if err := validateProfile(name, bio); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if len(updateMap) > 0 {
		if err := db.DB.Model(&user).Updates(updateMap).Error; err != nil {
			http.Error(w, "Failed to update profile", http.StatusInternalServerError)
			return
		}
	}

	utils.WriteJSON(w, http.StatusOK, user.Profile())
}

func UploadAvatarHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if settings.Store == nil {
		http.Error(w, "Uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	file, _, err := r.FormFile("avatar")
	if err != nil {
		http.Error(w, "Form field 'avatar' is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	obj, err := settings.Store.PutImage(r.Context(), "avatars", file)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, storage.ErrTooLarge):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			slog.Error("avatar upload failed", "component", "auth", "user_id", user.UserID, "error", err)
			http.Error(w, "Failed to store avatar", http.StatusInternalServerError)
		}
		return
	}
	metrics.Uploads.WithLabelValues("avatar").Inc()

	previous := user.AvatarURL
	if err := db.DB.Model(&user).Update("avatar_url", obj.URL).Error; err != nil {
		_ = settings.Store.Delete(r.Context(), obj.Key)
		http.Error(w, "Failed to update avatar", http.StatusInternalServerError)
		return
	}

	if fs, ok := settings.Store.(*storage.FileStore); ok && previous != "" {
		if key, ok := fs.KeyFromURL(previous); ok {
			_ = fs.Delete(r.Context(), key)
		}
	}

	utils.WriteJSON(w, http.StatusOK, user.Profile())
}
