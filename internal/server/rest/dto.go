package rest

import (
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
)

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	AvatarURL string `json:"avatar_url"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type contentRequest struct {
	Content string `json:"content"`
}

// userOut is the public profile. Email and login times are only shown to
// the account owner through meOut.
type userOut struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

type meOut struct {
	userOut
	Email     string     `json:"email"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

type secretOut struct {
	ID         int64      `json:"id"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	LikeCount  int        `json:"like_count"`
	HugCount   int        `json:"hug_count"`
	Mine       bool       `json:"mine"`
}

type commentOut struct {
	ID         int64      `json:"id"`
	SecretID   int64      `json:"belong_to"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	LikeCount  int        `json:"like_count"`
	Mine       bool       `json:"mine"`
}

type avatarUploadOut struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	AvatarURL string    `json:"avatar_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toUserOut(u *models.User) userOut {
	return userOut{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL, CreatedAt: u.CreatedAt}
}

func toMeOut(u *models.User) meOut {
	return meOut{userOut: toUserOut(u), Email: u.Email, LastLogin: u.LastLogin}
}

// mine is true only for an authenticated viewer who created the resource.
func mine(viewer *models.User, creatorID int64) bool {
	return viewer != nil && viewer.ID == creatorID
}

func toSecretOut(s *models.Secret, viewer *models.User) secretOut {
	return secretOut{
		ID:         s.ID,
		Content:    s.Content,
		CreatedAt:  s.CreatedAt,
		ModifiedAt: s.ModifiedAt,
		LikeCount:  s.LikeCount,
		HugCount:   s.HugCount,
		Mine:       mine(viewer, s.CreatorID),
	}
}

func toCommentOut(c *models.Comment, viewer *models.User) commentOut {
	return commentOut{
		ID:         c.ID,
		SecretID:   c.SecretID,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
		ModifiedAt: c.ModifiedAt,
		LikeCount:  c.LikeCount,
		Mine:       mine(viewer, c.CreatorID),
	}
}
