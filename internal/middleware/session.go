package middleware

import (
	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	SessionName = "timewatch_admin_session"

	sessionUserID   = "user_id"
	sessionUsername = "username"
	sessionRole     = "role"
)

// SessionUser: то, что хранится в cookie-сессии после входа
type SessionUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func SaveSessionUser(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Set(sessionUserID, user.ID.Hex())
	session.Set(sessionUsername, user.Username)
	session.Set(sessionRole, user.Role)
	return session.Save()
}

func ClearSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return session.Save()
}

func GetSessionUser(c *gin.Context) (*SessionUser, bool) {
	session := sessions.Default(c)
	id, _ := session.Get(sessionUserID).(string)
	if id == "" {
		return nil, false
	}
	username, _ := session.Get(sessionUsername).(string)
	role, _ := session.Get(sessionRole).(string)
	return &SessionUser{ID: id, Username: username, Role: role}, true
}

// RequireAdmin пропускает администратора из сессии или запрос с валидным API ключом.
// denyStatus различается по маршрутам: события отвечают 401, маппинги 403.
// skip=true отключает проверку (dev-режим для событий).
func RequireAdmin(denyStatus int, body func(message string) gin.H, skip bool) gin.HandlerFunc {
	const message = "관리자 권한이 필요합니다."

	return func(c *gin.Context) {
		if skip || IsAPIKeyValidated(c) {
			c.Next()
			return
		}

		user, ok := GetSessionUser(c)
		if !ok || user.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(denyStatus, body(message))
			return
		}

		c.Next()
	}
}

// EventsDenied: форма ошибки маршрутов событий
func EventsDenied(message string) gin.H {
	return gin.H{"success": false, "message": message}
}

// ErrorDenied: форма ошибки маршрутов маппингов и доменов
func ErrorDenied(message string) gin.H {
	return gin.H{"error": message}
}
