package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/quill/config"
	"github.com/cppla/quill/models"
	"github.com/cppla/quill/utils"
)

const (
	// ContextUserKey is the key used to store the authenticated *models.User in Gin context.
	ContextUserKey = "current_user"
	// ContextTokenKey stores the raw session token inside Gin context.
	ContextTokenKey = "session_token"

	// LoginPath is where anonymous users are sent by LoginRequired.
	LoginPath = "/auth/login/"
)

// UserLoader resolves the user a session token was issued for.
type UserLoader interface {
	ByID(ctx context.Context, id uint) (*models.User, error)
}

// Sessions issues and reads the signed session cookie.
type Sessions struct {
	secret    string
	cookie    string
	ttl       time.Duration
	secure    bool
	blacklist *utils.TokenBlacklist
	users     UserLoader
}

func NewSessions(cfg config.AppConfig, blacklist *utils.TokenBlacklist, users UserLoader) *Sessions {
	return &Sessions{
		secret:    cfg.JWTSecret,
		cookie:    cfg.SessionCookieName,
		ttl:       time.Duration(cfg.SessionTTLHours) * time.Hour,
		secure:    cfg.SessionSecure,
		blacklist: blacklist,
		users:     users,
	}
}

// Load attaches the current user to the context when the request carries a valid
// session cookie. Anonymous requests pass through untouched.
func (s *Sessions) Load() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie(s.cookie)
		if err != nil || token == "" {
			ctx.Next()
			return
		}

		claims, err := utils.ParseToken(s.secret, token)
		if err != nil || s.blacklist.IsRevoked(ctx.Request.Context(), token) {
			s.clearCookie(ctx)
			ctx.Next()
			return
		}

		user, err := s.users.ByID(ctx.Request.Context(), claims.UserID)
		if err != nil {
			utils.Sugar.Debugw("session user not found", "user_id", claims.UserID, "err", err)
			s.clearCookie(ctx)
			ctx.Next()
			return
		}

		ctx.Set(ContextUserKey, user)
		ctx.Set(ContextTokenKey, token)
		ctx.Next()
	}
}

// Start logs user in by setting a fresh session cookie.
func (s *Sessions) Start(ctx *gin.Context, user *models.User) error {
	token, err := utils.GenerateToken(s.secret, user.ID, user.Username, s.ttl)
	if err != nil {
		return err
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(s.cookie, token, int(s.ttl.Seconds()), "/", "", s.secure, true)
	ctx.Set(ContextUserKey, user)
	ctx.Set(ContextTokenKey, token)
	return nil
}

// End revokes the current token until it would have expired and drops the cookie.
func (s *Sessions) End(ctx *gin.Context) {
	if token := ctx.GetString(ContextTokenKey); token != "" {
		if claims, err := utils.ParseToken(s.secret, token); err == nil && claims.ExpiresAt != nil {
			s.blacklist.Revoke(ctx.Request.Context(), token, claims.ExpiresAt.Time)
		}
	}
	s.clearCookie(ctx)
}

func (s *Sessions) clearCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(s.cookie, "", -1, "/", "", s.secure, true)
}

// CurrentUser returns the logged in user, if any.
func CurrentUser(ctx *gin.Context) (*models.User, bool) {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// LoginRequired redirects anonymous users to the login page, remembering where they were going.
func LoginRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if _, ok := CurrentUser(ctx); !ok {
			ctx.Redirect(http.StatusFound, LoginURL(ctx.Request.URL.Path))
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// LoginURL builds /auth/login/?next=<path> keeping slashes readable.
func LoginURL(next string) string {
	return LoginPath + "?next=" + strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
}

// SafeNext accepts only local absolute paths as redirect targets.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
