package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/quill/forms"
	"github.com/cppla/quill/middleware"
	"github.com/cppla/quill/models"
	"github.com/cppla/quill/repository"
	"github.com/cppla/quill/utils"
)

const msgBadCredentials = "Please enter a correct username and password."

// AuthController handles signup, login and logout with a session cookie.
type AuthController struct {
	users    *repository.Users
	sessions *middleware.Sessions
}

func NewAuthController(db *gorm.DB, sessions *middleware.Sessions) *AuthController {
	return &AuthController{users: repository.NewUsers(db), sessions: sessions}
}

func (a *AuthController) SignupPage(ctx *gin.Context) {
	render(ctx, http.StatusOK, "signup", gin.H{"Form": &forms.SignupForm{}, "Errors": forms.Errors{}})
}

// Signup registers a user and logs them in.
func (a *AuthController) Signup(ctx *gin.Context) {
	form := forms.BindSignup(ctx)
	if form.Valid() {
		exists, err := a.users.Exists(ctx.Request.Context(), form.Username)
		if err != nil {
			ServerError(ctx, err)
			return
		}
		if exists {
			form.Errors.Add("username", "A user with that username already exists.")
		}
	}
	if !form.Valid() {
		render(ctx, http.StatusOK, "signup", gin.H{"Form": form, "Errors": form.Errors})
		return
	}

	hash, err := utils.HashPassword(form.Password)
	if err != nil {
		ServerError(ctx, err)
		return
	}
	user := models.User{
		Username:     form.Username,
		Email:        form.Email,
		FullName:     form.FullName,
		PasswordHash: hash,
	}
	if err := a.users.Create(ctx.Request.Context(), &user); err != nil {
		ServerError(ctx, err)
		return
	}
	if err := a.sessions.Start(ctx, &user); err != nil {
		ServerError(ctx, err)
		return
	}
	utils.Sugar.Infow("user registered", "user_id", user.ID, "username", user.Username)
	ctx.Redirect(http.StatusFound, "/")
}

func (a *AuthController) LoginPage(ctx *gin.Context) {
	render(ctx, http.StatusOK, "login", gin.H{"Username": "", "Next": ctx.Query("next"), "Errors": forms.Errors{}})
}

// Login verifies credentials and sends the user back to next.
func (a *AuthController) Login(ctx *gin.Context) {
	form := forms.BindLogin(ctx)
	if !form.Valid() {
		a.loginFailed(ctx, form)
		return
	}

	user, err := a.users.ByUsername(ctx.Request.Context(), form.Username)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			ServerError(ctx, err)
			return
		}
		form.Errors.Add("__all__", msgBadCredentials)
		a.loginFailed(ctx, form)
		return
	}
	if !utils.CheckPassword(user.PasswordHash, form.Password) {
		form.Errors.Add("__all__", msgBadCredentials)
		a.loginFailed(ctx, form)
		return
	}

	if err := a.sessions.Start(ctx, user); err != nil {
		ServerError(ctx, err)
		return
	}
	ctx.Redirect(http.StatusFound, middleware.SafeNext(form.Next))
}

func (a *AuthController) loginFailed(ctx *gin.Context, form *forms.LoginForm) {
	render(ctx, http.StatusOK, "login", gin.H{
		"Username": form.Username,
		"Next":     form.Next,
		"Errors":   form.Errors,
	})
}

// Logout revokes the session token and clears the cookie.
func (a *AuthController) Logout(ctx *gin.Context) {
	a.sessions.End(ctx)
	ctx.Redirect(http.StatusFound, "/")
}
