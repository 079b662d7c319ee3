package forms

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// reservedUsernames collide with top-level routes.
var reservedUsernames = map[string]bool{
	"new": true, "follow": true, "group": true, "auth": true,
	"media": true, "static": true, "health": true,
}

// SignupForm registers a new user.
type SignupForm struct {
	Username  string `form:"username" binding:"required,max=150"`
	Email     string `form:"email" binding:"omitempty,email"`
	FullName  string `form:"full_name" binding:"max=255"`
	Password  string `form:"password" binding:"required,min=6,max=72"`
	Password2 string `form:"password2" binding:"required"`

	Errors Errors `form:"-"`
}

func (f *SignupForm) Valid() bool { return len(f.Errors) == 0 }

func BindSignup(ctx *gin.Context) *SignupForm {
	form := &SignupForm{}
	err := ctx.ShouldBind(form)
	form.Errors = Errors{}
	if err != nil {
		form.Errors.addBindingErrors(err)
	}
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)
	form.FullName = strings.TrimSpace(form.FullName)

	switch {
	case form.Errors.Has("username"):
	case !usernamePattern.MatchString(form.Username):
		form.Errors.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	case reservedUsernames[strings.ToLower(form.Username)]:
		form.Errors.Add("username", "This username is not available.")
	}
	if !form.Errors.Has("password2") && form.Password != form.Password2 {
		form.Errors.Add("password2", "The two password fields didn't match.")
	}
	return form
}

// LoginForm carries credentials and the page to return to.
type LoginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
	Next     string `form:"next"`

	Errors Errors `form:"-"`
}

func (f *LoginForm) Valid() bool { return len(f.Errors) == 0 }

func BindLogin(ctx *gin.Context) *LoginForm {
	form := &LoginForm{}
	err := ctx.ShouldBind(form)
	form.Errors = Errors{}
	if err != nil {
		form.Errors.addBindingErrors(err)
	}
	form.Username = strings.TrimSpace(form.Username)
	return form
}
