package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/quill/middleware"
	"github.com/cppla/quill/utils"
)

// render writes an HTML page with the current user available as .Viewer.
func render(ctx *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if user, ok := middleware.CurrentUser(ctx); ok {
		data["Viewer"] = user
	}
	ctx.HTML(status, page, data)
}

// NotFound renders the 404 page.
func NotFound(ctx *gin.Context) {
	render(ctx, http.StatusNotFound, "404", gin.H{"Path": ctx.Request.URL.Path})
	ctx.Abort()
}

// ServerError logs err and renders the 500 page.
func ServerError(ctx *gin.Context, err error) {
	utils.Sugar.Errorw("request failed",
		"method", ctx.Request.Method,
		"path", ctx.Request.URL.Path,
		"err", err,
	)
	render(ctx, http.StatusInternalServerError, "500", nil)
	ctx.Abort()
}

// lookupFailed maps a failed lookup to 404 or 500.
func lookupFailed(ctx *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		NotFound(ctx)
		return
	}
	ServerError(ctx, err)
}

func paramID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// mustUser returns the logged in user; routes using it sit behind LoginRequired.
func mustUser(ctx *gin.Context) (uint, string) {
	user, _ := middleware.CurrentUser(ctx)
	if user == nil {
		return 0, ""
	}
	return user.ID, user.Username
}
