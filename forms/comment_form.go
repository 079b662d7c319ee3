package forms

import (
	"strings"

	"github.com/gin-gonic/gin"
)

type commentInput struct {
	Text string `form:"text" binding:"required"`
}

// CommentForm accepts only the comment text; author and post come from the request context.
type CommentForm struct {
	Text   string
	Errors Errors
}

func (f *CommentForm) Valid() bool { return len(f.Errors) == 0 }

func BindComment(ctx *gin.Context) *CommentForm {
	form := &CommentForm{Errors: Errors{}}
	var in commentInput
	if err := ctx.ShouldBind(&in); err != nil {
		form.Errors.addBindingErrors(err)
	}
	form.Text = strings.TrimSpace(in.Text)
	if form.Text == "" && !form.Errors.Has("text") {
		form.Errors.Add("text", MsgRequired)
	}
	return form
}
