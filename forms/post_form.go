package forms

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/quill/models"
)

// GroupFinder resolves a submitted group id.
type GroupFinder interface {
	ByID(ctx context.Context, id uint) (*models.Group, error)
}

type postInput struct {
	Text  string `form:"text" binding:"required"`
	Group string `form:"group"`
}

// PostForm is the create/edit post submission.
type PostForm struct {
	Text       string
	GroupID    *uint
	Image      *ImageUpload
	ClearImage bool
	Errors     Errors
}

// NewPostFormFrom prefills the form for editing an existing post.
func NewPostFormFrom(p *models.Post) *PostForm {
	return &PostForm{Text: p.Text, GroupID: p.GroupID, Errors: Errors{}}
}

// Valid reports whether the submission can be persisted.
func (f *PostForm) Valid() bool { return len(f.Errors) == 0 }

// GroupSelected is used by the template to mark the chosen option.
func (f *PostForm) GroupSelected(id uint) bool {
	return f.GroupID != nil && *f.GroupID == id
}

// BindPost parses and validates a post submission. The returned error is reserved for
// storage failures; validation problems land in form.Errors.
func BindPost(ctx *gin.Context, groups GroupFinder, maxImageBytes int64) (*PostForm, error) {
	form := &PostForm{Errors: Errors{}}

	var in postInput
	if err := ctx.ShouldBind(&in); err != nil {
		form.Errors.addBindingErrors(err)
	}
	form.Text = strings.TrimSpace(in.Text)
	if form.Text == "" && !form.Errors.Has("text") {
		form.Errors.Add("text", MsgRequired)
	}

	if raw := strings.TrimSpace(in.Group); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			form.Errors.Add("group", MsgInvalidChoice)
		} else {
			g, err := groups.ByID(ctx.Request.Context(), uint(id))
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				form.Errors.Add("group", MsgInvalidChoice)
			case err != nil:
				return nil, err
			default:
				form.GroupID = &g.ID
			}
		}
	}

	form.ClearImage = ctx.PostForm("image-clear") != ""

	fh, err := ctx.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case err != nil:
		form.Errors.Add("image", MsgInvalidImage)
	default:
		img, err := ReadImage(fh, maxImageBytes)
		if err != nil {
			form.Errors.Add("image", err.Error())
		} else {
			form.Image = img
		}
	}
	return form, nil
}
