package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/quill/config"
	"github.com/cppla/quill/forms"
	"github.com/cppla/quill/models"
	"github.com/cppla/quill/repository"
	"github.com/cppla/quill/storage"
	"github.com/cppla/quill/utils"
)

// PostController serves the post listings, post pages, the post form and comments.
type PostController struct {
	blog
	media         storage.Media
	maxImageBytes int64
	now           func() time.Time
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, media storage.Media, cfg config.AppConfig) *PostController {
	return &PostController{
		blog:          newBlog(db, cfg),
		media:         media,
		maxImageBytes: int64(cfg.MaxImageSizeMB) << 20,
		now:           time.Now,
	}
}

func postURL(username string, id uint) string {
	return fmt.Sprintf("/%s/%d/", username, id)
}

// Index lists every post, newest first.
func (p *PostController) Index(ctx *gin.Context) {
	posts, page, err := p.listPosts(ctx, repository.PostFilter{})
	if err != nil {
		ServerError(ctx, err)
		return
	}
	render(ctx, http.StatusOK, "index", gin.H{"Posts": posts, "Page": page})
}

// GroupPosts lists the posts of one group.
func (p *PostController) GroupPosts(ctx *gin.Context) {
	group, err := p.groups.BySlug(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		lookupFailed(ctx, err)
		return
	}
	posts, page, err := p.listPosts(ctx, repository.PostFilter{GroupID: group.ID})
	if err != nil {
		ServerError(ctx, err)
		return
	}
	render(ctx, http.StatusOK, "group", gin.H{"Group": group, "Posts": posts, "Page": page})
}

// NewPost shows the empty post form.
func (p *PostController) NewPost(ctx *gin.Context) {
	p.renderForm(ctx, &forms.PostForm{Errors: forms.Errors{}}, nil)
}

// CreatePost publishes a post authored by the current user.
func (p *PostController) CreatePost(ctx *gin.Context) {
	form, err := forms.BindPost(ctx, p.groups, p.maxImageBytes)
	if err != nil {
		ServerError(ctx, err)
		return
	}
	if !form.Valid() {
		p.renderForm(ctx, form, nil)
		return
	}

	userID, username := mustUser(ctx)
	post := models.Post{Text: form.Text, GroupID: form.GroupID, AuthorID: userID}
	if form.Image != nil {
		url, err := p.saveImage(ctx.Request.Context(), form.Image)
		if err != nil {
			ServerError(ctx, err)
			return
		}
		post.Image = url
	}
	if err := p.posts.Create(ctx.Request.Context(), &post); err != nil {
		p.discardImage(ctx.Request.Context(), post.Image)
		ServerError(ctx, err)
		return
	}

	utils.Sugar.Infow("post created", "post_id", post.ID, "author", username)
	ctx.Redirect(http.StatusFound, "/")
}

// PostView shows a post with its comments and its author's profile card.
func (p *PostController) PostView(ctx *gin.Context) {
	post, ok := p.findPost(ctx)
	if !ok {
		return
	}
	comments, err := p.comments.ForPost(ctx.Request.Context(), post.ID)
	if err != nil {
		ServerError(ctx, err)
		return
	}
	post.CommentCount = int64(len(comments))

	data, err := p.authorCard(ctx, &post.Author)
	if err != nil {
		ServerError(ctx, err)
		return
	}
	viewerID, _ := mustUser(ctx)
	data["Post"] = post
	data["Comments"] = comments
	data["CanEdit"] = viewerID != 0 && viewerID == post.AuthorID
	render(ctx, http.StatusOK, "post", data)
}

// EditPost shows the prefilled form to the post's author. Anyone else is sent back to the post.
func (p *PostController) EditPost(ctx *gin.Context) {
	post, ok := p.findEditable(ctx)
	if !ok {
		return
	}
	p.renderForm(ctx, forms.NewPostFormFrom(post), post)
}

// UpdatePost saves the author's changes; pub_date and author never change.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	post, ok := p.findEditable(ctx)
	if !ok {
		return
	}
	form, err := forms.BindPost(ctx, p.groups, p.maxImageBytes)
	if err != nil {
		ServerError(ctx, err)
		return
	}
	if !form.Valid() {
		p.renderForm(ctx, form, post)
		return
	}

	rc := ctx.Request.Context()
	oldImage := post.Image
	post.Text = form.Text
	post.GroupID = form.GroupID
	switch {
	case form.Image != nil:
		url, err := p.saveImage(rc, form.Image)
		if err != nil {
			ServerError(ctx, err)
			return
		}
		post.Image = url
	case form.ClearImage:
		post.Image = ""
	}

	if err := p.posts.Update(rc, post); err != nil {
		if post.Image != oldImage {
			p.discardImage(rc, post.Image)
		}
		ServerError(ctx, err)
		return
	}
	if post.Image != oldImage {
		p.discardImage(rc, oldImage)
	}
	ctx.Redirect(http.StatusFound, postURL(post.Author.Username, post.ID))
}

// AddComment stores a comment by the current user. Invalid input is dropped; the
// response is always a redirect to the post.
func (p *PostController) AddComment(ctx *gin.Context) {
	post, ok := p.findPost(ctx)
	if !ok {
		return
	}
	form := forms.BindComment(ctx)
	if form.Valid() {
		userID, _ := mustUser(ctx)
		comment := models.Comment{PostID: post.ID, AuthorID: userID, Text: form.Text}
		if err := p.comments.Create(ctx.Request.Context(), &comment); err != nil {
			ServerError(ctx, err)
			return
		}
	}
	ctx.Redirect(http.StatusFound, postURL(post.Author.Username, post.ID))
}

// findPost resolves /:username/:post_id/ or writes the 404 page.
func (p *PostController) findPost(ctx *gin.Context) (*models.Post, bool) {
	id, ok := paramID(ctx, "post_id")
	if !ok {
		NotFound(ctx)
		return nil, false
	}
	post, err := p.posts.ByAuthorAndID(ctx.Request.Context(), ctx.Param("username"), id)
	if err != nil {
		lookupFailed(ctx, err)
		return nil, false
	}
	return post, true
}

func (p *PostController) findEditable(ctx *gin.Context) (*models.Post, bool) {
	post, ok := p.findPost(ctx)
	if !ok {
		return nil, false
	}
	if userID, _ := mustUser(ctx); userID != post.AuthorID {
		ctx.Redirect(http.StatusFound, postURL(post.Author.Username, post.ID))
		ctx.Abort()
		return nil, false
	}
	return post, true
}

func (p *PostController) renderForm(ctx *gin.Context, form *forms.PostForm, post *models.Post) {
	groups, err := p.groups.All(ctx.Request.Context())
	if err != nil {
		ServerError(ctx, err)
		return
	}
	data := gin.H{"Form": form, "Groups": groups, "Editing": post != nil}
	if post != nil {
		data["Post"] = post
		data["CurrentImage"] = post.Image
	}
	render(ctx, http.StatusOK, "new_post", data)
}

func (p *PostController) saveImage(ctx context.Context, img *forms.ImageUpload) (string, error) {
	name := storage.ObjectName(img.Extension, p.now())
	url, err := p.media.Save(ctx, name, img.Reader(), img.Size(), img.ContentType)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return url, nil
}

func (p *PostController) discardImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := p.media.Delete(ctx, url); err != nil {
		utils.Sugar.Warnw("failed to delete image", "url", url, "err", err)
	}
}
