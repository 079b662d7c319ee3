package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/quill/config"
	"github.com/cppla/quill/models"
	"github.com/cppla/quill/repository"
)

// ProfileController serves author pages and the follow graph.
type ProfileController struct {
	blog
}

func NewProfileController(db *gorm.DB, cfg config.AppConfig) *ProfileController {
	return &ProfileController{blog: newBlog(db, cfg)}
}

func profileURL(username string) string { return "/" + username + "/" }

// Profile lists one author's posts with follower statistics.
func (p *ProfileController) Profile(ctx *gin.Context) {
	author, ok := p.findAuthor(ctx)
	if !ok {
		return
	}
	posts, page, err := p.listPosts(ctx, repository.PostFilter{AuthorID: author.ID})
	if err != nil {
		ServerError(ctx, err)
		return
	}
	data, err := p.authorCard(ctx, author)
	if err != nil {
		ServerError(ctx, err)
		return
	}
	data["Posts"] = posts
	data["Page"] = page
	render(ctx, http.StatusOK, "profile", data)
}

// Follow subscribes the current user to an author. Following yourself is ignored and
// following twice keeps a single edge.
func (p *ProfileController) Follow(ctx *gin.Context) {
	author, ok := p.findAuthor(ctx)
	if !ok {
		return
	}
	if userID, _ := mustUser(ctx); userID != author.ID {
		if err := p.follows.Follow(ctx.Request.Context(), userID, author.ID); err != nil {
			ServerError(ctx, err)
			return
		}
	}
	ctx.Redirect(http.StatusFound, profileURL(author.Username))
}

// Unfollow removes the edge if present.
func (p *ProfileController) Unfollow(ctx *gin.Context) {
	author, ok := p.findAuthor(ctx)
	if !ok {
		return
	}
	userID, _ := mustUser(ctx)
	if err := p.follows.Unfollow(ctx.Request.Context(), userID, author.ID); err != nil {
		ServerError(ctx, err)
		return
	}
	ctx.Redirect(http.StatusFound, profileURL(author.Username))
}

// FollowIndex is the personal feed: posts by everyone the current user follows.
func (p *ProfileController) FollowIndex(ctx *gin.Context) {
	userID, _ := mustUser(ctx)
	posts, page, err := p.listPosts(ctx, repository.PostFilter{FollowerID: userID})
	if err != nil {
		ServerError(ctx, err)
		return
	}
	render(ctx, http.StatusOK, "follow", gin.H{"Posts": posts, "Page": page})
}

func (p *ProfileController) findAuthor(ctx *gin.Context) (*models.User, bool) {
	author, err := p.users.ByUsername(ctx.Request.Context(), ctx.Param("username"))
	if err != nil {
		lookupFailed(ctx, err)
		return nil, false
	}
	return author, true
}
