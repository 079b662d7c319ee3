package controllers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/quill/config"
	"github.com/cppla/quill/models"
	"github.com/cppla/quill/repository"
	"github.com/cppla/quill/utils"
)

// blog bundles the repositories shared by the page controllers.
type blog struct {
	users    *repository.Users
	groups   *repository.Groups
	posts    *repository.Posts
	comments *repository.Comments
	follows  *repository.Follows
	perPage  int
}

func newBlog(db *gorm.DB, cfg config.AppConfig) blog {
	return blog{
		users:    repository.NewUsers(db),
		groups:   repository.NewGroups(db),
		posts:    repository.NewPosts(db),
		comments: repository.NewComments(db),
		follows:  repository.NewFollows(db),
		perPage:  cfg.PostsPerPage,
	}
}

// listPosts loads the page requested by ?page= for filter.
func (b blog) listPosts(ctx *gin.Context, f repository.PostFilter) ([]models.Post, utils.Page, error) {
	total, err := b.posts.Count(ctx.Request.Context(), f)
	if err != nil {
		return nil, utils.Page{}, err
	}
	page := utils.Paginate(total, b.perPage, ctx.Query("page"))
	if total == 0 {
		return nil, page, nil
	}
	posts, err := b.posts.List(ctx.Request.Context(), f, page.Offset(), page.PerPage)
	if err != nil {
		return nil, page, err
	}
	return posts, page, nil
}

// authorCard collects the profile sidebar shown on profile and post pages.
func (b blog) authorCard(ctx *gin.Context, author *models.User) (gin.H, error) {
	rc := ctx.Request.Context()
	postCount, err := b.posts.Count(rc, repository.PostFilter{AuthorID: author.ID})
	if err != nil {
		return nil, err
	}
	followers, err := b.follows.FollowerCount(rc, author.ID)
	if err != nil {
		return nil, err
	}
	following, err := b.follows.FollowingCount(rc, author.ID)
	if err != nil {
		return nil, err
	}

	data := gin.H{
		"Author":         author,
		"PostCount":      postCount,
		"Followers":      followers,
		"FollowingCount": following,
		"Following":      false,
		"CanFollow":      false,
	}
	viewerID, _ := mustUser(ctx)
	if viewerID != 0 && viewerID != author.ID {
		isFollowing, err := b.follows.Exists(rc, viewerID, author.ID)
		if err != nil {
			return nil, err
		}
		data["Following"] = isFollowing
		data["CanFollow"] = true
	}
	return data, nil
}
