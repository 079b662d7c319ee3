package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/cppla/quill/models"
)

// PostFilter selects one access pattern for listing posts. Zero value lists everything.
type PostFilter struct {
	AuthorID   uint // posts written by this user
	GroupID    uint // posts in this group
	FollowerID uint // posts by authors this user follows
}

// Posts reads and writes posts.
type Posts struct {
	db       *gorm.DB
	comments *Comments
}

func NewPosts(db *gorm.DB) *Posts {
	return &Posts{db: db, comments: NewComments(db)}
}

func (r *Posts) ByID(ctx context.Context, id uint) (*models.Post, error) {
	var p models.Post
	if err := r.db.WithContext(ctx).Preload("Author").Preload("Group").First(&p, id).Error; err != nil {
		return nil, fmt.Errorf("post %d: %w", id, err)
	}
	return &p, nil
}

// ByAuthorAndID finds post id only when it was written by username.
func (r *Posts) ByAuthorAndID(ctx context.Context, username string, id uint) (*models.Post, error) {
	var p models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").Preload("Group").
		Joins("JOIN users ON users.id = posts.author_id").
		Where("posts.id = ? AND users.username = ?", id, username).
		First(&p).Error
	if err != nil {
		return nil, fmt.Errorf("post %d by %q: %w", id, username, err)
	}
	return &p, nil
}

func (r *Posts) scoped(ctx context.Context, f PostFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Post{})
	if f.AuthorID != 0 {
		q = q.Where("posts.author_id = ?", f.AuthorID)
	}
	if f.GroupID != 0 {
		q = q.Where("posts.group_id = ?", f.GroupID)
	}
	if f.FollowerID != 0 {
		following := r.db.WithContext(ctx).Model(&models.Follow{}).Select("author_id").Where("user_id = ?", f.FollowerID)
		q = q.Where("posts.author_id IN (?)", following)
	}
	return q
}

// Count returns how many posts match the filter.
func (r *Posts) Count(ctx context.Context, f PostFilter) (int64, error) {
	var n int64
	if err := r.scoped(ctx, f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// List returns one window of matching posts newest first (ties by id), with author,
// group and comment counts loaded.
func (r *Posts) List(ctx context.Context, f PostFilter, offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.scoped(ctx, f).
		Preload("Author").Preload("Group").
		Order("posts.pub_date DESC").Order("posts.id DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	counts, err := r.comments.CountByPosts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].CommentCount = counts[posts[i].ID]
	}
	return posts, nil
}

func (r *Posts) Create(ctx context.Context, p *models.Post) error {
	if err := r.db.WithContext(ctx).Omit("Author", "Group", "Comments").Create(p).Error; err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// Update writes the editable fields only; author and pub_date never change.
func (r *Posts) Update(ctx context.Context, p *models.Post) error {
	err := r.db.WithContext(ctx).
		Model(&models.Post{ID: p.ID}).
		Updates(map[string]interface{}{"text": p.Text, "group_id": p.GroupID, "image": p.Image}).Error
	if err != nil {
		return fmt.Errorf("update post %d: %w", p.ID, err)
	}
	return nil
}
