package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/quill/models"
)

// Follows manages the directed user -> author subscription graph.
type Follows struct {
	db *gorm.DB
}

func NewFollows(db *gorm.DB) *Follows {
	return &Follows{db: db}
}

// Follow creates the (user, author) edge if it does not exist yet.
func (r *Follows) Follow(ctx context.Context, userID, authorID uint) error {
	// the unique pair index makes concurrent duplicates a no-op
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{UserID: userID, AuthorID: authorID}).Error
	if err != nil {
		return fmt.Errorf("follow %d -> %d: %w", userID, authorID, err)
	}
	return nil
}

// Unfollow deletes the (user, author) edge; a missing edge is not an error.
func (r *Follows) Unfollow(ctx context.Context, userID, authorID uint) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return fmt.Errorf("unfollow %d -> %d: %w", userID, authorID, err)
	}
	return nil
}

func (r *Follows) Exists(ctx context.Context, userID, authorID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check follow %d -> %d: %w", userID, authorID, err)
	}
	return n > 0, nil
}

// FollowerCount is the number of users following authorID.
func (r *Follows) FollowerCount(ctx context.Context, authorID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("author_id = ?", authorID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count followers of %d: %w", authorID, err)
	}
	return n, nil
}

// FollowingCount is the number of authors userID follows.
func (r *Follows) FollowingCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count following of %d: %w", userID, err)
	}
	return n, nil
}
