package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/cppla/quill/models"
)

// Groups reads and writes communities.
type Groups struct {
	db *gorm.DB
}

func NewGroups(db *gorm.DB) *Groups {
	return &Groups{db: db}
}

func (r *Groups) BySlug(ctx context.Context, slug string) (*models.Group, error) {
	var g models.Group
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&g).Error; err != nil {
		return nil, fmt.Errorf("group %q: %w", slug, err)
	}
	return &g, nil
}

func (r *Groups) ByID(ctx context.Context, id uint) (*models.Group, error) {
	var g models.Group
	if err := r.db.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, fmt.Errorf("group %d: %w", id, err)
	}
	return &g, nil
}

// All returns every group ordered by title, for the post form's group choices.
func (r *Groups) All(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := r.db.WithContext(ctx).Order("title ASC").Order("id ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

func (r *Groups) Create(ctx context.Context, g *models.Group) error {
	if err := r.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("create group %q: %w", g.Slug, err)
	}
	return nil
}
