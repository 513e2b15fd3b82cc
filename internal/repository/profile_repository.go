package repository

import (
	"context"
	"errors"

	"taskboard/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProfileRepository struct {
	db *gorm.DB
}

type ProfileRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	List(ctx context.Context) ([]model.Profile, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Profile, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*model.Profile, error)
}

var _ ProfileRepositoryInterface = (*ProfileRepository)(nil)

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByID returns nil, nil when the profile does not exist
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// List returns every profile, for assignee pickers
func (r *ProfileRepository) List(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	err := r.db.WithContext(ctx).Order("display_name").Find(&profiles).Error
	return profiles, err
}

// ListByIDs is the batched lookup. Unknown ids are simply absent from the result.
func (r *ProfileRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Profile, error) {
	if len(ids) == 0 {
		return []model.Profile{}, nil
	}
	var profiles []model.Profile
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error
	return profiles, err
}

func (r *ProfileRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*model.Profile, error) {
	if len(fields) > 0 {
		result := r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).Updates(fields)
		if result.Error != nil {
			return nil, result.Error
		}
	}
	return r.GetByID(ctx, id)
}
