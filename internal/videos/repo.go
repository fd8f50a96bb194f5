package videos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jordanvela/cliphive-backend/pkg/db/models"
	"github.com/jordanvela/cliphive-backend/pkg/enums"
)

// Repository exposes video metadata persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a video repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListOptions narrows List queries. Zero value lists everything visible.
type ListOptions struct {
	// OwnerID restricts results to a single owner when non-nil.
	OwnerID *uuid.UUID
	// ViewerID widens the visibility filter to include the viewer's own
	// private and pending rows. Ignored when Unrestricted is set.
	ViewerID *uuid.UUID
	// Unrestricted skips visibility filtering entirely (admin browse).
	Unrestricted bool
	Limit        int
	Offset       int
}

// Create persists a video record.
func (r *Repository) Create(ctx context.Context, video *models.Video) (*models.Video, error) {
	if err := r.db.WithContext(ctx).Create(video).Error; err != nil {
		return nil, err
	}
	return video, nil
}

// FindByID retrieves a video record by ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	var v models.Video
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// FindByObjectKey retrieves a video record by its storage key.
func (r *Repository) FindByObjectKey(ctx context.Context, key string) (*models.Video, error) {
	var v models.Video
	if err := r.db.WithContext(ctx).First(&v, "object_key = ?", key).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// List returns video records ordered newest-first, visibility-filtered per opts.
func (r *Repository) List(ctx context.Context, opts ListOptions) ([]models.Video, error) {
	q := r.db.WithContext(ctx).Model(&models.Video{})

	if !opts.Unrestricted {
		if opts.ViewerID != nil {
			q = q.Where(
				"(visibility = ? AND status = ?) OR owner_id = ?",
				enums.VisibilityPublic, enums.VideoStatusReady, *opts.ViewerID,
			)
		} else {
			q = q.Where("visibility = ? AND status = ?", enums.VisibilityPublic, enums.VideoStatusReady)
		}
	}
	if opts.OwnerID != nil {
		q = q.Where("owner_id = ?", *opts.OwnerID)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var rows []models.Video
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update persists the mutable fields of a video record.
func (r *Repository) Update(ctx context.Context, video *models.Video) (*models.Video, error) {
	if err := r.db.WithContext(ctx).Save(video).Error; err != nil {
		return nil, err
	}
	return video, nil
}

// Delete removes a video record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Video{}).Error
}
