package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jordanvela/cliphive-backend/pkg/enums"
)

// Video is the metadata entity owning one blob object. ObjectKey refers to
// exactly one immutable blob; a record whose write was never confirmed stays
// in pending status and is invisible to other principals.
type Video struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title       string            `gorm:"column:title;not null"`
	Description string            `gorm:"column:description;not null;default:''"`
	OwnerID     uuid.UUID         `gorm:"column:owner_id;type:uuid;not null;index"`
	Visibility  enums.Visibility  `gorm:"column:visibility;not null;default:private"`
	Status      enums.VideoStatus `gorm:"column:status;not null;default:pending"`
	ObjectKey   string            `gorm:"column:object_key;not null;unique"`
	SizeBytes   int64             `gorm:"column:size_bytes;not null;default:0"`
	ContentType string            `gorm:"column:content_type;not null;default:''"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
