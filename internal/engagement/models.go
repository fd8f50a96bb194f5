package engagement

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment is an engagement document partitioned by video. Deletion is a
// lifecycle state, not a document removal: deleted comments stay queryable
// for admin audit.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VideoID   string             `bson:"video_id" json:"video_id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Body      string             `bson:"body" json:"body"`
	State     string             `bson:"state" json:"state"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Rating is a single user's score for a video. The store enforces one
// document per (video, user) via a unique compound index.
type Rating struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	VideoID   string             `bson:"video_id" json:"video_id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Value     int                `bson:"value" json:"value"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
