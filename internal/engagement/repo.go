package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jordanvela/cliphive-backend/pkg/enums"
	mongoclient "github.com/jordanvela/cliphive-backend/pkg/mongo"
)

// ErrDocumentNotFound is returned when a comment or rating does not exist.
var ErrDocumentNotFound = errors.New("engagement document not found")

// Repository persists engagement documents in the mongo document store.
type Repository struct {
	comments *mongodriver.Collection
	ratings  *mongodriver.Collection
}

// NewRepository binds the repository to the engagement collections.
func NewRepository(client *mongoclient.Client) *Repository {
	return &Repository{
		comments: client.Collection(mongoclient.CommentsCollection),
		ratings:  client.Collection(mongoclient.RatingsCollection),
	}
}

// CreateComment inserts a new active comment.
func (r *Repository) CreateComment(ctx context.Context, videoID, userID uuid.UUID, body string) (*Comment, error) {
	now := time.Now().UTC()
	comment := &Comment{
		VideoID:   videoID.String(),
		UserID:    userID.String(),
		Body:      body,
		State:     enums.CommentStateActive.String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	res, err := r.comments.InsertOne(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("inserting comment: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		comment.ID = oid
	}
	return comment, nil
}

// FindComment loads a single comment by its document ID.
func (r *Repository) FindComment(ctx context.Context, id primitive.ObjectID) (*Comment, error) {
	var comment Comment
	err := r.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&comment)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("finding comment: %w", err)
	}
	return &comment, nil
}

// ListComments returns a video's comments newest-first. Deleted comments are
// included only when includeDeleted is set (admin audit).
func (r *Repository) ListComments(ctx context.Context, videoID uuid.UUID, includeDeleted bool, limit int64) ([]Comment, error) {
	filter := bson.M{"video_id": videoID.String()}
	if !includeDeleted {
		filter["state"] = enums.CommentStateActive.String()
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}

	cursor, err := r.comments.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer cursor.Close(ctx)

	comments := []Comment{}
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("decoding comments: %w", err)
	}
	return comments, nil
}

// UpdateCommentBody replaces the body of an active comment.
func (r *Repository) UpdateCommentBody(ctx context.Context, id primitive.ObjectID, body string) (*Comment, error) {
	update := bson.M{"$set": bson.M{"body": body, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var comment Comment
	err := r.comments.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&comment)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("updating comment: %w", err)
	}
	return &comment, nil
}

// MarkCommentDeleted flips a comment into the deleted lifecycle state. The
// document stays in the collection.
func (r *Repository) MarkCommentDeleted(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{
		"state":      enums.CommentStateDeleted.String(),
		"updated_at": time.Now().UTC(),
	}}
	res, err := r.comments.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// UpsertRating writes the user's rating for a video, replacing any prior
// value. The unique (video_id, user_id) index turns concurrent inserts into
// a single winner.
func (r *Repository) UpsertRating(ctx context.Context, videoID, userID uuid.UUID, value int) (*Rating, error) {
	filter := bson.M{"video_id": videoID.String(), "user_id": userID.String()}
	update := bson.M{"$set": bson.M{
		"video_id":   videoID.String(),
		"user_id":    userID.String(),
		"value":      value,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var rating Rating
	err := r.ratings.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rating)
	if err != nil {
		return nil, fmt.Errorf("upserting rating: %w", err)
	}
	return &rating, nil
}

// FindRating loads the user's rating for a video.
func (r *Repository) FindRating(ctx context.Context, videoID, userID uuid.UUID) (*Rating, error) {
	filter := bson.M{"video_id": videoID.String(), "user_id": userID.String()}
	var rating Rating
	err := r.ratings.FindOne(ctx, filter).Decode(&rating)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("finding rating: %w", err)
	}
	return &rating, nil
}

// DeleteRating removes the user's rating document entirely.
func (r *Repository) DeleteRating(ctx context.Context, videoID, userID uuid.UUID) error {
	filter := bson.M{"video_id": videoID.String(), "user_id": userID.String()}
	res, err := r.ratings.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("deleting rating: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
