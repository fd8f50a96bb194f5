package validators

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	pkgerrors "github.com/jordanvela/cliphive-backend/pkg/errors"
)

// UUIDParam extracts and parses a UUID URL parameter.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name)
	}
	return id, nil
}

// ObjectIDParam extracts and parses a Mongo ObjectID URL parameter.
func ObjectIDParam(r *http.Request, name string) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name)
	}
	return id, nil
}
