package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrMappingNotFound = errors.New("mapping not found")

type MappingRepository interface {
	List(ctx context.Context) ([]models.Mapping, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Mapping, error)
	FindConflict(ctx context.Context, normalized, raw string, exclude *primitive.ObjectID) (*models.Mapping, error)
	Insert(ctx context.Context, mapping *models.Mapping) error
	Update(ctx context.Context, mapping *models.Mapping) (*models.Mapping, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListMissingNormalized(ctx context.Context) ([]models.Mapping, error)
	SetNormalized(ctx context.Context, id primitive.ObjectID, normalized string) error
}

type mappingRepository struct {
	mappings *mongo.Collection
}

func NewMappingRepository(db *MongoDB) MappingRepository {
	return &mappingRepository{mappings: db.Mappings()}
}

func (r *mappingRepository) List(ctx context.Context) ([]models.Mapping, error) {
	return r.find(ctx, bson.M{})
}

func (r *mappingRepository) find(ctx context.Context, filter bson.M) ([]models.Mapping, error) {
	cursor, err := r.mappings.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}

	mappings := []models.Mapping{}
	if err := cursor.All(ctx, &mappings); err != nil {
		return nil, fmt.Errorf("failed to decode mappings: %w", err)
	}

	return mappings, nil
}

func (r *mappingRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Mapping, error) {
	var mapping models.Mapping
	err := r.mappings.FindOne(ctx, bson.M{"_id": id}).Decode(&mapping)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}

	return &mapping, nil
}

// FindConflict ищет запись, уже занявшую домен: нормализованное значение совпадает
// с её normalizedDomain или domain, либо сырой domain совпадает буквально.
// Возвращает nil, nil если конфликта нет.
func (r *mappingRepository) FindConflict(ctx context.Context, normalized, raw string, exclude *primitive.ObjectID) (*models.Mapping, error) {
	or := bson.A{
		bson.M{"normalizedDomain": normalized},
		bson.M{"domain": normalized},
	}
	if raw != normalized {
		or = append(or, bson.M{"domain": raw})
	}

	filter := bson.M{"$or": or}
	if exclude != nil {
		filter["_id"] = bson.M{"$ne": *exclude}
	}

	var mapping models.Mapping
	err := r.mappings.FindOne(ctx, filter).Decode(&mapping)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check domain conflict: %w", err)
	}

	return &mapping, nil
}

func (r *mappingRepository) Insert(ctx context.Context, mapping *models.Mapping) error {
	result, err := r.mappings.InsertOne(ctx, mapping)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert mapping: %w", err)
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		mapping.ID = id
	}

	return nil
}

func (r *mappingRepository) Update(ctx context.Context, mapping *models.Mapping) (*models.Mapping, error) {
	update := bson.M{
		"$set": bson.M{
			"name":             mapping.Name,
			"domain":           mapping.Domain,
			"normalizedDomain": mapping.NormalizedDomain,
			"keyword":          mapping.Keyword,
			"updatedAt":        mapping.UpdatedAt,
		},
	}

	var updated models.Mapping
	err := r.mappings.FindOneAndUpdate(
		ctx,
		bson.M{"_id": mapping.ID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMappingNotFound
		}
		if isDuplicateKey(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to update mapping: %w", err)
	}

	return &updated, nil
}

func (r *mappingRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.mappings.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrMappingNotFound
	}

	return nil
}

// ListMissingNormalized: старые записи, созданные без normalizedDomain
func (r *mappingRepository) ListMissingNormalized(ctx context.Context) ([]models.Mapping, error) {
	return r.find(ctx, bson.M{"$or": bson.A{
		bson.M{"normalizedDomain": bson.M{"$exists": false}},
		bson.M{"normalizedDomain": ""},
	}})
}

func (r *mappingRepository) SetNormalized(ctx context.Context, id primitive.ObjectID, normalized string) error {
	result, err := r.mappings.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"normalizedDomain": normalized, "updatedAt": time.Now()},
	})
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to backfill mapping: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrMappingNotFound
	}

	return nil
}
