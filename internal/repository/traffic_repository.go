package repository

import (
	"context"
	"fmt"
	"regexp"

	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TrafficRepository interface {
	// EachUnmappedCandidate вызывает fn для каждой записи, у которой url == pageName
	EachUnmappedCandidate(ctx context.Context, search string, fn func(models.Visit) error) error
}

type trafficRepository struct {
	visits *mongo.Collection
}

func NewTrafficRepository(db *MongoDB) TrafficRepository {
	return &trafficRepository{visits: db.Traffic()}
}

func (r *trafficRepository) EachUnmappedCandidate(ctx context.Context, search string, fn func(models.Visit) error) error {
	// Страница без отображаемого имени хранится с pageName, равным url
	filter := bson.M{"$expr": bson.M{"$eq": bson.A{"$url", "$pageName"}}}
	if search != "" {
		filter["url"] = primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
	}

	opts := options.Find().SetProjection(bson.M{"url": 1, "pageName": 1, "visitedAt": 1})

	cursor, err := r.visits.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("failed to query visits: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var visit models.Visit
		if err := cursor.Decode(&visit); err != nil {
			return fmt.Errorf("failed to decode visit: %w", err)
		}
		if err := fn(visit); err != nil {
			return err
		}
	}

	if err := cursor.Err(); err != nil {
		return fmt.Errorf("error iterating visits: %w", err)
	}

	return nil
}
