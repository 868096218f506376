package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrEventExists   = errors.New("event already exists for this date")
)

const eventCounterID = "eventId"

type EventRepository interface {
	List(ctx context.Context, date string) ([]models.Event, error)
	FindByKey(ctx context.Context, date string, eventID int64) (*models.Event, error)
	FindByID(ctx context.Context, eventID int64) (*models.Event, error)
	NextEventID(ctx context.Context) (int64, error)
	Insert(ctx context.Context, event *models.Event) error
	UpdateFields(ctx context.Context, date string, eventID int64, fields models.EventFields) (*models.Event, error)
	DeleteByKey(ctx context.Context, date string, eventID int64) (bool, error)
	DeleteByIDExcept(ctx context.Context, eventID int64, keepDate string) (bool, error)
	Count(ctx context.Context) (int64, error)
	CountByDate(ctx context.Context, date string) (int64, error)
	CountByCategory(ctx context.Context) (map[models.Category]int64, error)
}

type eventRepository struct {
	events   *mongo.Collection
	counters *mongo.Collection
}

func NewEventRepository(db *MongoDB) EventRepository {
	return &eventRepository{
		events:   db.Events(),
		counters: db.Counters(),
	}
}

// List возвращает события за дату (по времени) или все события (дата по убыванию, затем время)
func (r *eventRepository) List(ctx context.Context, date string) ([]models.Event, error) {
	filter := bson.M{}
	sort := bson.D{{Key: "date", Value: -1}, {Key: "time", Value: 1}}
	if date != "" {
		filter["date"] = date
		sort = bson.D{{Key: "time", Value: 1}}
	}

	cursor, err := r.events.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := []models.Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	return events, nil
}

func (r *eventRepository) FindByKey(ctx context.Context, date string, eventID int64) (*models.Event, error) {
	return r.findOne(ctx, bson.M{"date": date, "eventId": eventID})
}

func (r *eventRepository) FindByID(ctx context.Context, eventID int64) (*models.Event, error) {
	return r.findOne(ctx, bson.M{"eventId": eventID})
}

func (r *eventRepository) findOne(ctx context.Context, filter bson.M) (*models.Event, error) {
	var event models.Event
	err := r.events.FindOne(ctx, filter).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return &event, nil
}

// NextEventID выдаёт следующий идентификатор: seq = max(seq, max(eventId)) + 1.
// На пустой коллекции это 1, на заполненной без счётчика max(eventId)+1;
// инкремент выполняется атомарно, поэтому параллельные вызовы не получают одинаковых id.
func (r *eventRepository) NextEventID(ctx context.Context) (int64, error) {
	var top struct {
		EventID int64 `bson:"eventId"`
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "eventId", Value: -1}}).
		SetProjection(bson.M{"eventId": 1})

	err := r.events.FindOne(ctx, bson.M{}, opts).Decode(&top)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("failed to get max event id: %w", err)
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "seq", Value: bson.D{{Key: "$add", Value: bson.A{
			bson.D{{Key: "$max", Value: bson.A{"$seq", top.EventID}}},
			1,
		}}}}}}},
	}

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err = r.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": eventCounterID},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate event id: %w", err)
	}

	return counter.Seq, nil
}

func (r *eventRepository) Insert(ctx context.Context, event *models.Event) error {
	if _, err := r.events.InsertOne(ctx, event); err != nil {
		if isDuplicateKey(err) {
			return ErrEventExists
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

func (r *eventRepository) UpdateFields(ctx context.Context, date string, eventID int64, fields models.EventFields) (*models.Event, error) {
	update := bson.M{
		"$set": bson.M{
			"time":      fields.Time,
			"title":     fields.Title,
			"link":      fields.Link,
			"img":       fields.Img,
			"companies": fields.Companies,
			"category":  fields.Category,
			"updatedAt": fields.UpdatedAt,
		},
	}

	var event models.Event
	err := r.events.FindOneAndUpdate(
		ctx,
		bson.M{"date": date, "eventId": eventID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	return &event, nil
}

func (r *eventRepository) DeleteByKey(ctx context.Context, date string, eventID int64) (bool, error) {
	return r.deleteOne(ctx, bson.M{"date": date, "eventId": eventID})
}

// DeleteByIDExcept удаляет копию события с любой датой, кроме keepDate
func (r *eventRepository) DeleteByIDExcept(ctx context.Context, eventID int64, keepDate string) (bool, error) {
	return r.deleteOne(ctx, bson.M{"eventId": eventID, "date": bson.M{"$ne": keepDate}})
}

func (r *eventRepository) deleteOne(ctx context.Context, filter bson.M) (bool, error) {
	result, err := r.events.DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to delete event: %w", err)
	}

	return result.DeletedCount > 0, nil
}

func (r *eventRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.events.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func (r *eventRepository) CountByDate(ctx context.Context, date string) (int64, error) {
	n, err := r.events.CountDocuments(ctx, bson.M{"date": date})
	if err != nil {
		return 0, fmt.Errorf("failed to count events by date: %w", err)
	}
	return n, nil
}

func (r *eventRepository) CountByCategory(ctx context.Context) (map[models.Category]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.events.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate categories: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[models.Category]int64)
	for cursor.Next(ctx) {
		var row struct {
			Category *string `bson:"_id"`
			Count    int64   `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode category count: %w", err)
		}

		var category models.Category
		if row.Category != nil {
			category = models.Category(*row.Category)
		}
		counts[category.OrDefault()] += row.Count
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category counts: %w", err)
	}

	return counts, nil
}
