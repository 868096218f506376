package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/timewatch-admin/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	countersCollection = "counters"
	usersCollection    = "users"
)

var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrCacheMiss    = errors.New("cache miss")
)

// MongoDB: долгоживущее подключение к документному хранилищу, создаётся один раз на процесс
type MongoDB struct {
	Client *mongo.Client
	cfg    config.MongoConfig
}

func NewMongoDB(ctx context.Context, cfg config.MongoConfig) (*MongoDB, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	// Настройка пула соединений
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetMaxPoolSize(25).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Minute)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	// Проверка подключения
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoDB{Client: client, cfg: cfg}, nil
}

func (db *MongoDB) Close(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}

func (db *MongoDB) Events() *mongo.Collection {
	return db.Client.Database(db.cfg.Database).Collection(db.cfg.EventsCollection)
}

func (db *MongoDB) Counters() *mongo.Collection {
	return db.Client.Database(db.cfg.Database).Collection(countersCollection)
}

func (db *MongoDB) Mappings() *mongo.Collection {
	return db.Client.Database(db.cfg.Database).Collection(db.cfg.MappingsCollection)
}

func (db *MongoDB) Traffic() *mongo.Collection {
	return db.Client.Database(db.cfg.TrafficDatabase).Collection(db.cfg.TrafficCollection)
}

func (db *MongoDB) Users() *mongo.Collection {
	return db.Client.Database(db.cfg.UsersDatabase).Collection(usersCollection)
}

// EnsureIndexes создаёт индексы, на которые опираются инварианты уникальности.
// Коллекция журнала посещений принадлежит другому сервису и не трогается.
func (db *MongoDB) EnsureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		db.Events(): {
			{
				Keys:    bson.D{{Key: "date", Value: 1}, {Key: "eventId", Value: 1}},
				Options: options.Index().SetName("date_eventId_unique").SetUnique(true),
			},
			{Keys: bson.D{{Key: "date", Value: 1}}, Options: options.Index().SetName("date_single")},
			{Keys: bson.D{{Key: "eventId", Value: -1}}, Options: options.Index().SetName("eventId_single")},
		},
		db.Mappings(): {
			{
				Keys:    bson.D{{Key: "normalizedDomain", Value: 1}},
				Options: options.Index().SetName("normalizedDomain_unique").SetUnique(true).SetSparse(true),
			},
			{Keys: bson.D{{Key: "domain", Value: 1}}, Options: options.Index().SetName("domain_single")},
		},
		db.Users(): {
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetName("username_unique").SetUnique(true),
			},
		},
	}

	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", coll.Name(), err)
		}
	}

	return nil
}

// isDuplicateKey распознаёт нарушение уникального индекса (код 11000)
func isDuplicateKey(err error) bool {
	return err != nil && mongo.IsDuplicateKeyError(err)
}
