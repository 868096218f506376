package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Mapping struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name             string             `bson:"name" json:"name"`
	Domain           string             `bson:"domain" json:"domain"`
	NormalizedDomain string             `bson:"normalizedDomain,omitempty" json:"normalizedDomain,omitempty"`
	Keyword          []string           `bson:"keyword" json:"keyword"`
	CreatedAt        *time.Time         `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt        *time.Time         `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

type MappingInput struct {
	Name    string
	Domain  string
	Keyword []string
}
