package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const RoleAdmin = "admin"

type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username string             `bson:"username" json:"username"`
	Password string             `bson:"password" json:"-"`
	Nickname string             `bson:"nickname,omitempty" json:"nickname,omitempty"`
	Email    string             `bson:"email,omitempty" json:"email,omitempty"`
	Role     string             `bson:"role,omitempty" json:"role,omitempty"`
}

// IsAdmin: доступ к админке есть только у роли admin
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
