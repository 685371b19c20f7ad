package users

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned by FindByName when no record matches.
var ErrNotFound = errors.New("users: not found")

// Store is what the CRUD stages need from the users collection.
type Store interface {
	InsertOne(ctx context.Context, u User) (primitive.ObjectID, error)
	InsertMany(ctx context.Context, us []User) (int, error)

	FindAll(ctx context.Context) ([]User, error)
	FindAgeAtLeast(ctx context.Context, min int) ([]User, error)
	FindByName(ctx context.Context, name string) (User, error)

	UpdateAgeByName(ctx context.Context, name string, age int, at time.Time) (int64, error)
	SetCityForAgeAtLeast(ctx context.Context, min int, city string, at time.Time) (int64, error)

	DeleteByName(ctx context.Context, name string) (int64, error)
	DeleteAgeAtLeast(ctx context.Context, min int) (int64, error)

	// Drop removes the collection; dropping a missing one is not an error.
	Drop(ctx context.Context) error
}

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// ByName matches a record by exact name.
func ByName(name string) bson.M { return bson.M{"name": name} }

// AgeAtLeast matches records whose age is >= min.
func AgeAtLeast(min int) bson.M { return bson.M{"age": bson.M{"$gte": min}} }
