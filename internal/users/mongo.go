package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/mongocrud/toolkit/db/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is a Store over one MongoDB collection.
type MongoStore struct {
	c *mongo.Collection
}

// NewMongoStore wraps c.
func NewMongoStore(c *mongo.Collection) *MongoStore {
	return &MongoStore{c: c}
}

func (s *MongoStore) InsertOne(ctx context.Context, u User) (primitive.ObjectID, error) {
	res, err := s.c.InsertOne(ctx, u)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("insert %q: %w", u.Name, err)
	}
	oid, _ := res.InsertedID.(primitive.ObjectID)
	return oid, nil
}

func (s *MongoStore) InsertMany(ctx context.Context, us []User) (int, error) {
	docs := make([]any, len(us))
	for i, u := range us {
		docs[i] = u
	}
	res, err := s.c.InsertMany(ctx, docs)
	if err != nil {
		n := 0
		if res != nil {
			n = len(res.InsertedIDs)
		}
		return n, fmt.Errorf("insert %d users: %w", len(us), err)
	}
	return len(res.InsertedIDs), nil
}

func (s *MongoStore) FindAll(ctx context.Context) ([]User, error) {
	return s.find(ctx, bson.M{})
}

func (s *MongoStore) FindAgeAtLeast(ctx context.Context, min int) ([]User, error) {
	return s.find(ctx, AgeAtLeast(min))
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]User, error) {
	// Natural order, like find({}) in the shell; _id ties it to insertion
	// order for ObjectIDs generated by one client.
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find %v: %w", filter, err)
	}
	out := []User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return out, nil
}

func (s *MongoStore) FindByName(ctx context.Context, name string) (User, error) {
	var u User
	err := s.c.FindOne(ctx, ByName(name)).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find %q: %w", name, err)
	}
	return u, nil
}

func (s *MongoStore) UpdateAgeByName(ctx context.Context, name string, age int, at time.Time) (int64, error) {
	res, err := s.c.UpdateOne(ctx, ByName(name), bson.M{"$set": bson.M{"age": age, "updated_at": at}})
	if err != nil {
		return 0, fmt.Errorf("update %q: %w", name, err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) SetCityForAgeAtLeast(ctx context.Context, min int, city string, at time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx, AgeAtLeast(min), bson.M{"$set": bson.M{"city": city, "updated_at": at}})
	if err != nil {
		return 0, fmt.Errorf("update age >= %d: %w", min, err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) DeleteByName(ctx context.Context, name string) (int64, error) {
	res, err := s.c.DeleteOne(ctx, ByName(name))
	if err != nil {
		return 0, fmt.Errorf("delete %q: %w", name, err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) DeleteAgeAtLeast(ctx context.Context, min int) (int64, error) {
	res, err := s.c.DeleteMany(ctx, AgeAtLeast(min))
	if err != nil {
		return 0, fmt.Errorf("delete age >= %d: %w", min, err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Drop(ctx context.Context) error {
	if err := s.c.Drop(ctx); err != nil && !mongodb.IsNamespaceNotFound(err) {
		return fmt.Errorf("drop %s: %w", s.c.Name(), err)
	}
	return nil
}
